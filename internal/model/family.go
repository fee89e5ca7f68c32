package model

import "fmt"

// Family is one connected component of the thresholded link graph.
// Members are sorted ascending by subscriber id.
type Family struct {
	ID      string   `json:"family_id"`
	Members []string `json:"members"`
}

// FamilyID derives the deterministic family identifier from the
// lexicographically smallest member and the component size, so two runs over
// identical graphs name their families identically.
func FamilyID(smallestMember string, size int) string {
	return fmt.Sprintf("FAM_%s_%d", smallestMember, size)
}

// FamilyMember is one row of the family assignment output: every subscriber
// in the universe appears exactly once, and exactly one member per family
// carries the key-person flag.
type FamilyMember struct {
	SubscriberID string `json:"subs_id" csv:"subs_id"`
	FamilyID     string `json:"family_id" csv:"family_id"`
	KeyPerson    bool   `json:"key_person" csv:"key_person"`
}

// FamilyProfile aggregates one family. Means cover numeric attributes and
// binary flags only; the multi-valued sharing status is never averaged.
type FamilyProfile struct {
	FamilyID  string             `json:"family_id"`
	Size      int                `json:"size"`
	ARPUMean  float64            `json:"arpu_mean"`
	DOUMean   float64            `json:"dou_mean"`
	MOUMean   float64            `json:"mou_mean"`
	AgeMean   float64            `json:"age_mean"`
	FlagMeans map[string]float64 `json:"flag_means,omitempty"`
}
