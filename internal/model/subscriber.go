package model

// Subscriber is one deduplicated subscriber account. Linkage keys are
// empty-string when absent.
type Subscriber struct {
	ID string `json:"subs_id"`

	// Linkage keys. Equality of a non-empty key between two subscribers is
	// strong evidence of shared-family membership.
	PayAcctID    string `json:"pay_acct_id,omitempty"`
	BuildingID   string `json:"building_id,omitempty"`
	ShareGroupID string `json:"share_group_id,omitempty"`
	FamilyNetID  string `json:"family_net_id,omitempty"`

	Age  float64 `json:"age"`
	ARPU float64 `json:"arpu"`
	DOU  float64 `json:"dou"`
	MOU  float64 `json:"mou"`

	// Binary yes/no attributes (has-car, abnormal-usage, ...), normalized to
	// booleans at ingest time. Absent means false.
	Flags map[string]bool `json:"flags,omitempty"`

	// SharingStatus is multi-valued (none / sharing / shared) and must never
	// be aggregated as a mean or treated as a binary flag.
	SharingStatus string `json:"sharing_status,omitempty"`
}

// Flag returns the named binary attribute, treating absent as false.
func (s Subscriber) Flag(name string) bool {
	return s.Flags[name]
}

// CallEdge is one directed caller->callee aggregate observed in the call
// detail records of the analysis window. An edge exists only if at least one
// call occurred.
type CallEdge struct {
	Caller    string `json:"caller" csv:"caller"`
	Callee    string `json:"callee" csv:"callee"`
	CallCount int    `json:"call_cnt" csv:"call_cnt"`
	Days      int    `json:"days" csv:"days"`
	Bases     int    `json:"bases" csv:"bases"`
}
