package ingest

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/model"
)

// ageReference anchors the age computation; birth dates are turned into
// years against this date rather than wall-clock time so reruns are stable.
var ageReference = time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

// DeriveSubscribers collapses call-detail rows into one subscriber per
// subs_id: first non-empty value for ids, flags and sharing status, mean of
// ARPU/DOU/MOU over rows with a value, age in years from the birth date.
// Subscribers without a birth date get the median age of those with one.
// Missing numeric attributes settle to 0 so the attribute table is dense.
func DeriveSubscribers(records []CallRecord) []model.Subscriber {
	type acc struct {
		sub            model.Subscriber
		birth          *time.Time
		arpu, dou, mou meanAcc
		flags          map[string]string
	}

	byID := make(map[string]*acc)
	var order []string
	for _, r := range records {
		a, ok := byID[r.SubsID]
		if !ok {
			a = &acc{
				sub:   model.Subscriber{ID: r.SubsID, Flags: map[string]bool{}},
				flags: map[string]string{},
			}
			byID[r.SubsID] = a
			order = append(order, r.SubsID)
		}
		firstNonEmpty(&a.sub.PayAcctID, r.PayAcctID)
		firstNonEmpty(&a.sub.BuildingID, r.BuildingID)
		firstNonEmpty(&a.sub.ShareGroupID, r.ShareGroupID)
		firstNonEmpty(&a.sub.FamilyNetID, r.FamilyNetID)
		firstNonEmpty(&a.sub.SharingStatus, r.SharingStatus)
		if a.birth == nil && r.BirthDay != nil {
			a.birth = r.BirthDay
		}
		a.arpu.add(r.ARPU)
		a.dou.add(r.DOU)
		a.mou.add(r.MOU)
		for name, v := range r.Flags {
			if _, seen := a.flags[name]; !seen {
				a.flags[name] = v
			}
		}
	}

	// Median age over subscribers with a birth date fills the rest.
	var ages []float64
	for _, id := range order {
		if b := byID[id].birth; b != nil {
			ages = append(ages, ageReference.Sub(*b).Hours()/24/365.25)
		}
	}
	medianAge := median(ages)

	subs := make([]model.Subscriber, 0, len(order))
	for _, id := range order {
		a := byID[id]
		s := a.sub
		if a.birth != nil {
			s.Age = ageReference.Sub(*a.birth).Hours() / 24 / 365.25
		} else {
			s.Age = medianAge
		}
		s.ARPU = zeroIfNaN(a.arpu.mean())
		s.DOU = zeroIfNaN(a.dou.mean())
		s.MOU = zeroIfNaN(a.mou.mean())
		if math.IsNaN(s.Age) {
			s.Age = 0
		}
		for name, raw := range a.flags {
			s.Flags[name] = ParseYesNo(raw)
		}
		subs = append(subs, s)
	}

	zap.L().Info("ingest: subscribers derived",
		zap.Int("records", len(records)),
		zap.Int("subscribers", len(subs)),
	)
	return subs
}

// DeriveCallEdges aggregates call-detail rows into directed edges with call
// counts, distinct days and distinct base stations. Rows missing either
// endpoint are dropped; when a universe is given, both endpoints must belong
// to it.
func DeriveCallEdges(records []CallRecord, universe map[string]bool) []model.CallEdge {
	type key struct{ caller, callee string }
	type acc struct {
		count int
		days  map[string]struct{}
		bases map[string]struct{}
	}

	byPair := make(map[key]*acc)
	var order []key
	for _, r := range records {
		if r.SubsID == "" || r.CallSubsID == "" {
			continue
		}
		if universe != nil && (!universe[r.SubsID] || !universe[r.CallSubsID]) {
			continue
		}
		k := key{caller: r.SubsID, callee: r.CallSubsID}
		a, ok := byPair[k]
		if !ok {
			a = &acc{days: map[string]struct{}{}, bases: map[string]struct{}{}}
			byPair[k] = a
			order = append(order, k)
		}
		a.count++
		if !r.CallDate.IsZero() {
			a.days[r.CallDate.Format("2006-01-02")] = struct{}{}
		}
		if r.BaseStationID != "" {
			a.bases[r.BaseStationID] = struct{}{}
		}
	}

	edges := make([]model.CallEdge, 0, len(order))
	for _, k := range order {
		a := byPair[k]
		edges = append(edges, model.CallEdge{
			Caller:    k.caller,
			Callee:    k.callee,
			CallCount: a.count,
			Days:      len(a.days),
			Bases:     len(a.bases),
		})
	}
	return edges
}

func firstNonEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	a.sum += v
	a.n++
}

func (a *meanAcc) mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.sum / float64(a.n)
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
