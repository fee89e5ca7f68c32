package resolve

import (
	"math"
	"sort"

	"github.com/telco-insight/family-cli/internal/model"
)

// BuildProfiles aggregates each family into a profile: member count, means of
// the numeric attributes over members with a value present, and per-flag
// share of members with the flag set. The multi-valued sharing status is
// excluded from aggregation. Members missing from the subscriber table
// contribute to size only.
func BuildProfiles(families []model.Family, subs []model.Subscriber) []model.FamilyProfile {
	byID := make(map[string]model.Subscriber, len(subs))
	flagSet := make(map[string]struct{})
	for _, s := range subs {
		byID[s.ID] = s
		for name := range s.Flags {
			flagSet[name] = struct{}{}
		}
	}
	flagNames := make([]string, 0, len(flagSet))
	for name := range flagSet {
		flagNames = append(flagNames, name)
	}
	sort.Strings(flagNames)

	out := make([]model.FamilyProfile, 0, len(families))
	for _, f := range families {
		prof := model.FamilyProfile{
			FamilyID:  f.ID,
			Size:      len(f.Members),
			FlagMeans: make(map[string]float64, len(flagNames)),
		}

		var arpu, dou, mou, age meanAcc
		flagTrue := make(map[string]int, len(flagNames))
		for _, m := range f.Members {
			s, ok := byID[m]
			if !ok {
				continue
			}
			arpu.add(s.ARPU)
			dou.add(s.DOU)
			mou.add(s.MOU)
			age.add(s.Age)
			for _, name := range flagNames {
				if s.Flag(name) {
					flagTrue[name]++
				}
			}
		}
		prof.ARPUMean = arpu.mean()
		prof.DOUMean = dou.mean()
		prof.MOUMean = mou.mean()
		prof.AgeMean = age.mean()
		for _, name := range flagNames {
			prof.FlagMeans[name] = float64(flagTrue[name]) / float64(len(f.Members))
		}
		out = append(out, prof)
	}
	return out
}

// meanAcc averages over present (non-NaN) values; no values means NaN.
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
