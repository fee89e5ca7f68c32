package resolve

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/telco-insight/family-cli/internal/model"
)

// ClusterFamilies partitions the subscriber universe into families: nodes are
// every universe member (isolated subscribers become singleton families),
// edges are every scored pair with probability >= threshold (inclusive), and
// each connected component, sorted by id, is one family. The threshold is the
// sole precision/recall lever; no secondary pruning. An empty scored-pairs
// slice is valid input and yields one singleton family per universe member.
func ClusterFamilies(universe []string, pairs []model.ScoredPair, threshold float64) ([]model.Family, error) {
	if threshold < 0 || threshold > 1 {
		return nil, eris.Errorf("resolve: threshold must be in [0,1], got %g", threshold)
	}

	// Dense id arena: string ids map to integer indices for the union-find;
	// original ids are recovered only at output time.
	arena := newIDArena(len(universe))
	for _, id := range universe {
		arena.index(id)
	}
	for _, p := range pairs {
		arena.index(p.U)
		arena.index(p.V)
	}

	dsu := newUnionFind(arena.len())
	for _, p := range pairs {
		if p.Probability >= threshold && p.U != p.V {
			dsu.union(arena.index(p.U), arena.index(p.V))
		}
	}

	members := make(map[int][]string)
	for i, id := range arena.ids {
		root := dsu.find(i)
		members[root] = append(members[root], id)
	}

	families := make([]model.Family, 0, len(members))
	for _, m := range members {
		sort.Strings(m)
		families = append(families, model.Family{
			ID:      model.FamilyID(m[0], len(m)),
			Members: m,
		})
	}
	sort.Slice(families, func(i, j int) bool { return families[i].Members[0] < families[j].Members[0] })
	return families, nil
}

// Assignments flattens families into one (subscriber, family) row per
// universe member, in family order.
func Assignments(families []model.Family) []model.FamilyMember {
	var out []model.FamilyMember
	for _, f := range families {
		for _, m := range f.Members {
			out = append(out, model.FamilyMember{SubscriberID: m, FamilyID: f.ID})
		}
	}
	return out
}

// idArena interns string ids to dense integer indices.
type idArena struct {
	idx map[string]int
	ids []string
}

func newIDArena(capacity int) *idArena {
	return &idArena{idx: make(map[string]int, capacity)}
}

func (a *idArena) index(id string) int {
	if i, ok := a.idx[id]; ok {
		return i
	}
	i := len(a.ids)
	a.idx[id] = i
	a.ids = append(a.ids, id)
	return i
}

func (a *idArena) len() int { return len(a.ids) }

// unionFind is a weighted quick-union with path halving.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
		u.size[i] = 1
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}
