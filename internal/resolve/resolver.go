package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/classifier"
	"github.com/telco-insight/family-cli/internal/model"
)

// Options configures one resolution run.
type Options struct {
	Params          Params
	RuleProbability float64
	Threshold       float64
}

// DefaultOptions returns the production defaults with the given threshold.
func DefaultOptions(threshold float64) Options {
	return Options{
		Params:          DefaultParams(),
		RuleProbability: DefaultRuleProbability,
		Threshold:       threshold,
	}
}

// Validate rejects invalid configuration before any work proceeds.
func (o Options) Validate() error {
	if err := o.Params.Validate(); err != nil {
		return err
	}
	if o.RuleProbability < 0 || o.RuleProbability > 1 {
		return eris.Errorf("resolve: rule probability must be in [0,1], got %g", o.RuleProbability)
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return eris.Errorf("resolve: threshold must be in [0,1], got %g", o.Threshold)
	}
	return nil
}

// Result is the full output of one run.
type Result struct {
	Pairs    []model.ScoredPair
	Families []model.Family
	Members  []model.FamilyMember
	Profiles []model.FamilyProfile
	Metrics  model.RunMetrics
}

// Resolver runs the batch resolution pipeline: candidates, features,
// classifier, fusion, clustering, key-person selection, profiles. Single
// pass, no state kept between runs.
type Resolver struct {
	opts   Options
	scorer classifier.Scorer
}

// New creates a Resolver. The scorer is the injected learned-model
// capability; configuration is validated eagerly.
func New(opts Options, scorer classifier.Scorer) (*Resolver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, eris.New("resolve: nil scorer")
	}
	return &Resolver{opts: opts, scorer: scorer}, nil
}

// Run resolves the full subscriber universe into families.
func (r *Resolver) Run(ctx context.Context, subs []model.Subscriber, edges []model.CallEdge) (*Result, error) {
	log := zap.L().With(zap.Int("subscribers", len(subs)), zap.Int("call_edges", len(edges)))
	log.Info("resolve: starting run",
		zap.Uint64("seed", r.opts.Params.Seed),
		zap.Float64("threshold", r.opts.Threshold),
	)

	// The universe is captured once, read-only, before clustering so
	// isolated subscribers still land in singleton families.
	universe := make([]string, 0, len(subs))
	arpu := make(map[string]float64, len(subs))
	for _, s := range subs {
		universe = append(universe, s.ID)
		arpu[s.ID] = s.ARPU
	}

	pairs, err := GenerateCandidates(subs, edges, r.opts.Params)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolve: cancelled")
	}

	table := BuildFeatures(pairs, subs, edges)

	probs, err := r.scorer.Score(table.Vectors())
	if err != nil {
		return nil, eris.Wrap(err, "resolve: score pairs")
	}

	scored, err := FuseProbabilities(table, probs, r.opts.RuleProbability)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolve: cancelled")
	}

	families, err := ClusterFamilies(universe, scored, r.opts.Threshold)
	if err != nil {
		return nil, err
	}

	members := SelectKeyPersons(families, scored, arpu)
	profiles := BuildProfiles(families, subs)

	res := &Result{
		Pairs:    scored,
		Families: families,
		Members:  members,
		Profiles: profiles,
		Metrics: model.RunMetrics{
			Subscribers: len(subs),
			CallEdges:   len(edges),
			Candidates:  len(pairs),
			RuleHits:    countRuleHits(scored),
			Families:    len(families),
			Singletons:  countSingletons(families),
		},
	}
	log.Info("resolve: run complete",
		zap.Int("candidates", res.Metrics.Candidates),
		zap.Int("rule_hits", res.Metrics.RuleHits),
		zap.Int("families", res.Metrics.Families),
		zap.Int("singletons", res.Metrics.Singletons),
	)
	return res, nil
}

func countRuleHits(pairs []model.ScoredPair) int {
	n := 0
	for _, p := range pairs {
		if p.RuleHit != "" {
			n++
		}
	}
	return n
}

func countSingletons(families []model.Family) int {
	n := 0
	for _, f := range families {
		if len(f.Members) == 1 {
			n++
		}
	}
	return n
}
