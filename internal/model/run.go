package model

import "time"

// RunStatus tracks the lifecycle of one resolution run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams records the configuration a run was executed with.
type RunParams struct {
	Workbook         string  `json:"workbook,omitempty"`
	Seed             uint64  `json:"seed"`
	MaxGroupFull     int     `json:"max_group_full"`
	SampleK          int     `json:"sample_k"`
	MaxCallNeighbors int     `json:"max_call_neighbors"`
	RuleProbability  float64 `json:"rule_probability"`
	Threshold        float64 `json:"threshold"`
}

// RunMetrics summarizes what a completed run produced.
type RunMetrics struct {
	Subscribers int `json:"subscribers"`
	CallEdges   int `json:"call_edges"`
	Candidates  int `json:"candidates"`
	RuleHits    int `json:"rule_hits"`
	Families    int `json:"families"`
	Singletons  int `json:"singletons"`
}

// Run is one persisted resolution run.
type Run struct {
	ID        string      `json:"id"`
	Params    RunParams   `json:"params"`
	Status    RunStatus   `json:"status"`
	Metrics   *RunMetrics `json:"metrics,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
