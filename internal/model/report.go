package model

import "time"

// RunReport summarizes one scheduler invocation for observability.
type RunReport struct {
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	StaleRemaining int     `json:"stale_remaining"`
	RuntimeMS      int64   `json:"runtime_ms"`
	CostUSD        float64 `json:"cost_usd"`
}

// ReprocessReport summarizes a backfill pass over persisted executions.
type ReprocessReport struct {
	Processed int   `json:"processed"`
	Skipped   int   `json:"skipped"`
	Mentions  int   `json:"mentions"`
	Citations int   `json:"citations"`
	RuntimeMS int64 `json:"runtime_ms"`
}

// PipelineStatus is the read-only status report (no side effects).
type PipelineStatus struct {
	TotalPrompts     int    `json:"total_prompts"`
	StalePrompts     int    `json:"stale_prompts"`
	LastSnapshotDate string `json:"last_snapshot_date,omitempty"`
}

// MentionAggregate is the per-entity mention rollup the scorer consumes.
// All fields are derived from the full mention history by the store.
type MentionAggregate struct {
	EntityID           string
	ModelsWithMentions int
	MentionCount       int
	AveragePosition    float64
	DistinctTopics     int
}

// Benchmark holds category-level score statistics.
type Benchmark struct {
	Category    string  `json:"category,omitempty"`
	SampleSize  int     `json:"sample_size"`
	Average     float64 `json:"average"`
	Median      float64 `json:"median"`
	TopQuartile float64 `json:"top_quartile"`
}

// EntityScoreReport is the entity score query response: current score with
// component breakdown, ranks, benchmark context, and a qualitative label.
type EntityScoreReport struct {
	EntityID        string          `json:"entity_id"`
	DisplayName     string          `json:"display_name"`
	VisibilityScore float64         `json:"visibility_score"`
	Components      ScoreComponents `json:"component_breakdown"`
	RankInCategory  int             `json:"rank_in_category"`
	RankGlobal      int             `json:"rank_global"`
	Category        *Benchmark      `json:"category_benchmark,omitempty"`
	Global          *Benchmark      `json:"global_benchmark,omitempty"`
	Label           string          `json:"label"`
	ComputedAt      time.Time       `json:"computed_at"`
}
