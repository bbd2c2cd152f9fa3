package scorer

import (
	"math"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Inputs are the mention aggregates a visibility score is computed from.
// They are plain counts so the computation stays pure: identical inputs
// always yield identical components.
type Inputs struct {
	// ModelsWithMentions is the number of distinct backends that produced
	// at least one mention of the entity.
	ModelsWithMentions int
	// TotalModels is the number of configured backends.
	TotalModels int
	// EntityMentions is the entity's own mention count in the window.
	EntityMentions int
	// CategoryMentions is the total mention count across all tracked
	// entities sharing the category, the entity's own included.
	CategoryMentions int
	// AveragePosition is the mean 1-based rank across the entity's
	// mentions; zero when the entity has no mentions.
	AveragePosition float64
	// DistinctTopics is the number of distinct prompt topics in which the
	// entity has at least one mention.
	DistinctTopics int
}

// ComputeScore maps mention aggregates to the four 0-25 score components.
func ComputeScore(in Inputs) model.ScoreComponents {
	return model.ScoreComponents{
		ModelCoverage: coverageScore(in.ModelsWithMentions, in.TotalModels),
		CategoryShare: shareScore(in.EntityMentions, in.CategoryMentions),
		RankPosition:  rankScore(in.AveragePosition, in.EntityMentions),
		QueryBreadth:  breadthScore(in.DistinctTopics),
	}
}

// coverageScore rewards presence across backends through discrete steps
// rather than linear scaling, so marginal coverage is not over-rewarded.
// The steps are expressed as coverage ratios so a deployment with more or
// fewer than four backends scores consistently.
func coverageScore(withMentions, total int) float64 {
	if total <= 0 || withMentions <= 0 {
		return 0
	}
	ratio := float64(withMentions) / float64(total)
	switch {
	case ratio >= 1.0:
		return 25
	case ratio >= 0.75:
		return 19
	case ratio >= 0.5:
		return 12
	default:
		return 6
	}
}

// shareScore scales the entity's share of category mentions linearly, with
// full points at a 50% share. Share above 50% is capped, not scored higher.
func shareScore(entityMentions, categoryMentions int) float64 {
	if entityMentions <= 0 || categoryMentions <= 0 {
		return 0
	}
	share := float64(entityMentions) / float64(categoryMentions)
	return math.Min(share*50, 25)
}

// rankScore maps the entity's average mention position through descending
// thresholds. Undefined (zero) when the entity has no mentions.
func rankScore(avgPosition float64, mentions int) float64 {
	if mentions <= 0 || avgPosition <= 0 {
		return 0
	}
	switch {
	case avgPosition <= 1.5:
		return 25
	case avgPosition <= 2.0:
		return 22
	case avgPosition <= 2.5:
		return 18
	case avgPosition <= 3.0:
		return 15
	case avgPosition <= 4.0:
		return 10
	default:
		return 5
	}
}

// breadthScore rewards being mentioned across many distinct prompt topics.
func breadthScore(topics int) float64 {
	switch {
	case topics >= 10:
		return 25
	case topics >= 7:
		return 20
	case topics >= 5:
		return 15
	case topics >= 3:
		return 10
	case topics >= 1:
		return 5
	default:
		return 0
	}
}
