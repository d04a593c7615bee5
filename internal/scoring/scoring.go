// Package scoring computes match scores between a care request and a
// candidate carer. Scoring is pure: the same inputs always produce the
// same score and factor breakdown, so any proposal shown to a family can
// be reproduced and explained after the fact.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/model"
)

// Factor names, in report order.
const (
	FactorSchedule       = "schedule_compatibility"
	FactorSpecialization = "specialization_overlap"
	FactorBudget         = "budget_fit"
	FactorExperience     = "experience"
)

// experienceHalfLife is the tenure (in years) at which the experience
// sub-score reaches 0.5. Diminishing returns: 20 years is better than 5,
// but nowhere near 4x better.
const experienceHalfLife = 5.0

// Result is the outcome of scoring one carer against one request.
type Result struct {
	// Score is the overall match score in [0,100], rounded to two decimals.
	Score float64
	// Factors is the ordered explanation vector.
	Factors []model.ScoreFactor
	// SpecializationHits is the raw count of request needs the carer
	// covers, used as a ranking tie-break.
	SpecializationHits int
}

// Engine scores care requests against carers with configured weights.
type Engine struct {
	weights config.ScoringWeights
}

// NewEngine creates a scoring engine. Weights are expected to be
// normalized (config.ApplyDefaults does this).
func NewEngine(weights config.ScoringWeights) *Engine {
	return &Engine{weights: weights}
}

// Score computes the match score for one request/carer pair.
//
// A live_in request against an hourly-only carer (or the reverse) is a hard
// gate: the overall score is 0 no matter how strong the other factors are.
// The factor breakdown is still reported so the gate itself is explainable.
// Missing carer data (e.g. no stated rate) contributes 0 to its sub-score
// and never fails scoring.
func (e *Engine) Score(req *model.CareRequest, carer *model.Carer) Result {
	scheduleSub, gated := scheduleCompatibility(req.CareType, carer.AvailabilityType)
	specializationSub, hits := specializationOverlap(req.Needs, carer.Specializations)
	budgetSub := budgetFit(req.BudgetMin, req.BudgetMax, carer.HourlyRate)
	experienceSub := experienceScore(carer.YearsExperience)

	factors := []model.ScoreFactor{
		{Name: FactorSchedule, Weight: e.weights.Schedule, Contribution: round2(100 * e.weights.Schedule * scheduleSub)},
		{Name: FactorSpecialization, Weight: e.weights.Specialization, Contribution: round2(100 * e.weights.Specialization * specializationSub)},
		{Name: FactorBudget, Weight: e.weights.Budget, Contribution: round2(100 * e.weights.Budget * budgetSub)},
		{Name: FactorExperience, Weight: e.weights.Experience, Contribution: round2(100 * e.weights.Experience * experienceSub)},
	}

	score := 0.0
	if !gated {
		weighted := e.weights.Schedule*scheduleSub +
			e.weights.Specialization*specializationSub +
			e.weights.Budget*budgetSub +
			e.weights.Experience*experienceSub
		score = round2(100 * weighted)
	}

	return Result{Score: score, Factors: factors, SpecializationHits: hits}
}

// scheduleCompatibility returns the schedule sub-score and whether the
// pairing is hard-gated. Matching care types score 1. A live_in/hourly
// cross is incompatible by nature and gates the whole score; any other
// mismatch just scores 0 on this factor.
func scheduleCompatibility(requested, offered model.CareType) (float64, bool) {
	if requested == offered {
		return 1, false
	}
	liveInHourlyCross := (requested == model.CareTypeLiveIn && offered == model.CareTypeHourly) ||
		(requested == model.CareTypeHourly && offered == model.CareTypeLiveIn)
	return 0, liveInHourlyCross
}

// specializationOverlap is the Jaccard overlap of the request's needs and
// the carer's specializations, after case-folding and deduplication.
func specializationOverlap(needs, specializations []string) (float64, int) {
	needSet := normalizeSet(needs)
	specSet := normalizeSet(specializations)
	if len(needSet) == 0 || len(specSet) == 0 {
		return 0, 0
	}

	hits := 0
	for _, n := range needSet {
		if contains(specSet, n) {
			hits++
		}
	}
	union := len(needSet) + len(specSet) - hits
	return float64(hits) / float64(union), hits
}

// budgetFit scores 1 when the carer's rate sits inside the family's budget
// range and falls off linearly outside it, reaching 0 one budget-width away
// from the range. A carer with no stated rate contributes 0.
func budgetFit(min, max float64, rate *float64) float64 {
	if rate == nil || max <= 0 {
		return 0
	}
	r := *rate
	if r >= min && r <= max {
		return 1
	}

	width := max - min
	if width <= 0 {
		width = max
	}
	var overshoot float64
	if r < min {
		overshoot = min - r
	} else {
		overshoot = r - max
	}
	fit := 1 - overshoot/width
	if fit < 0 {
		return 0
	}
	return fit
}

// experienceScore maps tenure to [0,1) with diminishing returns.
func experienceScore(years float64) float64 {
	if years <= 0 {
		return 0
	}
	return years / (years + experienceHalfLife)
}

// normalizeSet lower-cases, trims, deduplicates and sorts, so overlap
// computation is order-insensitive and deterministic.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func contains(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
