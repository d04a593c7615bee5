// Package matching orchestrates the scoring engine over the carer
// directory to produce ranked match batches, and houses the housekeeping
// sweeper for stale proposals.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/directory"
	"github.com/benty101/Meddycare-sub000/internal/model"
	"github.com/benty101/Meddycare-sub000/internal/scoring"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// ErrNoCandidates means no carer passed the hard constraints or every
// eligible carer scored zero. A legitimate business outcome, not a fault;
// the request stays in matching and the call can be retried later.
var ErrNoCandidates = errors.New("no eligible candidates found")

// specialistCertification is the minimum certification a carer must hold
// to be a candidate for specialist care requests.
const specialistCertification = "specialist care certification"

// Generator produces bounded, ranked match batches for care requests.
type Generator struct {
	cfg    config.MatchingConfig
	store  store.Store
	dir    directory.Directory
	engine *scoring.Engine
	log    *zap.Logger
}

// NewGenerator creates a match generator.
func NewGenerator(cfg config.MatchingConfig, s store.Store, dir directory.Directory, log *zap.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		store:  s,
		dir:    dir,
		engine: scoring.NewEngine(cfg.Weights),
		log:    log,
	}
}

// GenerateMatches runs one generation for the request: claim the exclusive
// gate, list eligible carers, score, rank, persist the top-N batch and
// transition the request to matched. The caller's context deadline applies
// throughout; on any failure after the claim it is released so the request
// stays in matching and retryable, never half-populated.
func (g *Generator) GenerateMatches(ctx context.Context, requestID string) ([]model.Match, error) {
	req, err := g.store.ClaimGeneration(ctx, requestID, g.cfg.ClaimStale)
	if err != nil {
		return nil, err
	}

	matches, err := g.generate(ctx, req)
	if err != nil {
		// The claim must come off even when the caller's deadline already
		// fired, otherwise a retry is blocked until the claim goes stale.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := g.store.ReleaseGenerationClaim(releaseCtx, requestID); relErr != nil {
			g.log.Warn("failed to release generation claim",
				zap.String("care_request_id", requestID), zap.Error(relErr))
		}
		return nil, err
	}

	out := make([]model.Match, len(matches))
	for i, m := range matches {
		out[i] = *m
	}
	g.log.Info("match batch generated",
		zap.String("care_request_id", requestID),
		zap.Int("matches", len(out)))
	return out, nil
}

func (g *Generator) generate(ctx context.Context, req *model.CareRequest) ([]*model.Match, error) {
	criteria := directory.FilterCriteria{
		CareType: req.CareType,
		Lat:      req.Lat,
		Lng:      req.Lng,
		RadiusKm: req.RadiusKm,
	}
	if criteria.RadiusKm <= 0 {
		criteria.RadiusKm = g.cfg.DefaultRadiusKm
	}
	if req.CareType == model.CareTypeSpecialist {
		criteria.RequiredCertification = specialistCertification
	}

	candidates, err := g.dir.ListEligibleCarers(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible carers: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	type scored struct {
		candidate directory.Candidate
		result    scoring.Result
	}
	results := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		result := g.engine.Score(req, &c.Carer)
		if result.Score <= 0 {
			continue
		}
		results = append(results, scored{candidate: c, result: result})
	}
	if len(results) == 0 {
		return nil, ErrNoCandidates
	}

	// Deterministic ranking: score, then specialization hits, then
	// distance, then carer id. Never random, so any batch is reproducible
	// in tests and support sessions.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.result.SpecializationHits != b.result.SpecializationHits {
			return a.result.SpecializationHits > b.result.SpecializationHits
		}
		if a.candidate.DistanceKm != b.candidate.DistanceKm {
			return a.candidate.DistanceKm < b.candidate.DistanceKm
		}
		return a.candidate.Carer.ID < b.candidate.Carer.ID
	})

	if len(results) > g.cfg.TopN {
		results = results[:g.cfg.TopN]
	}

	now := time.Now().UTC()
	matches := make([]*model.Match, len(results))
	for i, r := range results {
		matches[i] = &model.Match{
			ID:                 uuid.NewString(),
			CareRequestID:      req.ID,
			CarerID:            r.candidate.Carer.ID,
			Score:              r.result.Score,
			Factors:            r.result.Factors,
			SpecializationHits: r.result.SpecializationHits,
			DistanceKm:         r.candidate.DistanceKm,
			Rank:               i + 1,
			Status:             model.MatchStatusProposed,
			GeneratedAt:        now,
		}
	}

	if err := g.store.PersistMatches(ctx, req.ID, matches); err != nil {
		return nil, err
	}
	return matches, nil
}
