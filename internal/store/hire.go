package store

import (
	"errors"
	"fmt"
	"time"

	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benty101/Meddycare-sub000/internal/model"
)

// Hire is the single-winner entry point a family uses to accept one match.
//
// The whole operation is one transaction: the status reads, the cascading
// sibling rejection, the request activation and the placement creation
// commit together or not at all. The request row is locked for the duration
// and every transition is a conditional update checked via RowsAffected, so
// of two concurrent hires on sibling matches exactly one succeeds and the
// other observes ErrAlreadyHired, regardless of how weak the row locking is.
//
// Repeating the call for the winning match returns the existing placement
// without re-emitting events, which makes "retry the same hire call" the
// correct client remediation for a timeout.
func (s *gormStore) Hire(ctx context.Context, matchID, familyID string) (*model.Placement, bool, error) {
	var placement *model.Placement
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match model.Match
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load match %s: %w", matchID, err)
		}

		// Locking the request row serializes hires across siblings.
		req, err := lockCareRequest(tx, match.CareRequestID)
		if err != nil {
			return err
		}

		if req.FamilyID != familyID {
			return ErrForbidden
		}

		// Idempotent branch: the same family re-hiring the winning match
		// gets the placement that already exists.
		if match.Status == model.MatchStatusConfirmed {
			var existing model.Placement
			if err := tx.First(&existing, "match_id = ?", match.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("confirmed match %s has no placement", match.ID)
				}
				return fmt.Errorf("failed to load placement for match %s: %w", match.ID, err)
			}
			placement = &existing
			return nil
		}

		if match.Status != model.MatchStatusProposed || req.Status != model.RequestStatusMatched {
			return ErrAlreadyHired
		}

		now := time.Now().UTC()

		res := tx.Model(&model.Match{}).
			Where("id = ? AND status = ?", match.ID, model.MatchStatusProposed).
			Updates(map[string]any{"status": model.MatchStatusConfirmed, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to confirm match %s: %w", match.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyHired
		}

		// Cascading rejection: "exactly one confirmed match per request"
		// holds by construction, not by a separate uniqueness check.
		if err := tx.Model(&model.Match{}).
			Where("care_request_id = ? AND id <> ? AND status = ?",
				req.ID, match.ID, model.MatchStatusProposed).
			Updates(map[string]any{"status": model.MatchStatusRejected, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to reject sibling matches of %s: %w", match.ID, err)
		}

		res = tx.Model(&model.CareRequest{}).
			Where("id = ? AND status = ?", req.ID, model.RequestStatusMatched).
			Updates(map[string]any{"status": model.RequestStatusActive, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to activate request %s: %w", req.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyHired
		}

		// Snapshot the carer's current rate; later rate changes must not
		// track into the placement.
		var carer model.Carer
		if err := tx.First(&carer, "id = ?", match.CarerID).Error; err != nil {
			return fmt.Errorf("failed to load carer %s for rate snapshot: %w", match.CarerID, err)
		}
		rate := 0.0
		if carer.HourlyRate != nil {
			rate = *carer.HourlyRate
		}

		placement = &model.Placement{
			ID:            uuid.NewString(),
			MatchID:       match.ID,
			CareRequestID: req.ID,
			CarerID:       match.CarerID,
			FamilyID:      req.FamilyID,
			StartDate:     req.StartDate,
			RateAgreed:    rate,
			Status:        model.PlacementStatusActive,
			CreatedAt:     now,
		}
		if err := tx.Create(placement).Error; err != nil {
			return fmt.Errorf("failed to create placement for match %s: %w", match.ID, err)
		}
		created = true

		if err := appendOutboxEvent(tx, model.EventMatchHired, map[string]any{
			"matchId":       match.ID,
			"careRequestId": req.ID,
			"carerId":       match.CarerID,
			"familyId":      req.FamilyID,
		}); err != nil {
			return err
		}
		return appendOutboxEvent(tx, model.EventPlacementCreated, map[string]any{
			"placementId":   placement.ID,
			"matchId":       match.ID,
			"careRequestId": req.ID,
			"carerId":       match.CarerID,
			"familyId":      req.FamilyID,
			"rateAgreed":    rate,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return placement, created, nil
}

func lockCareRequest(tx *gorm.DB, id string) (*model.CareRequest, error) {
	var req model.CareRequest
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load care request %s: %w", id, err)
	}
	return &req, nil
}
