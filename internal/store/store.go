// Package store owns the authoritative CareRequest/Match/Placement state
// machine. All multi-row transitions run inside database transactions with
// conditional updates acting as compare-and-set guards, so correctness holds
// across multiple service instances without application-level mutexes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benty101/Meddycare-sub000/internal/model"
)

// Store defines the persistence operations of the matching core.
type Store interface {
	// DB exposes the underlying handle for read-only queries and tests.
	DB() *gorm.DB

	CreateCareRequest(ctx context.Context, req *model.CareRequest) error
	GetCareRequest(ctx context.Context, id string) (*model.CareRequest, error)
	CancelCareRequest(ctx context.Context, id, familyID string) error

	// ClaimGeneration atomically moves the request into matching and takes
	// the exclusive generation claim. staleAfter bounds how long a claim
	// from a crashed run blocks re-claiming.
	ClaimGeneration(ctx context.Context, requestID string, staleAfter time.Duration) (*model.CareRequest, error)
	// ReleaseGenerationClaim clears the claim without leaving matching,
	// keeping the request retryable after a failed or empty run.
	ReleaseGenerationClaim(ctx context.Context, requestID string) error
	// PersistMatches writes the generated batch and transitions the request
	// to matched in one transaction; all N rows commit or none do.
	PersistMatches(ctx context.Context, requestID string, matches []*model.Match) error

	ListMatches(ctx context.Context, requestID string) ([]model.Match, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)

	// Hire confirms the match, cascade-rejects its siblings, activates the
	// request and creates the placement as one atomic unit. The returned
	// bool is false when an existing placement was returned idempotently.
	Hire(ctx context.Context, matchID, familyID string) (*model.Placement, bool, error)

	FindActivePlacementByFamilyID(ctx context.Context, familyID string) (*model.Placement, error)

	// ExpireStaleProposals expires proposed matches whose request sat in
	// matched beyond ttl and reopens those requests for generation.
	ExpireStaleProposals(ctx context.Context, ttl time.Duration) (int, error)

	PendingOutboxEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxAttempted(ctx context.Context, id int64) error

	UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	PushSubscriptionsForFamily(ctx context.Context, familyID string) ([]model.PushSubscription, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// CreateCareRequest validates and persists a new request in draft status.
// A second open request for the same family/recipient pair is rejected, not
// silently merged.
func (s *gormStore) CreateCareRequest(ctx context.Context, req *model.CareRequest) error {
	if err := validateCareRequest(req); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = model.RequestStatusDraft

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&model.CareRequest{}).
			Where("family_id = ? AND recipient_id = ? AND status NOT IN ?",
				req.FamilyID, req.RecipientID,
				[]model.CareRequestStatus{model.RequestStatusCompleted, model.RequestStatusCancelled}).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("failed to check for open requests: %w", err)
		}
		if open > 0 {
			return &ValidationError{Field: "recipientId", Reason: "an open care request already exists for this recipient"}
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create care request: %w", err)
		}
		return nil
	})
}

func validateCareRequest(req *model.CareRequest) error {
	if req.FamilyID == "" {
		return &ValidationError{Field: "familyId", Reason: "is required"}
	}
	if req.RecipientID == "" {
		return &ValidationError{Field: "recipientId", Reason: "is required"}
	}
	switch req.CareType {
	case model.CareTypeLiveIn, model.CareTypeHourly, model.CareTypeRespite, model.CareTypeSpecialist:
	default:
		return &ValidationError{Field: "careType", Reason: fmt.Sprintf("unknown care type %q", req.CareType)}
	}
	if req.BudgetMin < 0 {
		return &ValidationError{Field: "budgetMin", Reason: "must not be negative"}
	}
	if req.BudgetMin > req.BudgetMax {
		return &ValidationError{Field: "budgetMin", Reason: "must not exceed budgetMax"}
	}
	return nil
}

func (s *gormStore) GetCareRequest(ctx context.Context, id string) (*model.CareRequest, error) {
	var req model.CareRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load care request %s: %w", id, err)
	}
	return &req, nil
}

// CancelCareRequest closes a request. Permitted from draft, matching and
// matched only; cancelling from matched cascade-expires every proposed
// match so no stale proposal can later be hired against a dead request.
func (s *gormStore) CancelCareRequest(ctx context.Context, id, familyID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := lockCareRequest(tx, id)
		if err != nil {
			return err
		}
		if req.FamilyID != familyID {
			return ErrForbidden
		}

		switch req.Status {
		case model.RequestStatusDraft, model.RequestStatusMatching, model.RequestStatusMatched:
		default:
			return fmt.Errorf("%w: cannot cancel request in status %q", ErrInvalidTransition, req.Status)
		}

		now := time.Now().UTC()
		res := tx.Model(&model.CareRequest{}).
			Where("id = ? AND status = ?", id, req.Status).
			Updates(map[string]any{
				"status":                model.RequestStatusCancelled,
				"generation_claimed_at": nil,
				"updated_at":            now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel request %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request %s changed state during cancel", ErrInvalidTransition, id)
		}

		if err := tx.Model(&model.Match{}).
			Where("care_request_id = ? AND status = ?", id, model.MatchStatusProposed).
			Updates(map[string]any{"status": model.MatchStatusExpired, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to expire proposals for request %s: %w", id, err)
		}
		return nil
	})
}

// ClaimGeneration is the exclusive gate for match generation. The claim is
// a conditional update: only a draft request, or a matching request whose
// claim is missing or stale, can be claimed. Losing the race surfaces
// ErrConcurrentGeneration, never a double-propose.
func (s *gormStore) ClaimGeneration(ctx context.Context, requestID string, staleAfter time.Duration) (*model.CareRequest, error) {
	now := time.Now().UTC()
	staleCutoff := now.Add(-staleAfter)

	res := s.db.WithContext(ctx).Model(&model.CareRequest{}).
		Where("id = ? AND (status = ? OR (status = ? AND (generation_claimed_at IS NULL OR generation_claimed_at < ?)))",
			requestID, model.RequestStatusDraft, model.RequestStatusMatching, staleCutoff).
		Updates(map[string]any{
			"status":                model.RequestStatusMatching,
			"generation_claimed_at": now,
			"updated_at":            now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim generation for request %s: %w", requestID, res.Error)
	}

	req, err := s.GetCareRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 1 {
		return req, nil
	}

	if req.Status == model.RequestStatusMatching {
		return nil, ErrConcurrentGeneration
	}
	return nil, fmt.Errorf("%w: cannot generate matches for request in status %q", ErrInvalidTransition, req.Status)
}

func (s *gormStore) ReleaseGenerationClaim(ctx context.Context, requestID string) error {
	err := s.db.WithContext(ctx).Model(&model.CareRequest{}).
		Where("id = ? AND status = ?", requestID, model.RequestStatusMatching).
		Updates(map[string]any{"generation_claimed_at": nil, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to release generation claim for request %s: %w", requestID, err)
	}
	return nil
}

// PersistMatches commits the generated batch. The request transition to
// matched is the compare-and-set guard: if the request left matching in the
// meantime (cancelled, claimed over), nothing is written.
func (s *gormStore) PersistMatches(ctx context.Context, requestID string, matches []*model.Match) error {
	if len(matches) == 0 {
		return fmt.Errorf("refusing to persist an empty match batch for request %s", requestID)
	}
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.CareRequest
		if err := tx.First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load care request %s: %w", requestID, err)
		}

		res := tx.Model(&model.CareRequest{}).
			Where("id = ? AND status = ?", requestID, model.RequestStatusMatching).
			Updates(map[string]any{
				"status":                model.RequestStatusMatched,
				"matched_at":            now,
				"generation_claimed_at": nil,
				"updated_at":            now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to transition request %s to matched: %w", requestID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: request %s left matching before the batch committed", ErrInvalidTransition, requestID)
		}

		if err := tx.Create(&matches).Error; err != nil {
			return fmt.Errorf("failed to persist match batch for request %s: %w", requestID, err)
		}

		return appendOutboxEvent(tx, model.EventRequestMatched, map[string]any{
			"careRequestId": req.ID,
			"familyId":      req.FamilyID,
			"matchCount":    len(matches),
		})
	})
}

func (s *gormStore) ListMatches(ctx context.Context, requestID string) ([]model.Match, error) {
	var matches []model.Match
	if err := s.db.WithContext(ctx).
		Where("care_request_id = ?", requestID).
		Order("rank").
		Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to list matches for request %s: %w", requestID, err)
	}
	return matches, nil
}

func (s *gormStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	var match model.Match
	if err := s.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}
	return &match, nil
}

func (s *gormStore) FindActivePlacementByFamilyID(ctx context.Context, familyID string) (*model.Placement, error) {
	var placement model.Placement
	err := s.db.WithContext(ctx).
		Where("family_id = ? AND status = ?", familyID, model.PlacementStatusActive).
		First(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active placement for family %s: %w", familyID, err)
	}
	return &placement, nil
}

// ExpireStaleProposals is pure housekeeping: requests that sat in matched
// past the TTL get their proposals expired and are reopened for a fresh
// generation run. Each request is handled in its own transaction.
func (s *gormStore) ExpireStaleProposals(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var stale []model.CareRequest
	if err := s.db.WithContext(ctx).
		Where("status = ? AND matched_at < ?", model.RequestStatusMatched, cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("failed to find stale matched requests: %w", err)
	}

	expired := 0
	for _, req := range stale {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()
			res := tx.Model(&model.CareRequest{}).
				Where("id = ? AND status = ?", req.ID, model.RequestStatusMatched).
				Updates(map[string]any{
					"status":     model.RequestStatusMatching,
					"matched_at": nil,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Hired or cancelled since the scan; leave it alone.
				return nil
			}
			return tx.Model(&model.Match{}).
				Where("care_request_id = ? AND status = ?", req.ID, model.MatchStatusProposed).
				Updates(map[string]any{"status": model.MatchStatusExpired, "updated_at": now}).Error
		})
		if err != nil {
			return expired, fmt.Errorf("failed to expire proposals for request %s: %w", req.ID, err)
		}
		expired++
	}
	return expired, nil
}

// appendOutboxEvent records an event row in the surrounding transaction so
// its delivery is tied to the state change committing.
func appendOutboxEvent(tx *gorm.DB, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	event := model.OutboxEvent{
		EventType: eventType,
		Payload:   string(body),
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

func (s *gormStore) PendingOutboxEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	if err := s.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	return events, nil
}

func (s *gormStore) MarkOutboxPublished(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": now, "attempts": gorm.Expr("attempts + 1")}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d published: %w", id, err)
	}
	return nil
}

func (s *gormStore) MarkOutboxAttempted(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d attempted: %w", id, err)
	}
	return nil
}

func (s *gormStore) UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	existing := model.PushSubscription{}
	err := s.db.WithContext(ctx).First(&existing, "endpoint = ?", sub.Endpoint).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create push subscription: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up push subscription: %w", err)
	default:
		err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
			Where("endpoint = ?", sub.Endpoint).
			Updates(map[string]any{"p256dh": sub.P256DH, "auth": sub.Auth, "family_id": sub.FamilyID}).Error
		if err != nil {
			return fmt.Errorf("failed to update push subscription: %w", err)
		}
		return nil
	}
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func (s *gormStore) PushSubscriptionsForFamily(ctx context.Context, familyID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("family_id = ?", familyID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for family %s: %w", familyID, err)
	}
	return subs, nil
}
