package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/benty101/Meddycare-sub000/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Carer{},
		&model.CareRequest{},
		&model.Match{},
		&model.Placement{},
		&model.OutboxEvent{},
		&model.PushSubscription{},
	))
	return db
}

func validRequest(familyID, recipientID string) *model.CareRequest {
	return &model.CareRequest{
		FamilyID:    familyID,
		RecipientID: recipientID,
		CareType:    model.CareTypeHourly,
		BudgetMin:   15,
		BudgetMax:   25,
		Needs:       []string{"dementia"},
	}
}

func TestCreateCareRequestValidation(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	testCases := []struct {
		name  string
		req   *model.CareRequest
		field string
	}{
		{"missing family", &model.CareRequest{RecipientID: "r1", CareType: model.CareTypeHourly}, "familyId"},
		{"missing recipient", &model.CareRequest{FamilyID: "f1", CareType: model.CareTypeHourly}, "recipientId"},
		{"unknown care type", &model.CareRequest{FamilyID: "f1", RecipientID: "r1", CareType: "weekend"}, "careType"},
		{"negative budget", &model.CareRequest{FamilyID: "f1", RecipientID: "r1", CareType: model.CareTypeHourly, BudgetMin: -1}, "budgetMin"},
		{"inverted budget", &model.CareRequest{FamilyID: "f1", RecipientID: "r1", CareType: model.CareTypeHourly, BudgetMin: 30, BudgetMax: 20}, "budgetMin"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CreateCareRequest(ctx, tc.req)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
			// Nothing is persisted on validation failure.
			var count int64
			s.DB().Model(&model.CareRequest{}).Count(&count)
			assert.Zero(t, count)
		})
	}
}

func TestCreateCareRequestRejectsDuplicateOpenRequest(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateCareRequest(ctx, validRequest("fam-1", "rec-1")))

	err := s.CreateCareRequest(ctx, validRequest("fam-1", "rec-1"))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// A closed request does not block a new one.
	require.NoError(t, s.DB().Model(&model.CareRequest{}).
		Where("family_id = ?", "fam-1").
		Update("status", model.RequestStatusCancelled).Error)
	assert.NoError(t, s.CreateCareRequest(ctx, validRequest("fam-1", "rec-1")))
}

func TestClaimGeneration(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))

	t.Run("claims a draft request", func(t *testing.T) {
		claimed, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, model.RequestStatusMatching, claimed.Status)
		assert.NotNil(t, claimed.GenerationClaimedAt)
	})

	t.Run("second claim fails fast", func(t *testing.T) {
		_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
		assert.ErrorIs(t, err, ErrConcurrentGeneration)
	})

	t.Run("stale claim is re-taken", func(t *testing.T) {
		stale := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, s.DB().Model(&model.CareRequest{}).
			Where("id = ?", req.ID).
			Update("generation_claimed_at", stale).Error)

		_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
		assert.NoError(t, err)
	})

	t.Run("released claim is re-claimable", func(t *testing.T) {
		require.NoError(t, s.ReleaseGenerationClaim(ctx, req.ID))
		_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
		assert.NoError(t, err)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := s.ClaimGeneration(ctx, "nope", 5*time.Minute)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClaimGenerationRejectsClosedRequest(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))
	require.NoError(t, s.CancelCareRequest(ctx, req.ID, "fam-1"))

	_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func proposedMatches(requestID string, carerIDs ...string) []*model.Match {
	now := time.Now().UTC()
	matches := make([]*model.Match, len(carerIDs))
	for i, carerID := range carerIDs {
		matches[i] = &model.Match{
			ID:            fmt.Sprintf("match-%s-%s", requestID, carerID),
			CareRequestID: requestID,
			CarerID:       carerID,
			Score:         90 - float64(i),
			Rank:          i + 1,
			Status:        model.MatchStatusProposed,
			GeneratedAt:   now,
		}
	}
	return matches
}

func TestPersistMatches(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))
	_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.PersistMatches(ctx, req.ID, proposedMatches(req.ID, "c1", "c2", "c3")))

	got, err := s.GetCareRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusMatched, got.Status)
	assert.Nil(t, got.GenerationClaimedAt)
	assert.NotNil(t, got.MatchedAt)

	matches, err := s.ListMatches(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].Rank)

	// Exactly one request.matched event recorded.
	var events []model.OutboxEvent
	require.NoError(t, s.DB().Where("event_type = ?", model.EventRequestMatched).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Payload, req.ID)
	assert.Nil(t, events[0].PublishedAt)
}

func TestPersistMatchesRequiresMatchingStatus(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))

	// Still draft: the compare-and-set guard must refuse the batch.
	err := s.PersistMatches(ctx, req.ID, proposedMatches(req.ID, "c1"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	matches, listErr := s.ListMatches(ctx, req.ID)
	require.NoError(t, listErr)
	assert.Empty(t, matches)
}

func TestCancelCascadesExpiry(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))
	_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.PersistMatches(ctx, req.ID, proposedMatches(req.ID, "c1", "c2")))

	require.NoError(t, s.CancelCareRequest(ctx, req.ID, "fam-1"))

	got, err := s.GetCareRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, got.Status)

	matches, err := s.ListMatches(ctx, req.ID)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, model.MatchStatusExpired, m.Status)
	}

	// No stale proposal can be hired against the dead request.
	_, _, err = s.Hire(ctx, matches[0].ID, "fam-1")
	assert.ErrorIs(t, err, ErrAlreadyHired)
}

func TestCancelGuards(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))

	t.Run("wrong family", func(t *testing.T) {
		err := s.CancelCareRequest(ctx, req.ID, "fam-2")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown request", func(t *testing.T) {
		err := s.CancelCareRequest(ctx, "nope", "fam-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("active request cannot be cancelled here", func(t *testing.T) {
		require.NoError(t, s.DB().Model(&model.CareRequest{}).
			Where("id = ?", req.ID).
			Update("status", model.RequestStatusActive).Error)
		err := s.CancelCareRequest(ctx, req.ID, "fam-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestExpireStaleProposals(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	req := validRequest("fam-1", "rec-1")
	require.NoError(t, s.CreateCareRequest(ctx, req))
	_, err := s.ClaimGeneration(ctx, req.ID, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.PersistMatches(ctx, req.ID, proposedMatches(req.ID, "c1", "c2")))

	// Fresh proposals are untouched.
	expired, err := s.ExpireStaleProposals(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, expired)

	// Age the request past the TTL.
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, s.DB().Model(&model.CareRequest{}).
		Where("id = ?", req.ID).
		Update("matched_at", old).Error)

	expired, err = s.ExpireStaleProposals(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := s.GetCareRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusMatching, got.Status)

	matches, err := s.ListMatches(ctx, req.ID)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, model.MatchStatusExpired, m.Status)
	}
}

func TestPushSubscriptionRoundTrip(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	ctx := context.Background()

	sub := &model.PushSubscription{Endpoint: "https://push/1", P256DH: "key", Auth: "auth", FamilyID: "fam-1"}
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	// Upsert replaces keys in place.
	sub.Auth = "rotated"
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	subs, err := s.PushSubscriptionsForFamily(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "rotated", subs[0].Auth)

	require.NoError(t, s.DeletePushSubscription(ctx, "https://push/1"))
	subs, err = s.PushSubscriptionsForFamily(ctx, "fam-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
