package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper to create a mock database connection. The sqlite-backed tests
// cover behavior; these pin down the exact SQL the outbox methods issue
// against Postgres, and what happens when the database fails.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestMarkOutboxPublishedIncrementsAttemptsInPlace(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "outbox_events" SET "attempts"=attempts \+ 1,"published_at"=\$1 WHERE id = \$2`).
		WithArgs(anyArg{}, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.MarkOutboxPublished(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxAttemptedLeavesPublishedAtAlone(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "outbox_events" SET "attempts"=attempts \+ 1 WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.MarkOutboxAttempted(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingOutboxEventsWrapsQueryErrors(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "outbox_events" WHERE published_at IS NULL`)).
		WillReturnError(dbErr)

	_, err := s.PendingOutboxEvents(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// anyArg matches any SQL argument, for values like timestamps the test
// cannot predict.
type anyArg struct{}

func (anyArg) Match(v driver.Value) bool { return true }
