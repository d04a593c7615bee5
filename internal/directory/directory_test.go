package directory

import (
	"context"
	"fmt"
	"strings"
	"testing"

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
	require.NoError(t, db.AutoMigrate(&model.Carer{}))
	return db
}

func TestListEligibleCarersFilters(t *testing.T) {
	db := newTestDB(t)
	dir := NewGormDirectory(db)

	// Berlin city center as the request location.
	reqLat, reqLng := 52.5200, 13.4050

	carers := []model.Carer{
		{ID: "carer-1", Name: "Nearby available", Available: true, Lat: 52.5300, Lng: 13.4100},
		{ID: "carer-2", Name: "Unavailable", Available: false, Lat: 52.5300, Lng: 13.4100},
		// Hamburg, ~255 km away.
		{ID: "carer-3", Name: "Too far", Available: true, Lat: 53.5511, Lng: 9.9937},
		{ID: "carer-4", Name: "Certified", Available: true, Lat: 52.5100, Lng: 13.4000,
			Certifications: []string{"Palliative Care Level 2"}},
	}
	require.NoError(t, db.Create(&carers).Error)

	t.Run("availability and radius", func(t *testing.T) {
		got, err := dir.ListEligibleCarers(context.Background(), FilterCriteria{
			Lat: reqLat, Lng: reqLng, RadiusKm: 25,
		})
		require.NoError(t, err)
		ids := candidateIDs(got)
		assert.Equal(t, []string{"carer-1", "carer-4"}, ids)
	})

	t.Run("required certification", func(t *testing.T) {
		got, err := dir.ListEligibleCarers(context.Background(), FilterCriteria{
			Lat: reqLat, Lng: reqLng, RadiusKm: 25,
			RequiredCertification: "palliative care level 2",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"carer-4"}, candidateIDs(got))
	})

	t.Run("distance is populated", func(t *testing.T) {
		got, err := dir.ListEligibleCarers(context.Background(), FilterCriteria{
			Lat: reqLat, Lng: reqLng, RadiusKm: 1000,
		})
		require.NoError(t, err)
		for _, c := range got {
			if c.Carer.ID == "carer-3" {
				assert.InDelta(t, 255, c.DistanceKm, 10)
			}
		}
	})
}

func TestHaversineKm(t *testing.T) {
	// Same point.
	assert.InDelta(t, 0, HaversineKm(52.52, 13.405, 52.52, 13.405), 1e-9)
	// Berlin to Hamburg is roughly 255 km.
	assert.InDelta(t, 255, HaversineKm(52.5200, 13.4050, 53.5511, 9.9937), 10)
}

func candidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Carer.ID
	}
	return ids
}
