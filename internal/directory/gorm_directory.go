package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/benty101/Meddycare-sub000/internal/model"
)

// gormDirectory reads carer rows from the shared database. The rows are
// written by the profile-management collaborator; this adapter never
// mutates them, so concurrent reads need no coordination.
type gormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a database-backed carer directory.
func NewGormDirectory(db *gorm.DB) Directory {
	return &gormDirectory{db: db}
}

// ListEligibleCarers applies the hard constraints: availability flag,
// required certification, and geographic radius. Certification and
// distance checks run in-process because specializations are stored as
// JSON and distance needs haversine math. Results are ordered by carer id
// so downstream ranking starts from a deterministic pool.
func (d *gormDirectory) ListEligibleCarers(ctx context.Context, criteria FilterCriteria) ([]Candidate, error) {
	var carers []model.Carer
	if err := d.db.WithContext(ctx).
		Where("available = ?", true).
		Order("id").
		Find(&carers).Error; err != nil {
		return nil, fmt.Errorf("failed to list carers: %w", err)
	}

	candidates := make([]Candidate, 0, len(carers))
	for _, carer := range carers {
		if criteria.RequiredCertification != "" && !holdsCertification(carer, criteria.RequiredCertification) {
			continue
		}
		distance := HaversineKm(criteria.Lat, criteria.Lng, carer.Lat, carer.Lng)
		if criteria.RadiusKm > 0 && distance > criteria.RadiusKm {
			continue
		}
		candidates = append(candidates, Candidate{Carer: carer, DistanceKm: distance})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Carer.ID < candidates[j].Carer.ID
	})
	return candidates, nil
}

func holdsCertification(carer model.Carer, required string) bool {
	required = strings.ToLower(strings.TrimSpace(required))
	for _, cert := range carer.Certifications {
		if strings.ToLower(strings.TrimSpace(cert)) == required {
			return true
		}
	}
	return false
}
