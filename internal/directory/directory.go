// Package directory is the read-only view of eligible carer profiles.
// Profile management is a separate collaborator; this core only consumes
// the listing interface.
package directory

import (
	"context"
	"math"

	"github.com/benty101/Meddycare-sub000/internal/model"
)

// FilterCriteria are the hard constraints applied before scoring. A carer
// that fails any of them is not a candidate at all.
type FilterCriteria struct {
	CareType model.CareType
	Lat      float64
	Lng      float64
	RadiusKm float64
	// RequiredCertification must be held by the carer when set. Specialist
	// care requests set it; other care types leave it empty.
	RequiredCertification string
}

// Candidate is an eligible carer together with the distance to the care
// recipient, which ranking later uses as a tie-break.
type Candidate struct {
	Carer      model.Carer
	DistanceKm float64
}

// Directory lists carers eligible for a care request.
type Directory interface {
	ListEligibleCarers(ctx context.Context, criteria FilterCriteria) ([]Candidate, error)
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
