package model

import "time"

// MatchStatus is the lifecycle state of a proposed pairing.
type MatchStatus string

const (
	MatchStatusProposed  MatchStatus = "proposed"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"
	MatchStatusExpired   MatchStatus = "expired"
)

// ScoreFactor is one contributing factor of a match score. Factors are
// ordered and reported back to the family so every proposal is explainable.
type ScoreFactor struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Match is a scored, proposed pairing between a care request and a candidate
// carer. Matches are created in batches by the generator, never ad hoc.
type Match struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	CareRequestID string        `gorm:"size:36;not null;index" json:"careRequestId"`
	CarerID       string        `gorm:"size:36;not null;index" json:"carerId"`
	Score         float64       `gorm:"not null" json:"score"`
	Factors       []ScoreFactor `gorm:"serializer:json" json:"factors"`

	// Tie-break inputs, persisted so the ranking stays reproducible.
	SpecializationHits int     `gorm:"not null" json:"specializationHits"`
	DistanceKm         float64 `gorm:"not null" json:"distanceKm"`

	Rank        int         `gorm:"not null" json:"rank"`
	Status      MatchStatus `gorm:"size:16;not null;index" json:"status"`
	GeneratedAt time.Time   `gorm:"not null" json:"generatedAt"`
	UpdatedAt   time.Time   `json:"-"`
}
