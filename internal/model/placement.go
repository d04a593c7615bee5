package model

import "time"

// PlacementStatus is the lifecycle state of a placement.
type PlacementStatus string

const (
	PlacementStatusActive PlacementStatus = "active"
	PlacementStatusEnded  PlacementStatus = "ended"
)

// Placement is the binding outcome of a successful hire. It exists iff its
// match is confirmed and its care request is active, and it is the root
// object that care plans, health records and message threads attach to.
// Immutable after creation except for the terminal ended marker, which the
// offboarding workflow sets.
type Placement struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	MatchID       string `gorm:"size:36;not null;uniqueIndex" json:"matchId"`
	CareRequestID string `gorm:"size:36;not null;uniqueIndex" json:"careRequestId"`
	CarerID       string `gorm:"size:36;not null;index" json:"carerId"`

	// FamilyID is denormalized so active-placement lookups are a single
	// indexed query instead of a request->match->placement walk.
	FamilyID string `gorm:"size:36;not null;index" json:"familyId"`

	StartDate time.Time `json:"startDate"`

	// RateAgreed is a snapshot of the carer's rate at hire time. Later rate
	// changes must not leak into an existing placement.
	RateAgreed float64 `gorm:"not null" json:"rateAgreed"`

	Status    PlacementStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"-"`
}
