package model

import "time"

// CareRequestStatus is the lifecycle state of a care request.
type CareRequestStatus string

const (
	RequestStatusDraft     CareRequestStatus = "draft"
	RequestStatusMatching  CareRequestStatus = "matching"
	RequestStatusMatched   CareRequestStatus = "matched"
	RequestStatusActive    CareRequestStatus = "active"
	RequestStatusCompleted CareRequestStatus = "completed"
	RequestStatusCancelled CareRequestStatus = "cancelled"
)

// Closed reports whether the request can no longer accept a hire.
func (s CareRequestStatus) Closed() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// CareRequest is a family's declared need for care, the root object of the
// matching lifecycle.
type CareRequest struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	FamilyID      string            `gorm:"size:36;not null;index" json:"familyId"`
	RecipientID   string            `gorm:"size:36;not null;index" json:"recipientId"`
	CareType      CareType          `gorm:"size:32;not null" json:"careType"`
	ScheduleType  string            `gorm:"size:64" json:"scheduleType"`
	BudgetMin     float64           `gorm:"not null" json:"budgetMin"`
	BudgetMax     float64           `gorm:"not null" json:"budgetMax"`
	StartDate     time.Time         `json:"startDate"`
	Needs         []string          `gorm:"serializer:json" json:"needs"`
	MobilityLevel string            `gorm:"size:64" json:"mobilityLevel"`
	Lat           float64           `json:"lat"`
	Lng           float64           `json:"lng"`
	RadiusKm      float64           `json:"radiusKm"`
	Status        CareRequestStatus `gorm:"size:16;not null;index" json:"status"`

	// GenerationClaimedAt is the exclusive gate for match generation. It is
	// set when a generation run claims the request and cleared when the run
	// finishes. A stale claim can be re-taken after a TTL so a crashed run
	// does not wedge the request.
	GenerationClaimedAt *time.Time `json:"-"`

	// MatchedAt is set when matches are proposed; the sweeper uses it to
	// expire proposals that sat unanswered too long.
	MatchedAt *time.Time `json:"matchedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
