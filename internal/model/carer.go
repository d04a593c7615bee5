package model

import "time"

// CareType enumerates the kinds of care a family can request and a carer
// can offer.
type CareType string

const (
	CareTypeLiveIn     CareType = "live_in"
	CareTypeHourly     CareType = "hourly"
	CareTypeRespite    CareType = "respite"
	CareTypeSpecialist CareType = "specialist"
)

// Carer is a read-only row of the carer directory. Profile management lives
// in a separate service; this core only ever reads these rows.
type Carer struct {
	ID               string   `gorm:"primaryKey;size:36" json:"id"`
	Name             string   `gorm:"size:256;not null" json:"name"`
	AvailabilityType CareType `gorm:"size:32;not null;index" json:"availabilityType"`
	Available        bool     `gorm:"not null;index" json:"available"`
	HourlyRate       *float64 `json:"hourlyRate"`
	Specializations  []string `gorm:"serializer:json" json:"specializations"`
	Certifications   []string `gorm:"serializer:json" json:"certifications"`
	YearsExperience  float64  `gorm:"not null" json:"yearsExperience"`
	Lat              float64  `gorm:"not null" json:"lat"`
	Lng              float64  `gorm:"not null" json:"lng"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
