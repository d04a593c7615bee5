package model

import "time"

// PushSubscription holds a family browser's web push subscription. The
// outbox dispatcher uses it to notify families about new matches and
// placements.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	FamilyID  string    `gorm:"size:36;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
