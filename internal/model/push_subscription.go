package model

import "time"

// PushSubscription holds the information for a browser push subscription
// used to deliver plant alerts to the dashboard.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	DeviceID  string    `gorm:"size:64;index"` // device the subscriber follows; empty = all
	CreatedAt time.Time `gorm:"not null"`
}
