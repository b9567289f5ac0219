package model

import "time"

// PushSubscription holds the browser push endpoint of an operator who wants station alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
