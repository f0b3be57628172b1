package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the uuid primary key and gorm timestamps.
type Base struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// SubscriberModel is one confirmed newsletter address. Email is stored
// lowercased so the unique index enforces case-insensitive membership.
type SubscriberModel struct {
	Base
	Email        string    `json:"email"         gorm:"type:varchar(254);uniqueIndex;not null"`
	SubscribedAt time.Time `json:"subscribed_at" gorm:"not null;index"`
}

func (SubscriberModel) TableName() string { return "subscribers" }
