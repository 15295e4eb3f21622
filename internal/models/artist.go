package models

import "time"

// ArtistStatus tracks verification of an artist profile.
type ArtistStatus string

const (
	ArtistStatusPending   ArtistStatus = "pending"
	ArtistStatusVerified  ArtistStatus = "verified"
	ArtistStatusSuspended ArtistStatus = "suspended"
)

// ArtistProfile holds the studio details of a user with the artist role.
type ArtistProfile struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	UserID         uint         `gorm:"uniqueIndex;not null" json:"user_id"`
	User           *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BusinessName   string       `gorm:"size:100" json:"business_name"`
	Bio            string       `gorm:"size:1000" json:"bio"`
	Styles         []string     `gorm:"type:text;serializer:json" json:"styles"`
	City           string       `gorm:"size:100;index" json:"city"`
	Status         ArtistStatus `gorm:"size:10;not null;default:pending" json:"status"`
	Rating         float64      `gorm:"not null;default:0" json:"rating"`
	ReviewsCount   int64        `gorm:"not null;default:0" json:"reviews_count"`
	BookingEnabled bool         `gorm:"not null" json:"booking_enabled"`
	HourlyRate     *float64     `json:"hourly_rate,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
