package models

import "time"

// AppointmentStatus is the lifecycle of a booked session.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a session booked by a client with an artist.
type Appointment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	ClientID        uint              `gorm:"not null;index" json:"client_id"`
	ArtistID        uint              `gorm:"not null;index:idx_appointment_artist_date" json:"artist_id"`
	Client          *User             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Artist          *User             `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
	Date            time.Time         `gorm:"not null;index:idx_appointment_artist_date" json:"date"`
	DurationMinutes int               `gorm:"not null;default:60" json:"duration_minutes"`
	Description     string            `gorm:"type:text" json:"description"`
	Status          AppointmentStatus `gorm:"size:10;not null;default:pending;index" json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// QuoteStatus is the lifecycle of a price request.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// Quote is a client's price request to an artist.
type Quote struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ClientID       uint        `gorm:"not null;index" json:"client_id"`
	ArtistID       uint        `gorm:"not null;index" json:"artist_id"`
	Description    string      `gorm:"type:text;not null" json:"description"`
	Styles         []string    `gorm:"type:text;serializer:json" json:"styles"`
	BodyPart       string      `gorm:"size:30" json:"body_part,omitempty"`
	Size           string      `gorm:"size:20" json:"size,omitempty"`
	EstimatedPrice *float64    `json:"estimated_price,omitempty"`
	Price          *float64    `json:"price,omitempty"`
	ArtistNotes    string      `gorm:"type:text" json:"artist_notes,omitempty"`
	Status         QuoteStatus `gorm:"size:10;not null;default:pending;index" json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
