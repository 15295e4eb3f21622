package repository

import (
	"context"
	"fmt"
	"time"

	"artenis/internal/models"

	"gorm.io/gorm"
)

// SlotGuard is the minimum distance between two live appointments of the
// same artist.
const SlotGuard = time.Hour

// AppointmentFilter selects appointments from one side of the booking.
type AppointmentFilter struct {
	UserID   uint
	AsArtist bool
	Status   models.AppointmentStatus
}

// BookingRepository stores appointments and quotes.
type BookingRepository interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointment(ctx context.Context, id uint) (*models.Appointment, error)
	TransitionAppointment(ctx context.Context, id uint, from []models.AppointmentStatus, to models.AppointmentStatus) error
	ListAppointments(ctx context.Context, filter AppointmentFilter, page Page) ([]models.Appointment, int64, error)
	CreateQuote(ctx context.Context, quote *models.Quote) error
	GetQuote(ctx context.Context, id uint) (*models.Quote, error)
	UpdateQuote(ctx context.Context, quote *models.Quote) error
	ListQuotes(ctx context.Context, userID uint, asArtist bool, page Page) ([]models.Quote, int64, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// CreateAppointment rejects a slot closer than SlotGuard to another
// non-cancelled appointment of the same artist. On Postgres the artist's
// bookings are serialized with a transaction-scoped advisory lock, so two
// requests cannot both pass the check.
func (r *bookingRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockArtistSchedule(tx, appt.ArtistID); err != nil {
			return models.NewInternalError(err)
		}

		var clashes int64
		err := tx.Model(&models.Appointment{}).
			Where("artist_id = ? AND status <> ?", appt.ArtistID, models.AppointmentCancelled).
			Where("date > ? AND date < ?", appt.Date.Add(-SlotGuard), appt.Date.Add(SlotGuard)).
			Count(&clashes).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		if clashes > 0 {
			return models.NewConflictError("The artist already has an appointment near that time")
		}
		if err := tx.Omit("Client", "Artist").Create(appt).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

// lockArtistSchedule holds until the transaction ends. SQLite already
// serializes writers.
func lockArtistSchedule(tx *gorm.DB, artistID uint) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", fmt.Sprintf("appointments:artist:%d", artistID)).Error
}

func (r *bookingRepository) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := readDB(r.db).WithContext(ctx).Preload("Client").Preload("Artist").First(&appt, id).Error
	if err != nil {
		return nil, mapReadError(err, "Appointment", id)
	}
	return &appt, nil
}

// TransitionAppointment moves the appointment to `to` only if it is
// currently in one of `from`, so concurrent transitions cannot both win.
func (r *bookingRepository) TransitionAppointment(ctx context.Context, id uint, from []models.AppointmentStatus, to models.AppointmentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Appointment is not in a state that allows this change")
	}
	return nil
}

func (r *bookingRepository) ListAppointments(ctx context.Context, filter AppointmentFilter, page Page) ([]models.Appointment, int64, error) {
	column := "client_id"
	if filter.AsArtist {
		column = "artist_id"
	}
	q := readDB(r.db).WithContext(ctx).Model(&models.Appointment{}).Where(column+" = ?", filter.UserID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var appts []models.Appointment
	if err := page.apply(q.Preload("Client").Preload("Artist").Order("date ASC")).Find(&appts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return appts, total, nil
}

func (r *bookingRepository) CreateQuote(ctx context.Context, quote *models.Quote) error {
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *bookingRepository) GetQuote(ctx context.Context, id uint) (*models.Quote, error) {
	var quote models.Quote
	if err := readDB(r.db).WithContext(ctx).First(&quote, id).Error; err != nil {
		return nil, mapReadError(err, "Quote", id)
	}
	return &quote, nil
}

func (r *bookingRepository) UpdateQuote(ctx context.Context, quote *models.Quote) error {
	if err := r.db.WithContext(ctx).Save(quote).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *bookingRepository) ListQuotes(ctx context.Context, userID uint, asArtist bool, page Page) ([]models.Quote, int64, error) {
	column := "client_id"
	if asArtist {
		column = "artist_id"
	}
	q := readDB(r.db).WithContext(ctx).Model(&models.Quote{}).
		Where(column+" = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var quotes []models.Quote
	if err := page.apply(q.Order("created_at DESC")).Find(&quotes).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return quotes, total, nil
}
