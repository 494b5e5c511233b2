// Package manual handles staff-entered reservations: validation, CRUD over
// the store, and check-in QR codes.
package manual

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// ValidationError marks malformed reservation input. It is surfaced to the
// caller, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type ManualStore interface {
	AddManualAttendee(ctx context.Context, m *models.ManualAttendee) error
	UpdateManualAttendee(ctx context.Context, m *models.ManualAttendee) error
	DeleteManualAttendee(ctx context.Context, id string) error
	GetManualAttendee(ctx context.Context, id string) (*models.ManualAttendee, error)
	ListManualAttendees(ctx context.Context, eventID int64) ([]models.ManualAttendee, error)
}

type Service struct {
	store  ManualStore
	qr     *QRGenerator
	logger *logger.Logger
}

func NewService(store ManualStore, qr *QRGenerator, log *logger.Logger) *Service {
	return &Service{store: store, qr: qr, logger: log}
}

func validate(m *models.ManualAttendee) error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if m.EventID == 0 {
		return &ValidationError{Field: "event_id", Reason: "required"}
	}
	if m.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	switch m.Status {
	case models.ManualReserved, models.ManualConfirmed, models.ManualCancelled,
		models.ManualNoShow, models.ManualArrived:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", m.Status)}
	}
	switch m.Source {
	case "", models.SourcePhone, models.SourceWalkIn, models.SourceEmail,
		models.SourcePartner, models.SourceInternal:
	default:
		return &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", m.Source)}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, m *models.ManualAttendee) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Status == "" {
		m.Status = models.ManualReserved
	}
	if m.Source == "" {
		m.Source = models.SourceInternal
	}
	if err := validate(m); err != nil {
		return err
	}
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	if err := s.store.AddManualAttendee(ctx, m); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	s.logger.Info("MANUAL", fmt.Sprintf("reservation %s created for event %d (qty %d)", m.ID, m.EventID, m.Quantity))
	return nil
}

func (s *Service) Update(ctx context.Context, id string, update *models.ManualAttendee) error {
	existing, err := s.store.GetManualAttendee(ctx, id)
	if err != nil {
		return fmt.Errorf("reservation %s not found: %w", id, err)
	}

	update.ID = existing.ID
	update.EventID = existing.EventID
	update.CreatedBy = existing.CreatedBy
	update.CreatedAt = existing.CreatedAt
	update.Name = strings.TrimSpace(update.Name)
	if err := validate(update); err != nil {
		return err
	}
	return s.store.UpdateManualAttendee(ctx, update)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetManualAttendee(ctx, id); err != nil {
		return fmt.Errorf("reservation %s not found: %w", id, err)
	}
	return s.store.DeleteManualAttendee(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*models.ManualAttendee, error) {
	return s.store.GetManualAttendee(ctx, id)
}

func (s *Service) List(ctx context.Context, eventID int64) ([]models.ManualAttendee, error) {
	return s.store.ListManualAttendees(ctx, eventID)
}

// CheckInQR renders a signed QR image for one reservation.
func (s *Service) CheckInQR(ctx context.Context, id string) ([]byte, error) {
	m, err := s.store.GetManualAttendee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %s not found: %w", id, err)
	}
	return s.qr.GenerateEncryptedQR(m)
}
