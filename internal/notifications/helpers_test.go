package notifications

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/users"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/mailer"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
}

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingMailer struct {
	mu           sync.Mutex
	confirmation []string
	delivered    []string
	restock      []string
	err          error
}

func (m *recordingMailer) SendOrderConfirmation(_ context.Context, to mailer.Recipient, _ *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.confirmation = append(m.confirmation, to.Email)
	return nil
}

func (m *recordingMailer) SendDeliveryConfirmation(_ context.Context, to mailer.Recipient, _ *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.delivered = append(m.delivered, to.Email)
	return nil
}

func (m *recordingMailer) SendRestockNotification(_ context.Context, to mailer.Recipient, _ *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.restock = append(m.restock, to.Email)
	return nil
}

type recordingSMS struct {
	mu     sync.Mutex
	phones []string
	err    error
}

func (s *recordingSMS) SendDeliverySMS(_ context.Context, phone string, _ *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.phones = append(s.phones, phone)
	return nil
}

type staticContacts map[uuid.UUID]users.Contact

func (c staticContacts) Contact(_ context.Context, userID uuid.UUID) (users.Contact, error) {
	contact, ok := c[userID]
	if !ok {
		return users.Contact{}, errors.New("user not found")
	}
	return contact, nil
}

type flagCall struct {
	orderID uuid.UUID
	email   bool
	sms     bool
}

type recordingFlags struct {
	calls []flagCall
}

func (f *recordingFlags) MarkNotificationsSent(_ context.Context, orderID uuid.UUID, email, sms bool) error {
	f.calls = append(f.calls, flagCall{orderID: orderID, email: email, sms: sms})
	return nil
}
