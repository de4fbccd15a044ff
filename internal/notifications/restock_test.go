package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/outbox"
)

type restockFixture struct {
	db      *gorm.DB
	svc     *RestockService
	mailer  *recordingMailer
	product models.Product
}

func newRestockFixture(t *testing.T, stock int) restockFixture {
	t.Helper()
	db := dbtest.Open(t, "restock")
	product := models.Product{Name: "Ghee 1L", Price: decimal.NewFromInt(550), Stock: stock, Category: "dairy"}
	require.NoError(t, db.Create(&product).Error)

	mail := &recordingMailer{}
	dispatcher, err := NewDispatcher(DispatcherParams{
		Logger:   testLogger(),
		Mailer:   mail,
		SMS:      &recordingSMS{},
		Contacts: staticContacts{},
		Runner:   SyncRunner,
	})
	require.NoError(t, err)

	svc, err := NewRestockService(RestockServiceParams{
		Logger:     testLogger(),
		DB:         gormRunner{db: db},
		Requests:   NewRequestRepository(db),
		Outbox:     outbox.NewService(outbox.NewRepository(db), nil),
		Dispatcher: dispatcher,
	})
	require.NoError(t, err)
	return restockFixture{db: db, svc: svc, mailer: mail, product: product}
}

func (f restockFixture) restock(t *testing.T, stock int) {
	t.Helper()
	var batch *RestockBatch
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("stock", stock).Error; err != nil {
			return err
		}
		product := f.product
		product.Stock = stock
		var err error
		batch, err = f.svc.NotifyRestocked(context.Background(), tx, &product)
		return err
	}))
	f.svc.DispatchRestock(context.Background(), batch)
}

func TestSubscribeCreatesAndDeduplicates(t *testing.T) {
	f := newRestockFixture(t, 0)
	user := uuid.New()
	input := SubscribeInput{UserID: user, Email: " asha@example.com ", ProductID: f.product.ID}

	first, err := f.svc.Subscribe(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.AlreadySubscribed)
	assert.Equal(t, "asha@example.com", first.Request.Email)

	second, err := f.svc.Subscribe(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.AlreadySubscribed)
	assert.Equal(t, first.Request.ID, second.Request.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.NotificationRequest{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubscribeValidation(t *testing.T) {
	f := newRestockFixture(t, 4)

	_, err := f.svc.Subscribe(context.Background(), SubscribeInput{UserID: uuid.New(), Email: "a@example.com", ProductID: f.product.ID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, "product is already in stock", pkgerrors.As(err).Message())

	_, err = f.svc.Subscribe(context.Background(), SubscribeInput{UserID: uuid.New(), Email: "a@example.com", ProductID: uuid.New()})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = f.svc.Subscribe(context.Background(), SubscribeInput{UserID: uuid.New(), ProductID: f.product.ID})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRestockNotifiesPendingRequestsExactlyOnce(t *testing.T) {
	f := newRestockFixture(t, 0)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := f.svc.Subscribe(context.Background(), SubscribeInput{UserID: uuid.New(), Email: email, ProductID: f.product.ID})
		require.NoError(t, err)
	}

	f.restock(t, 10)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, f.mailer.restock)

	var notified int64
	require.NoError(t, f.db.Model(&models.NotificationRequest{}).Where("notified = ?", true).Count(&notified).Error)
	assert.Equal(t, int64(2), notified)

	var events int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventRestockNotified).Count(&events).Error)
	assert.Equal(t, int64(2), events)

	f.restock(t, 12)
	assert.Len(t, f.mailer.restock, 2, "a second stock change must not re-notify")
}

func TestSubscribeRearmsNotifiedRequest(t *testing.T) {
	f := newRestockFixture(t, 0)
	user := uuid.New()
	input := SubscribeInput{UserID: user, Email: "a@example.com", ProductID: f.product.ID}
	_, err := f.svc.Subscribe(context.Background(), input)
	require.NoError(t, err)

	f.restock(t, 5)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", f.product.ID).Update("stock", 0).Error)

	input.Email = "new@example.com"
	result, err := f.svc.Subscribe(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, result.AlreadySubscribed)
	assert.False(t, result.Request.Notified)

	f.restock(t, 3)
	assert.Equal(t, []string{"a@example.com", "new@example.com"}, f.mailer.restock)
}

func TestNotifyRestockedIgnoresOutOfStock(t *testing.T) {
	f := newRestockFixture(t, 0)
	batch, err := f.svc.NotifyRestocked(context.Background(), f.db, &models.Product{ID: f.product.ID, Stock: 0})
	require.NoError(t, err)
	assert.Nil(t, batch)
}
