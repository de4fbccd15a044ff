package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/inventory"
	"github.com/livemart/livemart-backend/internal/users"
	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
)

type sinkCall struct {
	kind     string
	orderID  uuid.UUID
	previous enums.OrderStatus
}

type recordingSink struct {
	calls []sinkCall
	err   error
}

func (s *recordingSink) OrderCreated(_ context.Context, _ uuid.UUID, order *models.Order) error {
	s.calls = append(s.calls, sinkCall{kind: "created", orderID: order.ID})
	return s.err
}

func (s *recordingSink) OrderStatusUpdated(_ context.Context, _ uuid.UUID, order *models.Order, previous enums.OrderStatus) error {
	s.calls = append(s.calls, sinkCall{kind: "status", orderID: order.ID, previous: previous})
	return s.err
}

func (s *recordingSink) OrderUpdateBroadcast(_ context.Context, order *models.Order) error {
	s.calls = append(s.calls, sinkCall{kind: "broadcast", orderID: order.ID})
	return s.err
}

func (s *recordingSink) PaymentUpdated(_ context.Context, _ uuid.UUID, order *models.Order) error {
	s.calls = append(s.calls, sinkCall{kind: "payment", orderID: order.ID})
	return s.err
}

func (s *recordingSink) ProductChanged(context.Context, enums.ProductChangeKind, uuid.UUID) error {
	return s.err
}

func (s *recordingSink) kinds() []string {
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.kind)
	}
	return out
}

type recordingDispatcher struct {
	confirmations []uuid.UUID
	deliveries    []uuid.UUID
}

func (d *recordingDispatcher) OrderConfirmation(_ context.Context, order *models.Order) {
	d.confirmations = append(d.confirmations, order.ID)
}

func (d *recordingDispatcher) DeliveryConfirmation(_ context.Context, order *models.Order) {
	d.deliveries = append(d.deliveries, order.ID)
}

type orderFixture struct {
	db         *gorm.DB
	svc        *Service
	sink       *recordingSink
	dispatcher *recordingDispatcher
	retailer   uuid.UUID
	customer   uuid.UUID
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()
	db := dbtest.Open(t, "orders")
	f := orderFixture{
		db:         db,
		sink:       &recordingSink{},
		dispatcher: &recordingDispatcher{},
		retailer:   uuid.New(),
		customer:   uuid.New(),
	}
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard}),
		DB:         dbpkg.FromGorm(db),
		Repo:       NewRepository(db),
		Inventory:  inventory.NewService(nil),
		Purchases:  users.NewRepository(db),
		Sink:       f.sink,
		Dispatcher: f.dispatcher,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f orderFixture) seedProduct(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Category:   "grocery",
		RetailerID: &f.retailer,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f orderFixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f orderFixture) place(t *testing.T, items ...LineInput) *models.Order {
	t.Helper()
	result, err := f.svc.Place(context.Background(), PlaceInput{
		CustomerID:      f.customer,
		Items:           items,
		DeliveryAddress: "7 Park Street",
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.NoError(t, err)
	return result.Order
}

func (f orderFixture) retailerActor() Actor {
	return Actor{UserID: f.retailer, Role: enums.RoleRetailer}
}

func TestPlacePersistsOrderAndDecrementsStock(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	dal := f.seedProduct(t, "Dal", "110.00", 4)

	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 3}, LineInput{ProductID: dal.ID, Quantity: 1})

	assert.Equal(t, 7, f.stock(t, rice.ID))
	assert.Equal(t, 3, f.stock(t, dal.ID))
	assert.Equal(t, "290.00", order.TotalAmount.StringFixed(2))

	stored, err := NewRepository(f.db).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Rice", stored.Items[0].ProductName)
	assert.Equal(t, &f.retailer, stored.RetailerID)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("290")))

	var history int64
	require.NoError(t, f.db.Model(&models.PurchaseHistory{}).Where("order_id = ?", order.ID).Count(&history).Error)
	assert.Equal(t, int64(2), history)

	assert.Equal(t, []string{"created", "broadcast"}, f.sink.kinds())
	assert.Equal(t, []uuid.UUID{order.ID}, f.dispatcher.confirmations)
}

func TestPlaceInsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	dal := f.seedProduct(t, "Dal", "110.00", 1)

	_, err := f.svc.Place(context.Background(), PlaceInput{
		CustomerID:      f.customer,
		Items:           []LineInput{{ProductID: rice.ID, Quantity: 2}, {ProductID: dal.ID, Quantity: 2}},
		DeliveryAddress: "7 Park Street",
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())

	assert.Equal(t, 10, f.stock(t, rice.ID))
	assert.Equal(t, 1, f.stock(t, dal.ID))
	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.sink.calls)
	assert.Empty(t, f.dispatcher.confirmations)
}

func TestPlaceUnknownProduct(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Place(context.Background(), PlaceInput{
		CustomerID:      f.customer,
		Items:           []LineInput{{ProductID: uuid.New(), Quantity: 1}},
		DeliveryAddress: "7 Park Street",
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeProductNotFound, pkgerrors.As(err).Code())
}

func TestPlaceSamePaymentSessionReturnsExistingOrder(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	session := "cs_test_123"
	input := PlaceInput{
		CustomerID:       f.customer,
		Items:            []LineInput{{ProductID: rice.ID, Quantity: 2}},
		DeliveryAddress:  "7 Park Street",
		PaymentMethod:    enums.PaymentMethodOnline,
		PaymentSessionID: &session,
	}

	first, err := f.svc.Place(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, enums.PaymentStatusCompleted, first.Order.PaymentStatus)

	second, err := f.svc.Place(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 8, f.stock(t, rice.ID))
	assert.Len(t, f.dispatcher.confirmations, 1)
}

func TestPlaceSucceedsWhenSinkFails(t *testing.T) {
	f := newOrderFixture(t)
	f.sink.err = errors.New("outbox unavailable")
	rice := f.seedProduct(t, "Rice", "60.00", 10)

	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Len(t, f.dispatcher.confirmations, 1)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})
	f.sink.calls = nil

	carrier := "Delhivery"
	updated, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Actor:   f.retailerActor(),
		Status:  enums.OrderStatusInTransit,
		Carrier: CarrierUpdate{Carrier: &carrier},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInTransit, updated.Status)
	assert.Equal(t, []string{"status", "broadcast"}, f.sink.kinds())
	assert.Equal(t, enums.OrderStatusPending, f.sink.calls[0].previous)

	delivered, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Actor:   f.retailerActor(),
		Status:  enums.OrderStatusDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, delivered.PaymentStatus)
	assert.Equal(t, []uuid.UUID{order.ID}, f.dispatcher.deliveries)

	stored, err := NewRepository(f.db).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	assert.Equal(t, enums.DeliveryStatusDelivered, stored.Delivery.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	require.NotNil(t, stored.Delivery.Carrier)
	assert.Equal(t, "Delhivery", *stored.Delivery.Carrier)
	assert.NotNil(t, stored.DeliveredAt)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Actor:   f.retailerActor(),
		Status:  enums.OrderStatusDelivered,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Len(t, f.dispatcher.deliveries, 1, "delivery confirmation is sent once")
}

func TestUpdateStatusRejectsInvalidTransitionWithoutMutation(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Actor: f.retailerActor(), Status: enums.OrderStatusCancelled})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Actor: f.retailerActor(), Status: enums.OrderStatusProcessing})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	stored, err := NewRepository(f.db).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.DeliveryStatusCancelled, stored.Delivery.Status)
}

func TestCancelledOrderDoesNotRestock(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 4})
	require.Equal(t, 6, f.stock(t, rice.ID))

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Actor: f.retailerActor(), Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, rice.ID))
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})

	actors := map[string]Actor{
		"customer":           {UserID: f.customer, Role: enums.RoleCustomer},
		"other retailer":     {UserID: uuid.New(), Role: enums.RoleRetailer},
		"unowned wholesaler": {UserID: f.retailer, Role: enums.RoleWholesaler},
	}
	for name, actor := range actors {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Actor: actor, Status: enums.OrderStatusProcessing})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
		})
	}

	stored, err := NewRepository(f.db).FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	_, err = f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: uuid.New(), Actor: f.retailerActor(), Status: enums.OrderStatusProcessing})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})
	f.sink.calls = nil

	updated, err := f.svc.UpdatePaymentStatus(context.Background(), UpdatePaymentInput{
		OrderID: order.ID,
		Actor:   f.retailerActor(),
		Status:  enums.PaymentStatusRefunded,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, updated.PaymentStatus)
	assert.Equal(t, []string{"payment"}, f.sink.kinds())

	_, err = f.svc.UpdatePaymentStatus(context.Background(), UpdatePaymentInput{
		OrderID: order.ID,
		Actor:   Actor{UserID: f.customer, Role: enums.RoleCustomer},
		Status:  enums.PaymentStatusCompleted,
	})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = f.svc.UpdatePaymentStatus(context.Background(), UpdatePaymentInput{
		OrderID: order.ID,
		Actor:   f.retailerActor(),
		Status:  "settled",
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetAndListAreScopedToParticipants(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	first := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})
	second := f.place(t, LineInput{ProductID: rice.ID, Quantity: 2})

	got, err := f.svc.Get(context.Background(), first.ID, Actor{UserID: f.customer, Role: enums.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = f.svc.Get(context.Background(), first.ID, Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	page, err := f.svc.List(context.Background(), ListInput{Actor: f.retailerActor(), Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(context.Background(), ListInput{Actor: f.retailerActor(), Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{page.Orders[0].ID, rest.Orders[0].ID})

	none, err := f.svc.List(context.Background(), ListInput{Actor: Actor{UserID: uuid.New(), Role: enums.RoleCustomer}})
	require.NoError(t, err)
	assert.Empty(t, none.Orders)
}

func TestMarkNotificationsSentOnlySetsSucceededChannels(t *testing.T) {
	f := newOrderFixture(t)
	rice := f.seedProduct(t, "Rice", "60.00", 10)
	order := f.place(t, LineInput{ProductID: rice.ID, Quantity: 1})
	repo := NewRepository(f.db)

	require.NoError(t, repo.MarkNotificationsSent(context.Background(), order.ID, true, false))
	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailSent)
	assert.False(t, stored.SMSSent)

	require.NoError(t, repo.MarkNotificationsSent(context.Background(), order.ID, false, true))
	stored, err = repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailSent)
	assert.True(t, stored.SMSSent)
}
