package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

type changeSink struct {
	changed []uuid.UUID
}

func (s *changeSink) OrderCreated(context.Context, uuid.UUID, *models.Order) error { return nil }

func (s *changeSink) OrderStatusUpdated(context.Context, uuid.UUID, *models.Order, enums.OrderStatus) error {
	return nil
}

func (s *changeSink) OrderUpdateBroadcast(context.Context, *models.Order) error { return nil }

func (s *changeSink) PaymentUpdated(context.Context, uuid.UUID, *models.Order) error { return nil }

func (s *changeSink) ProductChanged(_ context.Context, kind enums.ProductChangeKind, productID uuid.UUID) error {
	if kind == enums.ProductChangeUpdated {
		s.changed = append(s.changed, productID)
	}
	return nil
}

type fixture struct {
	db   *gorm.DB
	svc  *Service
	sink *changeSink
	tick time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, "feedback")
	f := &fixture{db: db, sink: &changeSink{}, tick: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{DB: dbpkg.FromGorm(db), Repo: NewRepository(db), Sink: f.sink})
	require.NoError(t, err)
	svc.now = func() time.Time {
		f.tick = f.tick.Add(time.Minute)
		return f.tick
	}
	f.svc = svc
	return f
}

func (f *fixture) user(t *testing.T, name string, role enums.Role) models.User {
	t.Helper()
	u := models.User{Name: name, Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) product(t *testing.T, name string) models.Product {
	t.Helper()
	retailer := uuid.New()
	p := models.Product{Name: name, Price: decimal.NewFromInt(40), Stock: 3, Category: "grocery", RetailerID: &retailer}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) order(t *testing.T, customer uuid.UUID) models.Order {
	t.Helper()
	o := models.Order{
		CustomerID:      customer,
		TotalAmount:     decimal.NewFromInt(40),
		Status:          enums.OrderStatusDelivered,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentStatus:   enums.PaymentStatusCompleted,
		OrderType:       enums.OrderTypeOnline,
		DeliveryAddress: "7 Park Street",
		Delivery:        models.DeliveryDetails{Status: enums.DeliveryStatusDelivered, TrackingNumber: "TRK1"},
	}
	require.NoError(t, f.db.Omit("Items").Create(&o).Error)
	return o
}

func (f *fixture) productRating(t *testing.T, id uuid.UUID) (float64, int) {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Rating, p.RatingCount
}

func TestSubmitRecomputesProductAverage(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", enums.RoleCustomer)
	bob := f.user(t, "Bob", enums.RoleCustomer)
	mango := f.product(t, "Mango")
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, SubmitInput{UserID: alice.ID, ProductID: &mango.ID, Rating: 5, Comment: "  sweet  "})
	require.NoError(t, err)
	assert.Equal(t, enums.FeedbackTypeProduct, first.Feedback.Type)
	assert.Equal(t, "sweet", first.Feedback.Comment)
	require.NotNil(t, first.ProductRating)
	assert.Equal(t, 5.0, first.ProductRating.AverageRating)

	second, err := f.svc.Submit(ctx, SubmitInput{UserID: bob.ID, ProductID: &mango.ID, Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.5, second.ProductRating.AverageRating)
	assert.Equal(t, 2, second.ProductRating.RatingCount)

	third, err := f.svc.Submit(ctx, SubmitInput{UserID: bob.ID, ProductID: &mango.ID, Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 3.67, third.ProductRating.AverageRating)

	avg, count := f.productRating(t, mango.ID)
	assert.InDelta(t, 11.0/3.0, avg, 1e-9)
	assert.Equal(t, 3, count)
	assert.Equal(t, []uuid.UUID{mango.ID, mango.ID, mango.ID}, f.sink.changed)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", enums.RoleCustomer)
	mango := f.product(t, "Mango")
	missing := uuid.New()

	cases := map[string]struct {
		input SubmitInput
		code  pkgerrors.Code
	}{
		"no target":       {SubmitInput{UserID: alice.ID, Rating: 3}, pkgerrors.CodeValidation},
		"rating too low":  {SubmitInput{UserID: alice.ID, ProductID: &mango.ID, Rating: 0}, pkgerrors.CodeValidation},
		"rating too high": {SubmitInput{UserID: alice.ID, ProductID: &mango.ID, Rating: 6}, pkgerrors.CodeValidation},
		"unknown type":    {SubmitInput{UserID: alice.ID, ProductID: &mango.ID, Rating: 3, Type: "delivery"}, pkgerrors.CodeValidation},
		"anonymous":       {SubmitInput{ProductID: &mango.ID, Rating: 3}, pkgerrors.CodeUnauthorized},
		"unknown product": {SubmitInput{UserID: alice.ID, ProductID: &missing, Rating: 3}, pkgerrors.CodeNotFound},
		"unknown order":   {SubmitInput{UserID: alice.ID, OrderID: &missing, Rating: 3, Type: enums.FeedbackTypeOrder}, pkgerrors.CodeNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.code, pkgerrors.As(err).Code())
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Feedback{}).Count(&n).Error)
	assert.Zero(t, n)
	_, count := f.productRating(t, mango.ID)
	assert.Zero(t, count)
}

func TestOrderFeedbackIsLimitedToTheOrderCustomer(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", enums.RoleCustomer)
	mallory := f.user(t, "Mallory", enums.RoleCustomer)
	seller := f.user(t, "Fresh Mart", enums.RoleRetailer)
	order := f.order(t, alice.ID)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitInput{UserID: mallory.ID, OrderID: &order.ID, Rating: 1, Type: enums.FeedbackTypeOrder})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	result, err := f.svc.Submit(ctx, SubmitInput{UserID: alice.ID, OrderID: &order.ID, Rating: 4, Type: enums.FeedbackTypeOrder})
	require.NoError(t, err)
	assert.Nil(t, result.ProductRating)

	own, err := f.svc.ForOrder(ctx, order.ID, Actor{UserID: alice.ID, Role: enums.RoleCustomer})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Alice", own[0].AuthorName)

	bySeller, err := f.svc.ForOrder(ctx, order.ID, Actor{UserID: seller.ID, Role: enums.RoleRetailer})
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)

	_, err = f.svc.ForOrder(ctx, order.ID, Actor{UserID: mallory.ID, Role: enums.RoleCustomer})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestListingsAreNewestFirstAndScopedByRole(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", enums.RoleCustomer)
	bob := f.user(t, "Bob", enums.RoleCustomer)
	seller := f.user(t, "Bulk Foods", enums.RoleWholesaler)
	mango := f.product(t, "Mango")
	rice := f.product(t, "Rice")
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitInput{UserID: alice.ID, ProductID: &mango.ID, Rating: 4})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, SubmitInput{UserID: bob.ID, ProductID: &mango.ID, Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, SubmitInput{UserID: alice.ID, ProductID: &rice.ID, Rating: 3, Type: enums.FeedbackTypeService})
	require.NoError(t, err)

	forMango, err := f.svc.ForProduct(ctx, mango.ID)
	require.NoError(t, err)
	require.Len(t, forMango, 2)
	assert.Equal(t, "Bob", forMango[0].AuthorName)
	assert.Equal(t, "Alice", forMango[1].AuthorName)
	assert.Equal(t, "Mango", forMango[0].ProductName)

	mine, err := f.svc.List(ctx, ListInput{Actor: Actor{UserID: alice.ID, Role: enums.RoleCustomer}})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Rice", mine[0].ProductName)
	assert.Equal(t, enums.FeedbackTypeService, mine[0].Type)

	all, err := f.svc.List(ctx, ListInput{Actor: Actor{UserID: seller.ID, Role: enums.RoleWholesaler}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.List(ctx, ListInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}
