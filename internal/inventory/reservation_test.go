package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) models.Product {
	t.Helper()
	retailer := uuid.New()
	p := models.Product{
		Name:       name,
		Price:      decimal.RequireFromString("50.00"),
		Stock:      stock,
		Category:   "grocery",
		RetailerID: &retailer,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func reserve(db *gorm.DB, lines []Line) (map[uuid.UUID]models.Product, error) {
	svc := NewService(nil)
	var out map[uuid.UUID]models.Product
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = svc.Reserve(context.Background(), tx, lines)
		return err
	})
	return out, err
}

func TestReserveDecrementsEveryLine(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	a := seedProduct(t, db, "apples", 5)
	b := seedProduct(t, db, "bread", 1)

	products, err := reserve(db, []Line{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "apples", products[a.ID].Name)
	assert.Equal(t, 5, products[a.ID].Stock, "snapshot is taken before the decrement")

	assert.Equal(t, 3, stockOf(t, db, a.ID))
	assert.Equal(t, 0, stockOf(t, db, b.ID))
}

func TestReserveInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	a := seedProduct(t, db, "apples", 5)
	b := seedProduct(t, db, "bread", 1)

	_, err := reserve(db, []Line{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details, ok := typed.Details().(InsufficientStockDetails)
	require.True(t, ok)
	assert.Equal(t, b.ID, details.ProductID)
	assert.Equal(t, "bread", details.ProductName)
	assert.Equal(t, 2, details.Requested)
	assert.Equal(t, 1, details.Available)

	assert.Equal(t, 5, stockOf(t, db, a.ID))
	assert.Equal(t, 1, stockOf(t, db, b.ID))
}

func TestReserveSumsRepeatedProducts(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	a := seedProduct(t, db, "apples", 5)

	_, err := reserve(db, []Line{{ProductID: a.ID, Quantity: 3}, {ProductID: a.ID, Quantity: 3}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())
	assert.Equal(t, 5, stockOf(t, db, a.ID))

	_, err = reserve(db, []Line{{ProductID: a.ID, Quantity: 2}, {ProductID: a.ID, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, db, a.ID))
}

func TestReserveMissingProduct(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	a := seedProduct(t, db, "apples", 5)

	_, err := reserve(db, []Line{{ProductID: a.ID, Quantity: 1}, {ProductID: uuid.New(), Quantity: 1}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeProductNotFound, pkgerrors.As(err).Code())
	assert.Equal(t, 5, stockOf(t, db, a.ID))
}

func TestReserveValidation(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	a := seedProduct(t, db, "apples", 5)

	for _, lines := range [][]Line{
		nil,
		{{ProductID: a.ID, Quantity: 0}},
		{{ProductID: a.ID, Quantity: -1}},
		{{ProductID: uuid.Nil, Quantity: 1}},
	} {
		_, err := reserve(db, lines)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
	assert.Equal(t, 5, stockOf(t, db, a.ID))
}

func TestReserveConditionalUpdateLosesRace(t *testing.T) {
	db := dbtest.Open(t, "reserve")
	first := models.Product{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "apples", Price: decimal.NewFromInt(1), Stock: 5, Category: "grocery"}
	second := models.Product{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Name: "bread", Price: decimal.NewFromInt(1), Stock: 5, Category: "grocery"}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	// simulate a concurrent checkout draining the second product right after
	// the first one is decremented
	trigger := fmt.Sprintf(`CREATE TEMP TRIGGER drain AFTER UPDATE OF stock ON products
WHEN NEW.id = '%s' BEGIN UPDATE products SET stock = 0 WHERE id = '%s'; END`, first.ID, second.ID)
	require.NoError(t, db.Exec(trigger).Error)

	_, err := reserve(db, []Line{{ProductID: second.ID, Quantity: 1}, {ProductID: first.ID, Quantity: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details := typed.Details().(InsufficientStockDetails)
	assert.Equal(t, 0, details.Available)

	require.NoError(t, db.Exec("DROP TRIGGER drain").Error)
	assert.Equal(t, 5, stockOf(t, db, first.ID), "rollback restores earlier decrements")
	assert.Equal(t, 5, stockOf(t, db, second.ID))
}
