package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/metrics"
)

// Line is one requested product quantity.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors so clients
// can adjust the cart.
type InsufficientStockDetails struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Reserver decrements stock for a set of lines inside the caller's transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []Line) (map[uuid.UUID]models.Product, error)
}

type service struct {
	metrics *metrics.OrderMetrics
}

// NewService builds the reservation service. metrics may be nil.
func NewService(m *metrics.OrderMetrics) Reserver {
	return &service{metrics: m}
}

// Reserve validates every line against one batch read of the referenced
// products and, only when all lines fit, decrements each product with a
// conditional update. The returned map holds the products as read before the
// decrement (name and price snapshots for order lines).
//
// A conditional update that matches no row means a concurrent writer took the
// stock between the read and the write; the error aborts the caller's
// transaction, which rolls back the decrements already applied.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) (map[uuid.UUID]models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}
	requested, err := aggregate(lines)
	if err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	// a fixed lock order keeps two overlapping reservations from deadlocking
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var rows []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		s.metrics.IncReservation("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	products := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		products[p.ID] = p
	}

	var missing []string
	for _, line := range lines {
		if _, ok := products[line.ProductID]; !ok {
			missing = append(missing, line.ProductID.String())
		}
	}
	if len(missing) > 0 {
		s.metrics.IncReservation("not_found")
		return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, fmt.Sprintf("product %s not found", missing[0])).
			WithDetails(map[string]any{"productIds": missing})
	}

	for _, line := range lines {
		product := products[line.ProductID]
		if qty := requested[line.ProductID]; qty > product.Stock {
			s.metrics.IncReservation("insufficient_stock")
			return nil, insufficientStock(product, qty, product.Stock)
		}
	}

	for _, id := range ids {
		qty := requested[id]
		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", id, qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if result.Error != nil {
			s.metrics.IncReservation("error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
		}
		if result.RowsAffected == 0 {
			s.metrics.IncReservation("insufficient_stock")
			product := products[id]
			available, err := currentStock(ctx, tx, id)
			if err != nil {
				available = product.Stock
			}
			return nil, insufficientStock(product, qty, available)
		}
	}

	s.metrics.IncReservation("reserved")
	return products, nil
}

func aggregate(lines []Line) (map[uuid.UUID]int, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	requested := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].productId is required", i))
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
		requested[line.ProductID] += line.Quantity
	}
	return requested, nil
}

func currentStock(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, error) {
	var stock int
	err := tx.WithContext(ctx).Model(&models.Product{}).Select("stock").Where("id = ?", id).Scan(&stock).Error
	return stock, err
}

func insufficientStock(product models.Product, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(InsufficientStockDetails{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   requested,
			Available:   available,
		})
}
