package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/notifications"
	"github.com/livemart/livemart-backend/internal/users"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/geo"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/pagination"
	"github.com/livemart/livemart-backend/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sellerDirectory interface {
	SellersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*users.SellerDTO, error)
	NearbyShops(ctx context.Context, viewer geo.Point, maxKm float64) ([]users.ShopDTO, error)
}

type restockNotifier interface {
	NotifyRestocked(ctx context.Context, tx *gorm.DB, product *models.Product) (*notifications.RestockBatch, error)
	DispatchRestock(ctx context.Context, batch *notifications.RestockBatch)
}

type ServiceParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Repo    *Repository
	Sellers sellerDirectory
	Restock restockNotifier
	Sink    notifications.Sink
}

// Service answers catalog queries and manages seller listings.
type Service struct {
	logg    *logger.Logger
	db      txRunner
	repo    *Repository
	sellers sellerDirectory
	restock restockNotifier
	sink    notifications.Sink
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller directory required")
	}
	if params.Restock == nil {
		return nil, fmt.Errorf("restock notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "catalog"})
	}
	sink := params.Sink
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &Service{
		logg:    logg,
		db:      params.DB,
		repo:    params.Repo,
		sellers: params.Sellers,
		restock: params.Restock,
		sink:    sink,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// List runs a catalog query: SQL filters and visibility first, then seller
// enrichment, the distance radius and the requested ordering.
func (s *Service) List(ctx context.Context, input ListInput) ([]ProductView, error) {
	if input.MaxDistanceKm != nil && *input.MaxDistanceKm < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maxDistance must be non-negative")
	}
	if f := input.Filters; f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}

	rows, err := s.repo.List(ctx, input.Viewer.Role, input.Filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	views, err := s.enrich(ctx, input.Viewer.Role, rows, input.Location)
	if err != nil {
		return nil, err
	}

	sortBy := input.SortBy
	if input.Location != nil && input.MaxDistanceKm != nil {
		limit := *input.MaxDistanceKm
		kept := views[:0]
		for _, view := range views {
			if view.DistanceKm != nil && *view.DistanceKm <= limit {
				kept = append(kept, view)
			}
		}
		views = kept
		if sortBy == SortNewest {
			sortBy = SortDistance
		}
	}
	if sortBy == SortDistance && input.Location == nil {
		sortBy = SortNewest
	}
	sortViews(views, sortBy)

	if input.Limit > 0 {
		if limit := pagination.NormalizeLimit(input.Limit); len(views) > limit {
			views = views[:limit]
		}
	}
	return views, nil
}

// Get returns one product and counts the view. Products the viewer may not
// see are reported as not found.
func (s *Service) Get(ctx context.Context, productID uuid.UUID, viewer Viewer, location *geo.Point) (*ProductView, error) {
	product, err := s.load(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	if err := visibility.EnsureProductVisible(viewer.Role, product); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViews(ctx, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment product views")
	}
	product.Views++

	views, err := s.enrich(ctx, viewer.Role, []models.Product{*product}, location)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Categories lists the distinct product categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ProxyListings returns the wholesaler-backed listings a retailer publishes.
func (s *Service) ProxyListings(ctx context.Context, retailerID uuid.UUID) ([]ProductView, error) {
	if retailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	rows, err := s.repo.ProxyListings(ctx, retailerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list proxy products")
	}
	return s.enrich(ctx, "", rows, nil)
}

// NearbyShops lists sellers within maxKm of the viewer, nearest first.
func (s *Service) NearbyShops(ctx context.Context, lat, lng, maxKm float64) ([]users.ShopDTO, error) {
	return s.sellers.NearbyShops(ctx, geo.Point{Lat: lat, Lng: lng}, maxKm)
}

// Create adds a listing owned by the acting seller. A retailer naming a proxy
// wholesaler publishes that wholesaler's stock as a proxy listing.
func (s *Service) Create(ctx context.Context, input CreateProductInput) (*ProductView, error) {
	if !input.Actor.Role.IsSeller() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers can create products")
	}
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" || category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and category are required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}

	product := &models.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		Category:    category,
		ImageURL:    input.ImageURL,
		AvailableAt: input.AvailableAt,
		Region:      input.Region,
	}
	if product.AvailableAt == nil {
		now := s.now()
		product.AvailableAt = &now
	}

	owner := input.Actor.UserID
	switch input.Actor.Role {
	case enums.RoleRetailer:
		product.RetailerID = &owner
		if input.ProxyWholesalerID != nil {
			if err := s.ensureWholesaler(ctx, *input.ProxyWholesalerID); err != nil {
				return nil, err
			}
			proxy := *input.ProxyWholesalerID
			product.WholesalerID = &proxy
			product.ProxyAvailable = true
		}
	case enums.RoleWholesaler:
		if input.ProxyWholesalerID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "only retailers can create proxy listings")
		}
		product.WholesalerID = &owner
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": product.ID.String(),
		"seller_id":  owner.String(),
		"proxy":      product.ProxyAvailable,
	}), "product created")
	s.notifyChange(ctx, enums.ProductChangeCreated, product.ID)

	views, err := s.enrich(ctx, input.Actor.Role, []models.Product{*product}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Update applies the owner's changes. When stock moves from zero to a
// positive value the pending restock requests are claimed in the same
// transaction and their emails go out after commit.
func (s *Service) Update(ctx context.Context, input UpdateProductInput) (*ProductView, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	updates, err := productUpdates(input)
	if err != nil {
		return nil, err
	}

	var (
		updated *models.Product
		batch   *notifications.RestockBatch
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.load(ctx, repo, input.ProductID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(input.Actor, product); err != nil {
			return err
		}
		wasOutOfStock := product.Stock == 0

		if err := repo.Update(ctx, product.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		product, err = s.load(ctx, repo, input.ProductID)
		if err != nil {
			return err
		}

		if wasOutOfStock && product.Stock > 0 {
			batch, err = s.restock.NotifyRestocked(ctx, tx, product)
			if err != nil {
				return err
			}
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(ctx, "product_id", updated.ID.String())
	s.logg.Info(logCtx, "product updated")
	s.notifyChange(ctx, enums.ProductChangeUpdated, updated.ID)
	if batch != nil {
		s.notifyChange(ctx, enums.ProductChangeRestocked, updated.ID)
		s.restock.DispatchRestock(ctx, batch)
	}

	views, err := s.enrich(ctx, input.Actor.Role, []models.Product{*updated}, nil)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes a listing on behalf of its owner.
func (s *Service) Delete(ctx context.Context, productID uuid.UUID, actor Actor) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.load(ctx, repo, productID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(actor, product); err != nil {
			return err
		}
		if err := repo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", productID.String()), "product deleted")
	s.notifyChange(ctx, enums.ProductChangeDeleted, productID)
	return nil
}

// enrich resolves the sellers of the visible products with one lookup and
// attaches the distance from location when it is set.
func (s *Service) enrich(ctx context.Context, role enums.Role, rows []models.Product, location *geo.Point) ([]ProductView, error) {
	visible := make([]models.Product, 0, len(rows))
	ownerIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if !visibility.ProductVisible(role, row) {
			continue
		}
		visible = append(visible, row)
		if seller := row.SellerID(); seller != nil {
			ownerIDs = append(ownerIDs, *seller)
		}
	}

	sellers, err := s.sellers.SellersByID(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	views := make([]ProductView, 0, len(visible))
	for i := range visible {
		view := viewFromModel(&visible[i])
		if owner := visible[i].SellerID(); owner != nil {
			view.Seller = sellers[*owner]
		}
		if location != nil && view.Seller != nil && view.Seller.Location != nil {
			distance := location.DistanceTo(*view.Seller.Location)
			view.DistanceKm = &distance
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) ensureWholesaler(ctx context.Context, id uuid.UUID) error {
	sellers, err := s.sellers.SellersByID(ctx, []uuid.UUID{id})
	if err != nil {
		return err
	}
	seller, ok := sellers[id]
	if !ok || seller.Role != enums.RoleWholesaler {
		return pkgerrors.New(pkgerrors.CodeValidation, "proxy wholesaler not found").
			WithDetails(map[string]any{"proxyWholesalerId": id.String()})
	}
	return nil
}

func (s *Service) notifyChange(ctx context.Context, kind enums.ProductChangeKind, productID uuid.UUID) {
	if err := s.sink.ProductChanged(ctx, kind, productID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"change":     string(kind),
			"error":      err.Error(),
		}), "product change notification failed")
	}
}

func (s *Service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// authorizeOwner checks the slot matching the actor's role: retailers own
// through retailer_id, wholesalers through wholesaler_id.
func authorizeOwner(actor Actor, product *models.Product) error {
	var owner *uuid.UUID
	switch actor.Role {
	case enums.RoleRetailer:
		owner = product.RetailerID
	case enums.RoleWholesaler:
		owner = product.WholesalerID
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only sellers can modify products")
	}
	if owner == nil || *owner != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to you")
	}
	return nil
}

func productUpdates(input UpdateProductInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		updates["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category cannot be empty")
		}
		updates["category"] = category
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.AvailableAt != nil {
		updates["available_at"] = *input.AvailableAt
	}
	if input.Region != nil {
		updates["region"] = *input.Region
	}
	return updates, nil
}
