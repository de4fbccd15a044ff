package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/api/responses"
	"github.com/livemart/livemart-backend/api/validators"
	"github.com/livemart/livemart-backend/internal/catalog"
	"github.com/livemart/livemart-backend/internal/users"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/geo"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

// CatalogService is the catalog surface the product handlers depend on.
type CatalogService interface {
	List(ctx context.Context, input catalog.ListInput) ([]catalog.ProductView, error)
	Get(ctx context.Context, productID uuid.UUID, viewer catalog.Viewer, location *geo.Point) (*catalog.ProductView, error)
	Categories(ctx context.Context) ([]string, error)
	ProxyListings(ctx context.Context, retailerID uuid.UUID) ([]catalog.ProductView, error)
	NearbyShops(ctx context.Context, lat, lng, maxKm float64) ([]users.ShopDTO, error)
	Create(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductView, error)
	Update(ctx context.Context, input catalog.UpdateProductInput) (*catalog.ProductView, error)
	Delete(ctx context.Context, productID uuid.UUID, actor catalog.Actor) error
}

const (
	maxNameLength     = 200
	maxCategoryLength = 100
)

// ListProducts runs the public catalog query. Anonymous callers get the
// customer view.
func ListProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func parseListInput(r *http.Request) (catalog.ListInput, error) {
	q := r.URL.Query()
	input := catalog.ListInput{
		Viewer: viewerFromRequest(r),
		Filters: catalog.Filters{
			Category: validators.SanitizeString(q.Get("category"), maxCategoryLength),
			Region:   validators.SanitizeString(q.Get("region"), maxCategoryLength),
			Query:    validators.SanitizeString(q.Get("q"), maxNameLength),
		},
	}

	var err error
	if input.Filters.MinPrice, err = validators.ParseOptionalQueryDecimal(r, "minPrice"); err != nil {
		return input, err
	}
	if input.Filters.MaxPrice, err = validators.ParseOptionalQueryDecimal(r, "maxPrice"); err != nil {
		return input, err
	}
	if input.Filters.InStock, err = validators.ParseQueryBool(r, "inStock"); err != nil {
		return input, err
	}
	if input.Filters.MinQuantity, err = validators.ParseOptionalQueryInt(r, "minQuantity", 0); err != nil {
		return input, err
	}
	if input.Filters.RetailerID, err = validators.ParseOptionalQueryUUID(r, "retailerId"); err != nil {
		return input, err
	}
	if input.Filters.WholesalerID, err = validators.ParseOptionalQueryUUID(r, "wholesalerId"); err != nil {
		return input, err
	}
	if input.Location, err = parseViewerLocation(r); err != nil {
		return input, err
	}
	if input.MaxDistanceKm, err = validators.ParseOptionalQueryFloat(r, "maxDistance"); err != nil {
		return input, err
	}
	if input.SortBy, err = catalog.ParseSortBy(q.Get("sortBy")); err != nil {
		return input, err
	}
	if input.Limit, err = validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit); err != nil {
		return input, err
	}
	return input, nil
}

// parseViewerLocation reads customerLat/customerLng. A missing or (0,0)
// pair means no location.
func parseViewerLocation(r *http.Request) (*geo.Point, error) {
	lat, err := validators.ParseOptionalQueryFloat(r, "customerLat")
	if err != nil {
		return nil, err
	}
	lng, err := validators.ParseOptionalQueryFloat(r, "customerLng")
	if err != nil {
		return nil, err
	}
	return geo.NewPoint(lat, lng), nil
}

func viewerFromRequest(r *http.Request) catalog.Viewer {
	viewer := catalog.Viewer{Role: middleware.RoleFromContext(r.Context())}
	if id, err := middleware.CallerID(r.Context()); err == nil {
		viewer.UserID = &id
	}
	return viewer
}

// GetProduct returns one visible product and counts the view.
func GetProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := parseViewerLocation(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID, viewerFromRequest(r), location)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductCategories(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func ProxyProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		retailerID, err := validators.PathUUID(r, "retailerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ProxyListings(r.Context(), retailerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// NearbyShops lists sellers around lat/lng. maxDistance is in kilometres.
func NearbyShops(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		lat, err := validators.ParseOptionalQueryFloat(r, "lat")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseOptionalQueryFloat(r, "lng")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if lat == nil || lng == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng are required"))
			return
		}
		maxKm, err := validators.ParseOptionalQueryFloat(r, "maxDistance")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		radius := 0.0
		if maxKm != nil {
			radius = *maxKm
		}

		shops, err := svc.NearbyShops(r.Context(), *lat, *lng, radius)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shops)
	}
}

type createProductRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	Description       string           `json:"description" validate:"max=5000"`
	Price             *decimal.Decimal `json:"price" validate:"required,money"`
	Stock             int              `json:"stock" validate:"min=0"`
	Category          string           `json:"category" validate:"required,max=100"`
	Image             *string          `json:"image,omitempty"`
	AvailabilityDate  *string          `json:"availabilityDate,omitempty"`
	ProxyWholesalerID *string          `json:"proxyWholesalerId,omitempty" validate:"omitempty,uuid"`
	Region            *string          `json:"region,omitempty" validate:"omitempty,max=100"`
}

func (p createProductRequest) toInput(actor catalog.Actor) (catalog.CreateProductInput, error) {
	input := catalog.CreateProductInput{
		Actor:       actor,
		Name:        validators.SanitizeString(p.Name, maxNameLength),
		Description: strings.TrimSpace(p.Description),
		Price:       *p.Price,
		Stock:       p.Stock,
		Category:    validators.SanitizeString(p.Category, maxCategoryLength),
		ImageURL:    trimmedOrNil(p.Image),
		Region:      trimmedOrNil(p.Region),
	}
	if p.AvailabilityDate != nil {
		date, err := validators.ParseDate("availabilityDate", *p.AvailabilityDate)
		if err != nil {
			return input, err
		}
		input.AvailableAt = date
	}
	if p.ProxyWholesalerID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*p.ProxyWholesalerID))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid proxyWholesalerId")
		}
		input.ProxyWholesalerID = &id
	}
	return input, nil
}

// CreateProduct adds a listing owned by the calling seller.
func CreateProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

type updateProductRequest struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description      *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price            *decimal.Decimal `json:"price,omitempty" validate:"omitempty,money"`
	Stock            *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	Category         *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Image            *string          `json:"image,omitempty"`
	AvailabilityDate *string          `json:"availabilityDate,omitempty"`
	Region           *string          `json:"region,omitempty" validate:"omitempty,max=100"`
}

func (p updateProductRequest) toInput(productID uuid.UUID, actor catalog.Actor) (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		ProductID:   productID,
		Actor:       actor,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		ImageURL:    p.Image,
		Region:      p.Region,
	}
	if p.AvailabilityDate != nil {
		date, err := validators.ParseDate("availabilityDate", *p.AvailabilityDate)
		if err != nil {
			return input, err
		}
		input.AvailableAt = date
	}
	return input, nil
}

// UpdateProduct edits a listing owned by the caller.
func UpdateProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(productID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func DeleteProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		actor, err := catalogActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), productID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "product deleted"})
	}
}

func catalogActor(r *http.Request) (catalog.Actor, error) {
	userID, err := middleware.CallerID(r.Context())
	if err != nil {
		return catalog.Actor{}, err
	}
	return catalog.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
