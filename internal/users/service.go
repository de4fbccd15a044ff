package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/geo"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListSellers(ctx context.Context) ([]models.User, error)
	PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]PurchaseDTO, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error)
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	RecordView(ctx context.Context, userID, productID uuid.UUID, viewedAt time.Time, keep int) error
	BrowsingHistory(ctx context.Context, userID uuid.UUID) ([]ViewDTO, error)
}

// browsingHistoryLimit is how many distinct products a user's browsing
// history keeps.
const browsingHistoryLimit = 50

type Service struct {
	repo repository
	now  func() time.Time
}

func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SellersByID resolves the given owner ids with one lookup. Unknown ids are
// absent from the result.
func (s *Service) SellersByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*SellerDTO, error) {
	out := make(map[uuid.UUID]*SellerDTO, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return out, nil
	}
	rows, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sellers")
	}
	for i := range rows {
		out[rows[i].ID] = SellerFromModel(&rows[i])
	}
	return out, nil
}

// Contact returns the delivery channels of a user.
func (s *Service) Contact(ctx context.Context, userID uuid.UUID) (Contact, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return Contact{}, err
	}
	return ContactFromModel(user), nil
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ProfileFromModel(user), nil
}

// UpdateProfile changes name, phone, address and location. Fields left nil
// or blank keep their stored value.
func (s *Service) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*ProfileDTO, error) {
	if _, err := s.load(ctx, input.UserID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	for column, value := range map[string]*string{
		"name":    input.Name,
		"phone":   input.Phone,
		"address": input.Address,
	} {
		if value == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*value); trimmed != "" {
			fields[column] = trimmed
		}
	}
	if loc := input.Location; loc != nil {
		if !loc.Valid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "location must carry a valid latitude and longitude")
		}
		fields["latitude"] = loc.Lat
		fields["longitude"] = loc.Lng
	}

	user, err := s.repo.UpdateProfile(ctx, input.UserID, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return ProfileFromModel(user), nil
}

// RecordView notes that the user opened the product page.
func (s *Service) RecordView(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	ok, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.repo.RecordView(ctx, userID, productID, s.now(), browsingHistoryLimit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record browsing history")
	}
	return nil
}

func (s *Service) BrowsingHistory(ctx context.Context, userID uuid.UUID) ([]ViewDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	rows, err := s.repo.BrowsingHistory(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load browsing history")
	}
	return rows, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// NearbyShops lists sellers with a usable location within maxKm of the
// viewer, nearest first. maxKm <= 0 disables the radius filter.
func (s *Service) NearbyShops(ctx context.Context, viewer geo.Point, maxKm float64) ([]ShopDTO, error) {
	if !viewer.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid latitude and longitude are required")
	}
	sellers, err := s.repo.ListSellers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sellers")
	}
	shops := make([]ShopDTO, 0, len(sellers))
	for i := range sellers {
		seller := SellerFromModel(&sellers[i])
		if seller.Location == nil {
			continue
		}
		distance := viewer.DistanceTo(*seller.Location)
		if maxKm > 0 && distance > maxKm {
			continue
		}
		shops = append(shops, ShopDTO{SellerDTO: *seller, DistanceKm: geo.Round2(distance)})
	}
	sort.SliceStable(shops, func(i, j int) bool {
		return shops[i].DistanceKm < shops[j].DistanceKm
	})
	return shops, nil
}

func (s *Service) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]PurchaseDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	rows, err := s.repo.PurchaseHistory(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase history")
	}
	return rows, nil
}
