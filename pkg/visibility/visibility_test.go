package visibility

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/errors"
)

func idPtr() *uuid.UUID {
	id := uuid.New()
	return &id
}

func TestProductVisible(t *testing.T) {
	retail := models.Product{RetailerID: idPtr()}
	wholesaleOnly := models.Product{WholesalerID: idPtr()}
	proxied := models.Product{WholesalerID: idPtr(), ProxyAvailable: true}
	proxiedByRetailer := models.Product{RetailerID: idPtr(), WholesalerID: idPtr(), ProxyAvailable: true}
	bothNoProxy := models.Product{RetailerID: idPtr(), WholesalerID: idPtr()}
	unseeded := models.Product{}

	tests := []struct {
		name    string
		role    enums.Role
		product models.Product
		want    bool
	}{
		{"customer sees retail", enums.RoleCustomer, retail, true},
		{"anonymous sees retail", "", retail, true},
		{"customer hidden wholesale", enums.RoleCustomer, wholesaleOnly, false},
		{"anonymous hidden wholesale", "", wholesaleOnly, false},
		{"customer sees proxy", enums.RoleCustomer, proxied, true},
		{"customer sees retailer proxy", enums.RoleCustomer, proxiedByRetailer, true},
		{"customer hidden dual owner without proxy", enums.RoleCustomer, bothNoProxy, false},
		{"customer hidden unseeded", enums.RoleCustomer, unseeded, false},
		{"retailer sees wholesale", enums.RoleRetailer, wholesaleOnly, true},
		{"wholesaler sees unseeded", enums.RoleWholesaler, unseeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProductVisible(tt.role, tt.product); got != tt.want {
				t.Fatalf("ProductVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureProductVisible(t *testing.T) {
	err := EnsureProductVisible(enums.RoleCustomer, &models.Product{WholesalerID: idPtr()})
	if err == nil {
		t.Fatal("expected not found")
	}
	if errors.As(err).Code() != errors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", errors.As(err).Code())
	}
	if err := EnsureProductVisible(enums.RoleCustomer, nil); err == nil {
		t.Fatal("expected not found for nil product")
	}
	if err := EnsureProductVisible(enums.RoleWholesaler, &models.Product{WholesalerID: idPtr()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScopeMatchesProductVisible(t *testing.T) {
	db := dbtest.Open(t, "visibility")
	products := []models.Product{
		{Name: "retail", RetailerID: idPtr()},
		{Name: "wholesale", WholesalerID: idPtr()},
		{Name: "proxy", RetailerID: idPtr(), WholesalerID: idPtr(), ProxyAvailable: true},
		{Name: "unseeded"},
	}
	for i := range products {
		products[i].Price = decimal.NewFromInt(10)
		products[i].Category = "grocery"
		if err := db.Create(&products[i]).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	for _, role := range []enums.Role{"", enums.RoleCustomer, enums.RoleRetailer} {
		var got []models.Product
		if err := db.Scopes(Scope(role)).Order("name").Find(&got).Error; err != nil {
			t.Fatalf("query: %v", err)
		}
		want := 0
		for _, p := range products {
			if ProductVisible(role, p) {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("role %q: scope returned %d rows, ProductVisible accepts %d", role, len(got), want)
		}
		for _, p := range got {
			if !ProductVisible(role, p) {
				t.Fatalf("role %q: scope leaked %s", role, p.Name)
			}
		}
	}
}
