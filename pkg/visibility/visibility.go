package visibility

import (
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

// ProductVisible applies the catalog rule for a viewer role. An empty role is
// an anonymous viewer. Customers and anonymous viewers see genuine retail
// listings (retailer owner, no wholesaler, not proxied) and proxy listings;
// wholesaler-only listings are B2B and stay hidden from them. Sellers see
// everything.
func ProductVisible(role enums.Role, product models.Product) bool {
	if role.IsSeller() {
		return true
	}
	if product.ProxyAvailable {
		return true
	}
	return product.RetailerID != nil && product.WholesalerID == nil
}

// EnsureProductVisible returns NOT_FOUND when the viewer may not see product.
func EnsureProductVisible(role enums.Role, product *models.Product) error {
	if product == nil || !ProductVisible(role, *product) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// Scope narrows a products query to the rows ProductVisible accepts so that
// limits and pagination count only visible rows.
func Scope(role enums.Role) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if role.IsSeller() {
			return db
		}
		return db.Where("(products.proxy_available = ?) OR (products.retailer_id IS NOT NULL AND products.wholesaler_id IS NULL)", true)
	}
}
