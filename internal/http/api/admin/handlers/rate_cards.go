package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RateCardHandler manages vendor prices.
type RateCardHandler struct {
	db          *gorm.DB
	invalidator Invalidator
}

// NewRateCardHandler constructs a RateCardHandler.
func NewRateCardHandler(db *gorm.DB, invalidator Invalidator) *RateCardHandler {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	return &RateCardHandler{db: db, invalidator: invalidator}
}

type rateCardRequest struct {
	VendorID        *uint64  `json:"vendor_id"`
	ProductID       *uint64  `json:"product_id"`
	UnitPrice       *float64 `json:"unit_price"`
	InstallPrice    *float64 `json:"install_price"`
	MinimumQuantity *int     `json:"minimum_quantity"`
}

var errNegativeRateValue = errors.New("prices and minimum quantity must not be negative")

func (r *rateCardRequest) validate() error {
	if r.UnitPrice != nil && *r.UnitPrice < 0 {
		return errNegativeRateValue
	}
	if r.InstallPrice != nil && *r.InstallPrice < 0 {
		return errNegativeRateValue
	}
	if r.MinimumQuantity != nil && *r.MinimumQuantity < 0 {
		return errNegativeRateValue
	}
	return nil
}

// Create adds a rate card. A vendor can price a product only once.
func (h *RateCardHandler) Create(c *gin.Context) {
	var body rateCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.VendorID == nil || *body.VendorID == 0 || body.ProductID == nil || *body.ProductID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id and product_id are required"})
		return
	}
	if body.UnitPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing unit_price"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	ctx := c.Request.Context()
	var vendorCount, productCount int64
	if errVendor := h.db.WithContext(ctx).Model(&models.Vendor{}).Where("id = ?", *body.VendorID).Count(&vendorCount).Error; errVendor != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if errProduct := h.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", *body.ProductID).Count(&productCount).Error; errProduct != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if vendorCount == 0 || productCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown vendor or product"})
		return
	}

	card := models.RateCard{
		VendorID:  *body.VendorID,
		ProductID: *body.ProductID,
		UnitPrice: *body.UnitPrice,
	}
	if body.InstallPrice != nil {
		card.InstallPrice = *body.InstallPrice
	}
	if body.MinimumQuantity != nil {
		card.MinimumQuantity = *body.MinimumQuantity
	}
	if errCreate := h.db.WithContext(ctx).Create(&card).Error; errCreate != nil {
		if isDuplicateKey(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "rate card already exists for vendor and product"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rate card failed"})
		return
	}
	h.invalidator.Invalidate()
	c.JSON(http.StatusCreated, formatRateCard(&card))
}

// List returns rate cards, optionally for one vendor or product.
func (h *RateCardHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.RateCard{}).Preload("Vendor").Preload("Product")
	if vendorID := parseIntQuery(c, "vendor_id", 0); vendorID > 0 {
		q = q.Where("vendor_id = ?", vendorID)
	}
	if productID := parseIntQuery(c, "product_id", 0); productID > 0 {
		q = q.Where("product_id = ?", productID)
	}
	var rows []models.RateCard
	if errFind := q.Order("product_id ASC, unit_price ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rate cards failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRateCard(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rate_cards": out})
}

// Update modifies a rate card's prices.
func (h *RateCardHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body rateCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errValidate := body.validate(); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.UnitPrice != nil {
		updates["unit_price"] = *body.UnitPrice
	}
	if body.InstallPrice != nil {
		updates["install_price"] = *body.InstallPrice
	}
	if body.MinimumQuantity != nil {
		updates["minimum_quantity"] = *body.MinimumQuantity
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.RateCard{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidator.Invalidate()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a rate card.
func (h *RateCardHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.RateCard{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidator.Invalidate()
	c.Status(http.StatusNoContent)
}

func formatRateCard(r *models.RateCard) gin.H {
	out := gin.H{
		"id":               r.ID,
		"vendor_id":        r.VendorID,
		"product_id":       r.ProductID,
		"unit_price":       r.UnitPrice,
		"install_price":    r.InstallPrice,
		"minimum_quantity": r.MinimumQuantity,
		"updated_at":       r.UpdatedAt,
	}
	if r.Vendor.ID != 0 {
		out["vendor_name"] = r.Vendor.Name
	}
	if r.Product.ID != 0 {
		out["product_sku"] = r.Product.SKU
		out["product_name"] = r.Product.Name
	}
	return out
}
