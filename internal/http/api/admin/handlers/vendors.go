package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// VendorHandler manages vendors.
type VendorHandler struct {
	db          *gorm.DB
	invalidator Invalidator
}

// NewVendorHandler constructs a VendorHandler.
func NewVendorHandler(db *gorm.DB, invalidator Invalidator) *VendorHandler {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	return &VendorHandler{db: db, invalidator: invalidator}
}

type vendorRequest struct {
	Name         *string `json:"name"`
	ContactEmail *string `json:"contact_email"`
	Phone        *string `json:"phone"`
	IsActive     *bool   `json:"is_active"`
}

// Create adds a vendor.
func (h *VendorHandler) Create(c *gin.Context) {
	var body vendorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	vendor := models.Vendor{Name: strings.TrimSpace(*body.Name), IsActive: true}
	if body.ContactEmail != nil {
		vendor.ContactEmail = strings.TrimSpace(*body.ContactEmail)
	}
	if body.Phone != nil {
		vendor.Phone = strings.TrimSpace(*body.Phone)
	}
	if body.IsActive != nil {
		vendor.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&vendor).Error; errCreate != nil {
		if isDuplicateKey(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "vendor already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create vendor failed"})
		return
	}
	h.invalidator.Invalidate()
	c.JSON(http.StatusCreated, formatVendor(&vendor))
}

// List returns all vendors.
func (h *VendorHandler) List(c *gin.Context) {
	var rows []models.Vendor
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list vendors failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatVendor(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"vendors": out})
}

// Get returns a vendor and its rate cards.
func (h *VendorHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var vendor models.Vendor
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("RateCards").Preload("RateCards.Product").
		First(&vendor, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := formatVendor(&vendor)
	cards := make([]gin.H, 0, len(vendor.RateCards))
	for i := range vendor.RateCards {
		cards = append(cards, formatRateCard(&vendor.RateCards[i]))
	}
	out["rate_cards"] = cards
	c.JSON(http.StatusOK, out)
}

// Update modifies a vendor.
func (h *VendorHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body vendorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.ContactEmail != nil {
		updates["contact_email"] = strings.TrimSpace(*body.ContactEmail)
	}
	if body.Phone != nil {
		updates["phone"] = strings.TrimSpace(*body.Phone)
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Vendor{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "vendor already exists"})
			return
		}
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

// Delete removes a vendor and its rate cards.
func (h *VendorHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var affected int64
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errRates := tx.Where("vendor_id = ?", id).Delete(&models.RateCard{}).Error; errRates != nil {
			return errRates
		}
		res := tx.Delete(&models.Vendor{}, id)
		affected = res.RowsAffected
		return res.Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidator.Invalidate()
	c.Status(http.StatusNoContent)
}

func formatVendor(v *models.Vendor) gin.H {
	return gin.H{
		"id":            v.ID,
		"name":          v.Name,
		"contact_email": v.ContactEmail,
		"phone":         v.Phone,
		"is_active":     v.IsActive,
		"created_at":    v.CreatedAt,
		"updated_at":    v.UpdatedAt,
	}
}
