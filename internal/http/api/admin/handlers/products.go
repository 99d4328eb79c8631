package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductHandler manages the fixture catalogue.
type ProductHandler struct {
	db          *gorm.DB
	invalidator Invalidator
}

// NewProductHandler constructs a ProductHandler. Writes call invalidator so
// cached rate cards are rebuilt.
func NewProductHandler(db *gorm.DB, invalidator Invalidator) *ProductHandler {
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	return &ProductHandler{db: db, invalidator: invalidator}
}

type productRequest struct {
	SKU       *string  `json:"sku"`
	Name      *string  `json:"name"`
	Category  *string  `json:"category"`
	Unit      *string  `json:"unit"`
	BasePrice *float64 `json:"base_price"`
	IsActive  *bool    `json:"is_active"`
}

// Create adds a product.
func (h *ProductHandler) Create(c *gin.Context) {
	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.SKU == nil || strings.TrimSpace(*body.SKU) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing sku"})
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	product := models.Product{
		SKU:      strings.ToUpper(strings.TrimSpace(*body.SKU)),
		Name:     strings.TrimSpace(*body.Name),
		Unit:     "pc",
		IsActive: true,
	}
	if body.Category != nil {
		product.Category = strings.TrimSpace(*body.Category)
	}
	if body.Unit != nil && strings.TrimSpace(*body.Unit) != "" {
		product.Unit = strings.TrimSpace(*body.Unit)
	}
	if body.BasePrice != nil {
		if *body.BasePrice < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "base_price must not be negative"})
			return
		}
		product.BasePrice = *body.BasePrice
	}
	if body.IsActive != nil {
		product.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&product).Error; errCreate != nil {
		if isDuplicateKey(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create product failed"})
		return
	}
	h.invalidator.Invalidate()
	c.JSON(http.StatusCreated, formatProduct(&product))
}

// List returns products, optionally filtered by category, activity and text.
func (h *ProductHandler) List(c *gin.Context) {
	var (
		categoryQ = strings.TrimSpace(c.Query("category"))
		activeQ   = strings.TrimSpace(c.Query("active"))
		textQ     = strings.TrimSpace(c.Query("q"))
	)
	page, pageSize, offset := dbutil.Paginate(parseIntQuery(c, "page", 1), parseIntQuery(c, "page_size", 50), 200)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Product{})
	if categoryQ != "" {
		q = q.Where("category = ?", categoryQ)
	}
	switch activeQ {
	case "true", "1":
		q = q.Where("is_active = ?", true)
	case "false", "0":
		q = q.Where("is_active = ?", false)
	}
	if textQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+textQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "sku"), pattern, pattern)
	}
	var total int64
	if errCount := q.Session(&gorm.Session{}).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count products failed"})
		return
	}
	var rows []models.Product
	if errFind := q.Order("category ASC, name ASC, id ASC").Offset(offset).Limit(pageSize).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProduct(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "total": total, "page": page, "page_size": pageSize})
}

// Get returns a product.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

// Update modifies a product.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*body.SKU))
		if sku == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing sku"})
			return
		}
		updates["sku"] = sku
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.Category != nil {
		updates["category"] = strings.TrimSpace(*body.Category)
	}
	if body.Unit != nil && strings.TrimSpace(*body.Unit) != "" {
		updates["unit"] = strings.TrimSpace(*body.Unit)
	}
	if body.BasePrice != nil {
		if *body.BasePrice < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "base_price must not be negative"})
			return
		}
		updates["base_price"] = *body.BasePrice
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku already exists"})
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

// Delete removes a product together with its rate cards.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var affected int64
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errRates := tx.Where("product_id = ?", id).Delete(&models.RateCard{}).Error; errRates != nil {
			return errRates
		}
		res := tx.Delete(&models.Product{}, id)
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

func formatProduct(p *models.Product) gin.H {
	return gin.H{
		"id":         p.ID,
		"sku":        p.SKU,
		"name":       p.Name,
		"category":   p.Category,
		"unit":       p.Unit,
		"base_price": p.BasePrice,
		"is_active":  p.IsActive,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}
