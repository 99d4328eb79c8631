package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/quote"
	"github.com/fixturedesk/leaddesk/internal/security"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errQuotationLocked = errors.New("only draft quotations can be edited")

// QuotationHandler creates, prices and exports quotations.
type QuotationHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuotationHandler constructs a QuotationHandler.
func NewQuotationHandler(db *gorm.DB) *QuotationHandler {
	return &QuotationHandler{db: db, now: time.Now}
}

type quotationRequest struct {
	ProjectID       *uint64            `json:"project_id"`
	LeadID          *uint64            `json:"lead_id"`
	ClientName      *string            `json:"client_name"`
	Currency        *string            `json:"currency"`
	DiscountPercent *decimal.Decimal   `json:"discount_percent"`
	TaxPercent      *decimal.Decimal   `json:"tax_percent"`
	Notes           *string            `json:"notes"`
	Items           *[]quote.LineInput `json:"items"`
}

// Create prices the items and stores a draft quotation with a fresh number.
func (h *QuotationHandler) Create(c *gin.Context) {
	var body quotationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Items == nil || len(*body.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one item is required"})
		return
	}
	discount := decimal.Zero
	if body.DiscountPercent != nil {
		discount = *body.DiscountPercent
	}
	tax := defaultTaxPercent()
	if body.TaxPercent != nil {
		tax = *body.TaxPercent
	}
	totals, errPrice := quote.Price(*body.Items, discount, tax)
	if errPrice != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPrice.Error()})
		return
	}

	placeholder, errRandom := security.GenerateRandomString(12)
	if errRandom != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate number failed"})
		return
	}
	quotation := models.Quotation{
		Number:    "pending-" + placeholder,
		ProjectID: body.ProjectID,
		LeadID:    body.LeadID,
		Currency:  "USD",
		Status:    models.QuotationStatusDraft,
	}
	if body.ClientName != nil {
		quotation.ClientName = strings.TrimSpace(*body.ClientName)
	}
	if body.Currency != nil && strings.TrimSpace(*body.Currency) != "" {
		quotation.Currency = strings.ToUpper(strings.TrimSpace(*body.Currency))
	}
	if body.Notes != nil {
		quotation.Notes = *body.Notes
	}
	quote.Fill(&quotation, discount, tax, totals)

	prefix := internalsettings.String(internalsettings.QuotationPrefixKey, internalsettings.DefaultQuotationPrefix)
	now := h.now().UTC()
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&quotation).Error; errCreate != nil {
			return errCreate
		}
		quotation.Number = quote.FormatNumber(prefix, now, int64(quotation.ID))
		return tx.Model(&models.Quotation{}).Where("id = ?", quotation.ID).Update("number", quotation.Number).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("create quotation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create quotation failed"})
		return
	}
	c.JSON(http.StatusCreated, formatQuotation(&quotation, true))
}

// List returns quotations newest first.
func (h *QuotationHandler) List(c *gin.Context) {
	var (
		statusQ  = strings.TrimSpace(c.Query("status"))
		projectQ = parseIntQuery(c, "project_id", 0)
	)
	page, pageSize, offset := dbutil.Paginate(parseIntQuery(c, "page", 1), parseIntQuery(c, "page_size", 20), 100)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Quotation{})
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if projectQ > 0 {
		q = q.Where("project_id = ?", projectQ)
	}
	var total int64
	if errCount := q.Session(&gorm.Session{}).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count quotations failed"})
		return
	}
	var rows []models.Quotation
	if errFind := q.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list quotations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatQuotation(&rows[i], false))
	}
	c.JSON(http.StatusOK, gin.H{"quotations": out, "total": total, "page": page, "page_size": pageSize})
}

// Get returns a quotation with its items.
func (h *QuotationHandler) Get(c *gin.Context) {
	quotation, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatQuotation(quotation, true))
}

// Update re-prices a draft quotation.
func (h *QuotationHandler) Update(c *gin.Context) {
	quotation, ok := h.load(c)
	if !ok {
		return
	}
	if quotation.Status != models.QuotationStatusDraft {
		c.JSON(http.StatusConflict, gin.H{"error": errQuotationLocked.Error()})
		return
	}
	var body quotationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	discount, errDiscount := quote.ParseAmount(quotation.DiscountPercent)
	tax, errTax := quote.ParseAmount(quotation.TaxPercent)
	if errDiscount != nil || errTax != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored quotation is corrupt"})
		return
	}
	if body.DiscountPercent != nil {
		discount = *body.DiscountPercent
	}
	if body.TaxPercent != nil {
		tax = *body.TaxPercent
	}
	lines := make([]quote.LineInput, 0, len(quotation.Items))
	if body.Items != nil {
		lines = *body.Items
	} else {
		for _, item := range quotation.Items {
			qty, _ := quote.ParseAmount(item.Quantity)
			price, _ := quote.ParseAmount(item.UnitPrice)
			lines = append(lines, quote.LineInput{
				ProductID:   item.ProductID,
				Description: item.Description,
				Quantity:    qty,
				UnitPrice:   price,
			})
		}
	}
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one item is required"})
		return
	}
	totals, errPrice := quote.Price(lines, discount, tax)
	if errPrice != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPrice.Error()})
		return
	}
	if body.ClientName != nil {
		quotation.ClientName = strings.TrimSpace(*body.ClientName)
	}
	if body.Currency != nil && strings.TrimSpace(*body.Currency) != "" {
		quotation.Currency = strings.ToUpper(strings.TrimSpace(*body.Currency))
	}
	if body.Notes != nil {
		quotation.Notes = *body.Notes
	}
	if body.ProjectID != nil {
		quotation.ProjectID = body.ProjectID
	}
	if body.LeadID != nil {
		quotation.LeadID = body.LeadID
	}
	quote.Fill(quotation, discount, tax, totals)

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDelete := tx.Where("quotation_id = ?", quotation.ID).Delete(&models.QuotationItem{}).Error; errDelete != nil {
			return errDelete
		}
		for i := range quotation.Items {
			quotation.Items[i].QuotationID = quotation.ID
		}
		if len(quotation.Items) > 0 {
			if errItems := tx.Create(&quotation.Items).Error; errItems != nil {
				return errItems
			}
		}
		return tx.Model(&models.Quotation{}).Where("id = ?", quotation.ID).Updates(map[string]any{
			"project_id":       quotation.ProjectID,
			"lead_id":          quotation.LeadID,
			"client_name":      quotation.ClientName,
			"currency":         quotation.Currency,
			"discount_percent": quotation.DiscountPercent,
			"tax_percent":      quotation.TaxPercent,
			"subtotal":         quotation.Subtotal,
			"discount":         quotation.Discount,
			"tax":              quotation.Tax,
			"total":            quotation.Total,
			"notes":            quotation.Notes,
			"updated_at":       time.Now().UTC(),
		}).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("update quotation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formatQuotation(quotation, true))
}

type quotationStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a quotation through its lifecycle.
func (h *QuotationHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body quotationStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := models.QuotationStatus(strings.TrimSpace(body.Status))
	switch status {
	case models.QuotationStatusDraft, models.QuotationStatusSent, models.QuotationStatusAccepted, models.QuotationStatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Quotation{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a quotation and its items.
func (h *QuotationHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var affected int64
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errItems := tx.Where("quotation_id = ?", id).Delete(&models.QuotationItem{}).Error; errItems != nil {
			return errItems
		}
		res := tx.Delete(&models.Quotation{}, id)
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
	c.Status(http.StatusNoContent)
}

// Download renders the quotation as an xlsx workbook.
func (h *QuotationHandler) Download(c *gin.Context) {
	quotation, ok := h.load(c)
	if !ok {
		return
	}
	siteName := internalsettings.String(internalsettings.SiteNameKey, internalsettings.DefaultSiteName)
	var buf bytes.Buffer
	if errWrite := quote.WriteXLSX(&buf, *quotation, siteName); errWrite != nil {
		log.WithError(errWrite).WithField("quotation", quotation.Number).Error("render quotation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render quotation failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", quotation.Number+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *QuotationHandler) load(c *gin.Context) (*models.Quotation, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var quotation models.Quotation
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&quotation, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &quotation, true
}

// defaultTaxPercent reads the tax setting, accepting a JSON string or number.
func defaultTaxPercent() decimal.Decimal {
	raw, ok := internalsettings.DBConfigValue(internalsettings.DefaultTaxPercentKey)
	if !ok {
		return decimal.RequireFromString(internalsettings.DefaultTaxPercent)
	}
	text, okString := internalsettings.ParseString(raw)
	if !okString {
		text = strings.TrimSpace(string(raw))
	}
	value, errParse := decimal.NewFromString(text)
	if errParse != nil || value.IsNegative() {
		return decimal.RequireFromString(internalsettings.DefaultTaxPercent)
	}
	return value
}

func formatQuotation(q *models.Quotation, withItems bool) gin.H {
	out := gin.H{
		"id":               q.ID,
		"number":           q.Number,
		"project_id":       q.ProjectID,
		"lead_id":          q.LeadID,
		"client_name":      q.ClientName,
		"currency":         q.Currency,
		"status":           q.Status,
		"discount_percent": q.DiscountPercent,
		"tax_percent":      q.TaxPercent,
		"subtotal":         q.Subtotal,
		"discount":         q.Discount,
		"tax":              q.Tax,
		"total":            q.Total,
		"notes":            q.Notes,
		"created_at":       q.CreatedAt,
		"updated_at":       q.UpdatedAt,
	}
	if withItems {
		items := make([]gin.H, 0, len(q.Items))
		for _, item := range q.Items {
			items = append(items, gin.H{
				"id":          item.ID,
				"product_id":  item.ProductID,
				"description": item.Description,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
				"line_total":  item.LineTotal,
			})
		}
		out["items"] = items
	}
	return out
}
