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

var errLeadAlreadyConverted = errors.New("lead already converted")

var leadSortColumns = map[string]string{
	"created_at":      "created_at",
	"updated_at":      "updated_at",
	"name":            "name",
	"status":          "status",
	"estimated_value": "estimated_value",
}

// LeadHandler manages sales leads.
type LeadHandler struct {
	db *gorm.DB
}

// NewLeadHandler constructs a LeadHandler.
func NewLeadHandler(db *gorm.DB) *LeadHandler {
	return &LeadHandler{db: db}
}

type createLeadRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Company        string  `json:"company"`
	Source         string  `json:"source"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes"`
	EstimatedValue float64 `json:"estimated_value"`
}

// Create adds a lead.
func (h *LeadHandler) Create(c *gin.Context) {
	var body createLeadRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	status := models.LeadStatusNew
	if raw := strings.TrimSpace(body.Status); raw != "" {
		status = models.LeadStatus(raw)
		if !status.Valid() || status == models.LeadStatusConverted {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if body.EstimatedValue < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estimated_value must not be negative"})
		return
	}
	source := strings.TrimSpace(body.Source)
	if source == "" {
		source = "admin"
	}

	lead := models.Lead{
		Name:           name,
		Email:          strings.ToLower(strings.TrimSpace(body.Email)),
		Phone:          strings.TrimSpace(body.Phone),
		Company:        strings.TrimSpace(body.Company),
		Source:         source,
		Status:         status,
		Notes:          body.Notes,
		EstimatedValue: body.EstimatedValue,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&lead).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create lead failed"})
		return
	}
	c.JSON(http.StatusCreated, formatLead(&lead))
}

// List returns leads filtered by status, source and a search term.
func (h *LeadHandler) List(c *gin.Context) {
	var (
		statusQ = strings.TrimSpace(c.Query("status"))
		sourceQ = strings.TrimSpace(c.Query("source"))
		searchQ = strings.TrimSpace(c.Query("q"))
	)
	page, pageSize, offset := dbutil.Paginate(parseIntQuery(c, "page", 1), parseIntQuery(c, "page_size", 20), 100)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Lead{})
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if sourceQ != "" {
		q = q.Where("source = ?", sourceQ)
	}
	if searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "company"),
			pattern, pattern, pattern,
		)
	}

	var total int64
	if errCount := q.Session(&gorm.Session{}).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count leads failed"})
		return
	}
	var rows []models.Lead
	if errFind := q.Order(orderClause(c.Query("sort"), leadSortColumns, "created_at DESC, id DESC")).
		Offset(offset).Limit(pageSize).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list leads failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatLead(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"leads": out, "total": total, "page": page, "page_size": pageSize})
}

// Get returns a lead by ID.
func (h *LeadHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var lead models.Lead
	if errFind := h.db.WithContext(c.Request.Context()).First(&lead, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatLead(&lead))
}

type updateLeadRequest struct {
	Name           *string  `json:"name"`
	Email          *string  `json:"email"`
	Phone          *string  `json:"phone"`
	Company        *string  `json:"company"`
	Status         *string  `json:"status"`
	Notes          *string  `json:"notes"`
	EstimatedValue *float64 `json:"estimated_value"`
}

// Update modifies a lead. Conversion goes through Convert.
func (h *LeadHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateLeadRequest
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
	if body.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*body.Email))
	}
	if body.Phone != nil {
		updates["phone"] = strings.TrimSpace(*body.Phone)
	}
	if body.Company != nil {
		updates["company"] = strings.TrimSpace(*body.Company)
	}
	if body.Status != nil {
		status := models.LeadStatus(strings.TrimSpace(*body.Status))
		if !status.Valid() || status == models.LeadStatusConverted {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = status
	}
	if body.Notes != nil {
		updates["notes"] = *body.Notes
	}
	if body.EstimatedValue != nil {
		if *body.EstimatedValue < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "estimated_value must not be negative"})
			return
		}
		updates["estimated_value"] = *body.EstimatedValue
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Lead{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a lead.
func (h *LeadHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Lead{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type convertLeadRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Convert turns a lead into a project and marks the lead converted.
func (h *LeadHandler) Convert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body convertLeadRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	var project models.Project
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if errFind := tx.First(&lead, id).Error; errFind != nil {
			return errFind
		}
		if lead.Status == models.LeadStatusConverted || lead.ProjectID != nil {
			return errLeadAlreadyConverted
		}

		clientName := lead.Company
		if clientName == "" {
			clientName = lead.Name
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			name = clientName
		}
		leadID := lead.ID
		project = models.Project{
			LeadID:     &leadID,
			Name:       name,
			ClientName: clientName,
			Location:   strings.TrimSpace(body.Location),
			Status:     models.ProjectStatusActive,
			Notes:      lead.Notes,
		}
		if errCreate := tx.Create(&project).Error; errCreate != nil {
			return errCreate
		}
		return tx.Model(&lead).Updates(map[string]any{
			"status":     models.LeadStatusConverted,
			"project_id": project.ID,
			"updated_at": time.Now().UTC(),
		}).Error
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errTx, errLeadAlreadyConverted):
			c.JSON(http.StatusConflict, gin.H{"error": errLeadAlreadyConverted.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "convert lead failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, formatProject(&project))
}

func formatLead(l *models.Lead) gin.H {
	return gin.H{
		"id":              l.ID,
		"name":            l.Name,
		"email":           l.Email,
		"phone":           l.Phone,
		"company":         l.Company,
		"source":          l.Source,
		"status":          l.Status,
		"notes":           l.Notes,
		"estimated_value": l.EstimatedValue,
		"project_id":      l.ProjectID,
		"created_at":      l.CreatedAt,
		"updated_at":      l.UpdatedAt,
	}
}
