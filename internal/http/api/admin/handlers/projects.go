package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectHandler manages projects and their washroom designs.
type ProjectHandler struct {
	db *gorm.DB
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

type createProjectRequest struct {
	Name       string  `json:"name"`
	ClientName string  `json:"client_name"`
	Location   string  `json:"location"`
	Status     string  `json:"status"`
	Notes      string  `json:"notes"`
	LeadID     *uint64 `json:"lead_id"`
}

// Create adds a project.
func (h *ProjectHandler) Create(c *gin.Context) {
	var body createProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	status := models.ProjectStatusActive
	if raw := strings.TrimSpace(body.Status); raw != "" {
		status = models.ProjectStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	project := models.Project{
		LeadID:     body.LeadID,
		Name:       name,
		ClientName: strings.TrimSpace(body.ClientName),
		Location:   strings.TrimSpace(body.Location),
		Status:     status,
		Notes:      body.Notes,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&project).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}
	c.JSON(http.StatusCreated, formatProject(&project))
}

// List returns projects, optionally filtered by status and name.
func (h *ProjectHandler) List(c *gin.Context) {
	var (
		statusQ = strings.TrimSpace(c.Query("status"))
		nameQ   = strings.TrimSpace(c.Query("name"))
	)
	page, pageSize, offset := dbutil.Paginate(parseIntQuery(c, "page", 1), parseIntQuery(c, "page_size", 20), 100)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Project{})
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if nameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+nameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	var total int64
	if errCount := q.Session(&gorm.Session{}).Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count projects failed"})
		return
	}
	var rows []models.Project
	if errFind := q.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProject(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out, "total": total, "page": page, "page_size": pageSize})
}

// Get returns a project with its designs.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Designs", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := formatProject(&project)
	designs := make([]gin.H, 0, len(project.Designs))
	for i := range project.Designs {
		designs = append(designs, formatDesign(&project.Designs[i]))
	}
	out["designs"] = designs
	c.JSON(http.StatusOK, out)
}

type updateProjectRequest struct {
	Name       *string `json:"name"`
	ClientName *string `json:"client_name"`
	Location   *string `json:"location"`
	Status     *string `json:"status"`
	Notes      *string `json:"notes"`
}

// Update modifies a project.
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateProjectRequest
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
	if body.ClientName != nil {
		updates["client_name"] = strings.TrimSpace(*body.ClientName)
	}
	if body.Location != nil {
		updates["location"] = strings.TrimSpace(*body.Location)
	}
	if body.Status != nil {
		status := models.ProjectStatus(strings.TrimSpace(*body.Status))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = status
	}
	if body.Notes != nil {
		updates["notes"] = *body.Notes
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Project{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a project and its designs.
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var affected int64
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDesigns := tx.Where("project_id = ?", id).Delete(&models.WashroomDesign{}).Error; errDesigns != nil {
			return errDesigns
		}
		if errLeads := tx.Model(&models.Lead{}).Where("project_id = ?", id).Update("project_id", nil).Error; errLeads != nil {
			return errLeads
		}
		res := tx.Delete(&models.Project{}, id)
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

// fixtureLine is one entry of a design's fixture list.
type fixtureLine struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type designRequest struct {
	Name     *string        `json:"name"`
	Gender   *string        `json:"gender"`
	Cubicles *int           `json:"cubicles"`
	Fixtures *[]fixtureLine `json:"fixtures"`
	Notes    *string        `json:"notes"`
}

var errInvalidFixtures = errors.New("fixtures need a product_id and a positive quantity")

func encodeFixtures(lines []fixtureLine) (datatypes.JSON, error) {
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return nil, errInvalidFixtures
		}
	}
	if lines == nil {
		lines = []fixtureLine{}
	}
	payload, errMarshal := json.Marshal(lines)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(payload), nil
}

// ListDesigns returns the designs of a project.
func (h *ProjectHandler) ListDesigns(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var rows []models.WashroomDesign
	if errFind := h.db.WithContext(c.Request.Context()).Where("project_id = ?", projectID).
		Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list designs failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatDesign(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"designs": out})
}

// CreateDesign adds a design to a project.
func (h *ProjectHandler) CreateDesign(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body designRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).Select("id").First(&project, projectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	design := models.WashroomDesign{ProjectID: projectID, Name: strings.TrimSpace(*body.Name)}
	if body.Gender != nil {
		design.Gender = strings.TrimSpace(*body.Gender)
	}
	if body.Cubicles != nil {
		if *body.Cubicles < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cubicles must not be negative"})
			return
		}
		design.Cubicles = *body.Cubicles
	}
	var lines []fixtureLine
	if body.Fixtures != nil {
		lines = *body.Fixtures
	}
	fixtures, errFixtures := encodeFixtures(lines)
	if errFixtures != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errFixtures.Error()})
		return
	}
	design.Fixtures = fixtures
	if body.Notes != nil {
		design.Notes = *body.Notes
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&design).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create design failed"})
		return
	}
	c.JSON(http.StatusCreated, formatDesign(&design))
}

// UpdateDesign modifies a design.
func (h *ProjectHandler) UpdateDesign(c *gin.Context) {
	id, ok := parseIDParam(c, "designID")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body designRequest
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
	if body.Gender != nil {
		updates["gender"] = strings.TrimSpace(*body.Gender)
	}
	if body.Cubicles != nil {
		if *body.Cubicles < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cubicles must not be negative"})
			return
		}
		updates["cubicles"] = *body.Cubicles
	}
	if body.Fixtures != nil {
		fixtures, errFixtures := encodeFixtures(*body.Fixtures)
		if errFixtures != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFixtures.Error()})
			return
		}
		updates["fixtures"] = fixtures
	}
	if body.Notes != nil {
		updates["notes"] = *body.Notes
	}
	projectID, _ := parseIDParam(c, "id")
	res := h.db.WithContext(c.Request.Context()).Model(&models.WashroomDesign{}).
		Where("id = ? AND project_id = ?", id, projectID).Updates(updates)
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

// DeleteDesign removes a design.
func (h *ProjectHandler) DeleteDesign(c *gin.Context) {
	id, ok := parseIDParam(c, "designID")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	projectID, _ := parseIDParam(c, "id")
	res := h.db.WithContext(c.Request.Context()).Where("id = ? AND project_id = ?", id, projectID).Delete(&models.WashroomDesign{})
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

func formatProject(p *models.Project) gin.H {
	return gin.H{
		"id":          p.ID,
		"lead_id":     p.LeadID,
		"name":        p.Name,
		"client_name": p.ClientName,
		"location":    p.Location,
		"status":      p.Status,
		"notes":       p.Notes,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

func formatDesign(d *models.WashroomDesign) gin.H {
	return gin.H{
		"id":         d.ID,
		"project_id": d.ProjectID,
		"name":       d.Name,
		"gender":     d.Gender,
		"cubicles":   d.Cubicles,
		"fixtures":   d.Fixtures,
		"notes":      d.Notes,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}
}
