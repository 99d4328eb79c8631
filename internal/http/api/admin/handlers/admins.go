package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/http/api/admin/permissions"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var (
	errSuperAdminRequired = errors.New("only super admins can grant super admin")
	errSuperAdminTarget   = errors.New("only super admins can modify a super admin")
	errPermissionNotHeld  = errors.New("cannot grant a permission you do not hold")
)

// AdminHandler manages staff accounts.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type createAdminRequest struct {
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	IsSuperAdmin bool     `json:"is_super_admin"`
	Permissions  []string `json:"permissions"`
}

// Create adds a staff account.
func (h *AdminHandler) Create(c *gin.Context) {
	var body createAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	if len(body.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}
	if errValidate := permissions.Validate(body.Permissions); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}
	if body.IsSuperAdmin && !c.GetBool("adminIsSuperAdmin") {
		c.JSON(http.StatusForbidden, gin.H{"error": errSuperAdminRequired.Error()})
		return
	}
	if errGrant := checkGrant(c, body.Permissions); errGrant != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": errGrant.Error()})
		return
	}
	perms, errMarshal := permissions.Marshal(body.Permissions)
	if errMarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permissions"})
		return
	}
	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	admin := models.Admin{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsSuperAdmin: body.IsSuperAdmin,
		Permissions:  perms,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&admin).Error; errCreate != nil {
		if isDuplicateKey(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create admin failed"})
		return
	}
	c.JSON(http.StatusCreated, formatAdmin(&admin))
}

// List returns every staff account.
func (h *AdminHandler) List(c *gin.Context) {
	var rows []models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Order("username ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list admins failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAdmin(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"admins": out})
}

type updateAdminRequest struct {
	Active       *bool     `json:"active"`
	IsSuperAdmin *bool     `json:"is_super_admin"`
	Permissions  *[]string `json:"permissions"`
	Password     *string   `json:"password"`
}

// Update changes flags, permissions or the password of an account.
func (h *AdminHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateAdminRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if id == adminIDFromContext(c) && body.Active != nil && !*body.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable yourself"})
		return
	}
	if !c.GetBool("adminIsSuperAdmin") {
		if body.IsSuperAdmin != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": errSuperAdminRequired.Error()})
			return
		}
		if !h.checkTarget(c, id) {
			return
		}
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if body.IsSuperAdmin != nil {
		updates["is_super_admin"] = *body.IsSuperAdmin
	}
	if body.Permissions != nil {
		if errValidate := permissions.Validate(*body.Permissions); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}
		if errGrant := checkGrant(c, *body.Permissions); errGrant != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": errGrant.Error()})
			return
		}
		perms, errMarshal := permissions.Marshal(*body.Permissions)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permissions"})
			return
		}
		updates["permissions"] = perms
	}
	if body.Password != nil {
		if len(*body.Password) < minPasswordLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
			return
		}
		hash, errHash := security.HashPassword(*body.Password)
		if errHash != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		updates["password"] = hash
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).Where("id = ?", id).Updates(updates)
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

// Delete removes an account other than the caller's own.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if id == adminIDFromContext(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete yourself"})
		return
	}
	if !c.GetBool("adminIsSuperAdmin") && !h.checkTarget(c, id) {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Admin{}, id)
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

// Permissions lists every grantable permission.
func (h *AdminHandler) Permissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permissions": permissions.Definitions()})
}

// checkTarget stops a non-super caller from touching a super admin account.
// It writes the response and returns false when the request must stop.
func (h *AdminHandler) checkTarget(c *gin.Context, id uint64) bool {
	var target models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Select("id", "is_super_admin").First(&target, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return false
	}
	if target.IsSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": errSuperAdminTarget.Error()})
		return false
	}
	return true
}

// checkGrant limits a non-super caller to permissions it holds itself.
func checkGrant(c *gin.Context, perms []string) error {
	if c.GetBool("adminIsSuperAdmin") {
		return nil
	}
	value, _ := c.Get("adminPermissions")
	held, _ := value.([]string)
	for _, perm := range permissions.Normalize(perms) {
		if !permissions.Has(held, perm) {
			return fmt.Errorf("%w: %s", errPermissionNotHeld, perm)
		}
	}
	return nil
}

func formatAdmin(a *models.Admin) gin.H {
	return gin.H{
		"id":             a.ID,
		"username":       a.Username,
		"active":         a.Active,
		"is_super_admin": a.IsSuperAdmin,
		"permissions":    permissions.Parse(a.Permissions),
		"totp_enabled":   a.TOTPSecret != "",
		"created_at":     a.CreatedAt,
		"updated_at":     a.UpdatedAt,
	}
}
