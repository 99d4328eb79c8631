package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/security"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MFAHandler manages TOTP enrolment for the signed-in admin.
type MFAHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, now: time.Now}
}

func (h *MFAHandler) currentAdmin(c *gin.Context) (*models.Admin, bool) {
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminIDFromContext(c)).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return nil, false
	}
	return &admin, true
}

// Status reports whether TOTP is enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totp_enabled": admin.TOTPSecret != "",
		"totp_pending": admin.PendingTOTPSecret != "",
	})
}

// PrepareTOTP generates a secret that becomes active once confirmed.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}
	issuer := internalsettings.String(internalsettings.SiteNameKey, internalsettings.DefaultSiteName)
	enrollment, errGenerate := security.GenerateTOTP(issuer, admin.Username)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp failed"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(admin).
		Updates(map[string]any{"pending_totp_secret": enrollment.Secret, "updated_at": h.now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save totp failed"})
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP activates the pending secret after checking a code from it.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.PendingTOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending totp"})
		return
	}
	if errTOTP := security.ValidateTOTP(admin.PendingTOTPSecret, strings.TrimSpace(body.Code), h.now()); errTOTP != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(admin).Updates(map[string]any{
		"totp_secret":         admin.PendingTOTPSecret,
		"pending_totp_secret": "",
		"updated_at":          h.now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DisableTOTP turns TOTP off after checking a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if errTOTP := security.ValidateTOTP(admin.TOTPSecret, body.Code, h.now()); errTOTP != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(admin).Updates(map[string]any{
		"totp_secret":         "",
		"pending_totp_secret": "",
		"updated_at":          h.now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
