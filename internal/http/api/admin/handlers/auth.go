package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/config"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/ratelimit"
	"github.com/fixturedesk/leaddesk/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	loginAttemptCooldown = time.Second
	totpAttemptCooldown  = 3 * time.Second
)

// LoginLimiter throttles login attempts per account.
type LoginLimiter interface {
	IsRateLimited(ctx context.Context, key string, cooldown time.Duration) bool
}

// AuthHandler handles admin sign-in.
type AuthHandler struct {
	db      *gorm.DB
	jwtCfg  config.JWTConfig
	limiter LoginLimiter
	now     func() time.Time
}

// NewAuthHandler constructs an AuthHandler. limiter may be nil.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, limiter LoginLimiter) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, limiter: limiter, now: time.Now}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials. Accounts with TOTP enabled receive a pending
// token that must be exchanged through LoginTOTP.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if h.limiter != nil && h.limiter.IsRateLimited(c.Request.Context(), ratelimit.KeyForName(ratelimit.ScopeLogin, username), loginAttemptCooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Error("admin login: query admin")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.CheckPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
		return
	}

	if admin.TOTPSecret != "" {
		pending, _, errToken := security.GeneratePendingTOTPToken(h.jwtCfg.Secret, admin.ID, admin.Username, h.now())
		if errToken != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mfa_required": true, "mfa_token": pending})
		return
	}
	h.issueToken(c, &admin)
}

type loginTOTPRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// LoginTOTP completes a login that requires a one-time code.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	claims, errClaims := security.ParsePendingTOTPToken(h.jwtCfg.Secret, strings.TrimSpace(body.MFAToken))
	if errClaims != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid mfa token"})
		return
	}
	totpKey := ratelimit.KeyForName(ratelimit.ScopeLoginTOTP, strconv.FormatUint(claims.AdminID, 10))
	if h.limiter != nil && h.limiter.IsRateLimited(c.Request.Context(), totpKey, totpAttemptCooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many code attempts"})
		return
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
		return
	}
	if errTOTP := security.ValidateTOTP(admin.TOTPSecret, body.Code, h.now()); errTOTP != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	h.issueToken(c, &admin)
}

func (h *AuthHandler) issueToken(c *gin.Context, admin *models.Admin) {
	token, expiresAt, errToken := security.GenerateAdminToken(h.jwtCfg.Secret, admin.ID, admin.Username, h.jwtCfg.Expiry, h.now())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":          token,
		"expires_at":     expiresAt.UTC(),
		"username":       admin.Username,
		"is_super_admin": admin.IsSuperAdmin,
	})
}
