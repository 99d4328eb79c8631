package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/ratelimit"
	internalsettings "github.com/fixturedesk/leaddesk/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const leadSourceWebsite = "website"

// ContactHandler captures enquiries from the public site as leads.
type ContactHandler struct {
	db       *gorm.DB
	limiter  Limiter
	validate *validator.Validate
}

// NewContactHandler constructs a ContactHandler. limiter may be nil.
func NewContactHandler(db *gorm.DB, limiter Limiter) *ContactHandler {
	return &ContactHandler{db: db, limiter: limiter, validate: validator.New(validator.WithRequiredStructEnabled())}
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=320"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Company string `json:"company" validate:"omitempty,max=200"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

// Submit validates the form and stores a new lead. Repeated submissions from
// the same email inside the cooldown are rejected with 429.
func (h *ContactHandler) Submit(c *gin.Context) {
	var body contactRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	body.Phone = strings.TrimSpace(body.Phone)
	body.Company = strings.TrimSpace(body.Company)
	if errValidate := h.validate.Struct(body); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fields", "fields": invalidFields(errValidate)})
		return
	}

	cooldown := time.Duration(internalsettings.Int(internalsettings.ContactCooldownSecondsKey, internalsettings.DefaultContactCooldownSeconds)) * time.Second
	if h.limiter != nil && cooldown > 0 &&
		h.limiter.IsRateLimited(c.Request.Context(), ratelimit.KeyForEmail(ratelimit.ScopeContact, body.Email), cooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "please wait before sending another message"})
		return
	}

	lead := models.Lead{
		Name:    body.Name,
		Email:   strings.ToLower(body.Email),
		Phone:   body.Phone,
		Company: body.Company,
		Source:  leadSourceWebsite,
		Status:  models.LeadStatusNew,
		Notes:   body.Message,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&lead).Error; errCreate != nil {
		log.WithError(errCreate).Error("store contact lead failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": lead.ID})
}

func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fields
}
