package handlers

import (
	"net/http"
	"strings"

	"github.com/fixturedesk/leaddesk/internal/quote"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateCardFrontHandler serves the public rate card and estimates.
type RateCardFrontHandler struct {
	rates RateSource
}

// NewRateCardFrontHandler constructs a RateCardFrontHandler.
func NewRateCardFrontHandler(rates RateSource) *RateCardFrontHandler {
	return &RateCardFrontHandler{rates: rates}
}

// List returns active vendor rates, optionally for one category.
func (h *RateCardFrontHandler) List(c *gin.Context) {
	rates, errLoad := h.rates.Load(c.Request.Context())
	if errLoad != nil {
		log.WithError(errLoad).Error("load rate cards failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load rate cards failed"})
		return
	}
	category := strings.TrimSpace(c.Query("category"))
	out := make([]quote.Rate, 0, len(rates))
	for _, rate := range rates {
		if category != "" && !strings.EqualFold(rate.Category, category) {
			continue
		}
		out = append(out, rate)
	}
	c.JSON(http.StatusOK, gin.H{"rate_cards": out})
}

type estimateRequest struct {
	Lines          []quote.FixtureLine `json:"lines" binding:"required,min=1,dive"`
	IncludeInstall bool                `json:"include_install"`
}

// Estimate prices fixture lines against the cheapest usable rates.
func (h *RateCardFrontHandler) Estimate(c *gin.Context) {
	var body estimateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lines need a product_id and a positive quantity"})
		return
	}
	rates, errLoad := h.rates.Load(c.Request.Context())
	if errLoad != nil {
		log.WithError(errLoad).Error("load rate cards failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load rate cards failed"})
		return
	}
	estimate, errEstimate := quote.BuildEstimate(body.Lines, rates, body.IncludeInstall)
	if errEstimate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEstimate.Error()})
		return
	}
	c.JSON(http.StatusOK, estimate)
}
