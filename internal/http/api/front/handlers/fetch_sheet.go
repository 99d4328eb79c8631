package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/ratelimit"
	"github.com/fixturedesk/leaddesk/internal/sheets"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SheetFunctionHandler proxies a single spreadsheet read for the site.
type SheetFunctionHandler struct {
	fetcher  sheets.Fetcher
	limiter  Limiter
	cooldown time.Duration
}

// NewSheetFunctionHandler constructs a SheetFunctionHandler. A zero cooldown
// or nil limiter disables per-client throttling.
func NewSheetFunctionHandler(fetcher sheets.Fetcher, limiter Limiter, cooldown time.Duration) *SheetFunctionHandler {
	return &SheetFunctionHandler{fetcher: fetcher, limiter: limiter, cooldown: cooldown}
}

type fetchSheetRequest struct {
	URL   string `json:"url"`
	Range string `json:"range"`
}

// Fetch extracts the spreadsheet id from the url and returns its rows.
func (h *SheetFunctionHandler) Fetch(c *gin.Context) {
	var body fetchSheetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rawURL := strings.TrimSpace(body.URL)
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	spreadsheetID, errID := sheets.ExtractSpreadsheetID(rawURL)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spreadsheet url"})
		return
	}
	if h.fetcher == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "spreadsheet access is not configured"})
		return
	}
	if h.limiter != nil && h.cooldown > 0 &&
		h.limiter.IsRateLimited(c.Request.Context(), ratelimit.KeyForIP(ratelimit.ScopeSheetFetch, c.ClientIP()), h.cooldown) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	cellRange := strings.TrimSpace(body.Range)
	rows, errFetch := h.fetcher.Fetch(c.Request.Context(), spreadsheetID, cellRange)
	if errFetch != nil {
		if errors.Is(errFetch, sheets.ErrTimedOut) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "spreadsheet request timed out"})
			return
		}
		log.WithError(errFetch).WithField("spreadsheet_id", spreadsheetID).Warn("fetch sheet failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch spreadsheet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"spreadsheet_id": spreadsheetID,
		"range":          cellRange,
		"rows":           rows,
		"row_count":      len(rows),
	})
}
