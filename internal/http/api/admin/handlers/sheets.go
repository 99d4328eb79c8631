package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fixturedesk/leaddesk/internal/fetch"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/sheets"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SheetSyncer is the part of the sheet syncer the admin API drives.
type SheetSyncer interface {
	Sources() []sheets.Source
	SyncSource(ctx context.Context, name string) (fetch.Outcome, error)
	Status(name string) (fetch.Snapshot[sheets.Target, [][]string], bool)
}

// SheetHandler exposes configured spreadsheet sources and their snapshots.
type SheetHandler struct {
	db     *gorm.DB
	syncer SheetSyncer
}

// NewSheetHandler constructs a SheetHandler. syncer may be nil when no
// sources are configured.
func NewSheetHandler(db *gorm.DB, syncer SheetSyncer) *SheetHandler {
	return &SheetHandler{db: db, syncer: syncer}
}

// List returns every configured source with its stored snapshot summary.
func (h *SheetHandler) List(c *gin.Context) {
	rows, errList := sheets.ListSnapshots(c.Request.Context(), h.db)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list snapshots failed"})
		return
	}
	bySource := make(map[string]*models.SheetSnapshot, len(rows))
	for i := range rows {
		bySource[rows[i].Source] = &rows[i]
	}

	out := make([]gin.H, 0, len(rows))
	seen := make(map[string]struct{})
	if h.syncer != nil {
		for _, src := range h.syncer.Sources() {
			seen[src.Name] = struct{}{}
			item := gin.H{
				"source":  src.Name,
				"kind":    src.Kind,
				"range":   src.Range,
				"syncing": false,
			}
			if status, ok := h.syncer.Status(src.Name); ok {
				item["syncing"] = status.Loading
			}
			if snap, ok := bySource[src.Name]; ok {
				mergeSnapshotSummary(item, snap)
			}
			out = append(out, item)
		}
	}
	for i := range rows {
		if _, ok := seen[rows[i].Source]; ok {
			continue
		}
		item := gin.H{"source": rows[i].Source, "configured": false}
		mergeSnapshotSummary(item, &rows[i])
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"sheets": out})
}

// Get returns the stored rows of one source.
func (h *SheetHandler) Get(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	var snap models.SheetSnapshot
	if errFind := h.db.WithContext(c.Request.Context()).Where("source = ?", name).First(&snap).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	item := gin.H{"source": snap.Source}
	mergeSnapshotSummary(item, &snap)
	item["rows"] = json.RawMessage(snap.Rows)
	c.JSON(http.StatusOK, item)
}

// Sync fetches one source immediately, superseding a sync in flight.
func (h *SheetHandler) Sync(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if h.syncer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
		return
	}
	outcome, errSync := h.syncer.SyncSource(c.Request.Context(), name)
	if errSync != nil {
		switch {
		case errors.Is(errSync, sheets.ErrUnknownSource):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
		case errors.Is(errSync, sheets.ErrTimedOut):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "spreadsheet request timed out"})
		case errors.Is(errSync, sheets.ErrInvalidURL):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "source has an invalid spreadsheet url"})
		default:
			log.WithError(errSync).WithField("source", name).Warn("manual sheet sync failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "spreadsheet fetch failed"})
		}
		return
	}
	switch outcome {
	case fetch.OutcomeApplied:
		status, _ := h.syncer.Status(name)
		c.JSON(http.StatusOK, gin.H{"source": name, "outcome": outcome.String(), "row_count": len(status.Value)})
	case fetch.OutcomeCancelled:
		c.JSON(http.StatusConflict, gin.H{"source": name, "outcome": outcome.String(), "error": "superseded by a newer sync"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"source": name, "outcome": outcome.String(), "error": "syncer is not running"})
	}
}

func mergeSnapshotSummary(item gin.H, snap *models.SheetSnapshot) {
	item["spreadsheet_id"] = snap.SpreadsheetID
	item["row_count"] = snap.RowCount
	item["last_error"] = snap.LastError
	item["fetched_at"] = snap.FetchedAt
	item["updated_at"] = snap.UpdatedAt
	if _, ok := item["range"]; !ok {
		item["range"] = snap.Range
	}
}
