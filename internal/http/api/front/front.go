package front

import (
	"strings"
	"time"

	"github.com/fixturedesk/leaddesk/internal/http/api/front/handlers"
	"github.com/fixturedesk/leaddesk/internal/sheets"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries what the public API needs besides the router.
type Deps struct {
	DB             *gorm.DB
	Rates          handlers.RateSource
	Limiter        handlers.Limiter
	Fetcher        sheets.Fetcher
	SheetCooldown  time.Duration
	AllowedOrigins []string
}

// RegisterFrontRoutes registers the public endpoints under /v0/front.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	frontGroup := r.Group("/v0/front")
	frontGroup.Use(corsMiddleware(deps.AllowedOrigins))

	if deps.Rates != nil {
		rateHandler := handlers.NewRateCardFrontHandler(deps.Rates)
		frontGroup.GET("/rate-cards", rateHandler.List)
		frontGroup.POST("/estimate", rateHandler.Estimate)
	}

	contactHandler := handlers.NewContactHandler(deps.DB, deps.Limiter)
	frontGroup.POST("/contact", contactHandler.Submit)

	sheetHandler := handlers.NewSheetFunctionHandler(deps.Fetcher, deps.Limiter, deps.SheetCooldown)
	frontGroup.POST("/functions/fetch-sheet", sheetHandler.Fetch)

	// Preflight requests never match a registered method otherwise.
	frontGroup.OPTIONS("/*path", func(c *gin.Context) {})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			cleaned = append(cleaned, origin)
		}
	}
	if len(cleaned) == 0 || (len(cleaned) == 1 && cleaned[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = cleaned
	}
	return cors.New(cfg)
}
