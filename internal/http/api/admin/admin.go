package admin

import (
	"net/http"
	"strings"

	"github.com/fixturedesk/leaddesk/internal/config"
	handlers "github.com/fixturedesk/leaddesk/internal/http/api/admin/handlers"
	"github.com/fixturedesk/leaddesk/internal/http/api/admin/permissions"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries what the admin API needs besides the router.
type Deps struct {
	DB          *gorm.DB
	JWT         config.JWTConfig
	Limiter     handlers.LoginLimiter
	Invalidator handlers.Invalidator
	Syncer      handlers.SheetSyncer
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}
	db := deps.DB

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, deps.JWT, deps.Limiter)
	adminGroup.POST("/login", authHandler.Login)
	adminGroup.POST("/login/totp", authHandler.LoginTOTP)

	selfAuthed := adminGroup.Group("")
	selfAuthed.Use(adminAuthMiddleware(db, deps.JWT))

	mfaHandler := handlers.NewMFAHandler(db)
	selfAuthed.GET("/mfa/status", mfaHandler.Status)
	selfAuthed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	selfAuthed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	selfAuthed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, deps.JWT))
	authed.Use(adminPermissionMiddleware())

	leadHandler := handlers.NewLeadHandler(db)
	authed.POST("/leads", leadHandler.Create)
	authed.GET("/leads", leadHandler.List)
	authed.GET("/leads/:id", leadHandler.Get)
	authed.PUT("/leads/:id", leadHandler.Update)
	authed.DELETE("/leads/:id", leadHandler.Delete)
	authed.POST("/leads/:id/convert", leadHandler.Convert)

	projectHandler := handlers.NewProjectHandler(db)
	authed.POST("/projects", projectHandler.Create)
	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.PUT("/projects/:id", projectHandler.Update)
	authed.DELETE("/projects/:id", projectHandler.Delete)
	authed.GET("/projects/:id/designs", projectHandler.ListDesigns)
	authed.POST("/projects/:id/designs", projectHandler.CreateDesign)
	authed.PUT("/projects/:id/designs/:designID", projectHandler.UpdateDesign)
	authed.DELETE("/projects/:id/designs/:designID", projectHandler.DeleteDesign)

	productHandler := handlers.NewProductHandler(db, deps.Invalidator)
	authed.POST("/products", productHandler.Create)
	authed.GET("/products", productHandler.List)
	authed.GET("/products/:id", productHandler.Get)
	authed.PUT("/products/:id", productHandler.Update)
	authed.DELETE("/products/:id", productHandler.Delete)

	vendorHandler := handlers.NewVendorHandler(db, deps.Invalidator)
	authed.POST("/vendors", vendorHandler.Create)
	authed.GET("/vendors", vendorHandler.List)
	authed.GET("/vendors/:id", vendorHandler.Get)
	authed.PUT("/vendors/:id", vendorHandler.Update)
	authed.DELETE("/vendors/:id", vendorHandler.Delete)

	rateCardHandler := handlers.NewRateCardHandler(db, deps.Invalidator)
	authed.POST("/rate-cards", rateCardHandler.Create)
	authed.GET("/rate-cards", rateCardHandler.List)
	authed.PUT("/rate-cards/:id", rateCardHandler.Update)
	authed.DELETE("/rate-cards/:id", rateCardHandler.Delete)

	quotationHandler := handlers.NewQuotationHandler(db)
	authed.POST("/quotations", quotationHandler.Create)
	authed.GET("/quotations", quotationHandler.List)
	authed.GET("/quotations/:id", quotationHandler.Get)
	authed.PUT("/quotations/:id", quotationHandler.Update)
	authed.PUT("/quotations/:id/status", quotationHandler.UpdateStatus)
	authed.DELETE("/quotations/:id", quotationHandler.Delete)
	authed.GET("/quotations/:id/download", quotationHandler.Download)

	sheetHandler := handlers.NewSheetHandler(db, deps.Syncer)
	authed.GET("/sheets", sheetHandler.List)
	authed.GET("/sheets/:name", sheetHandler.Get)
	authed.POST("/sheets/:name/sync", sheetHandler.Sync)

	adminHandler := handlers.NewAdminHandler(db)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins", adminHandler.List)
	authed.PUT("/admins/:id", adminHandler.Update)
	authed.DELETE("/admins/:id", adminHandler.Delete)
	authed.GET("/permissions", adminHandler.Permissions)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Set("adminPermissions", permissions.Parse(admin.Permissions))
		c.Set("adminIsSuperAdmin", admin.IsSuperAdmin)
		c.Next()
	}
}

// adminPermissionMiddleware allows super admins through and checks the
// route key against the granted permissions for everyone else.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool("adminIsSuperAdmin") {
			c.Next()
			return
		}
		key := permissions.Key(c.Request.Method, c.FullPath())
		if _, known := permissions.Lookup(key); !known {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		granted, _ := c.Get("adminPermissions")
		perms, _ := granted.([]string)
		if !permissions.Has(perms, key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
