package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedAdmin(t *testing.T, conn *gorm.DB, username string, superAdmin bool, perms string) models.Admin {
	t.Helper()
	hash, err := security.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := models.Admin{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsSuperAdmin: superAdmin,
		Permissions:  datatypes.JSON(perms),
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return admin
}

func adminRouter(h *AdminHandler, callerID uint64, superAdmin bool, perms []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("adminID", callerID)
		c.Set("adminIsSuperAdmin", superAdmin)
		c.Set("adminPermissions", perms)
		c.Next()
	})
	r.POST("/admins", h.Create)
	r.PUT("/admins/:id", h.Update)
	r.DELETE("/admins/:id", h.Delete)
	return r
}

func TestAdminUpdate_NonSuperCannotEscalate(t *testing.T) {
	conn := newTestDB(t)
	h := NewAdminHandler(conn)
	callerPerms := []string{"PUT /v0/admin/admins/:id", "DELETE /v0/admin/admins/:id"}
	caller := seedAdmin(t, conn, "staff", false, `["PUT /v0/admin/admins/:id","DELETE /v0/admin/admins/:id"]`)
	peer := seedAdmin(t, conn, "peer", false, `[]`)
	owner := seedAdmin(t, conn, "owner", true, `[]`)
	r := adminRouter(h, caller.ID, false, callerPerms)

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/admins/%d", caller.ID), map[string]any{"is_super_admin": true})
	if w.Code != http.StatusForbidden {
		t.Fatalf("self promotion status = %d (%s)", w.Code, w.Body.String())
	}
	var reloaded models.Admin
	if errFind := conn.First(&reloaded, caller.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.IsSuperAdmin {
		t.Fatalf("expected caller to stay a regular admin")
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/admins/%d", caller.ID), map[string]any{
		"permissions": []string{"PUT /v0/admin/admins/:id", "GET /v0/admin/leads"},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("grant unheld permission status = %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/admins/%d", peer.ID), map[string]any{
		"permissions": []string{"PUT /v0/admin/admins/:id"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("grant held permission status = %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/admins/%d", owner.ID), map[string]any{"password": "takeover1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("super admin password reset status = %d (%s)", w.Code, w.Body.String())
	}
	reloaded = models.Admin{}
	if errFind := conn.First(&reloaded, owner.ID).Error; errFind != nil {
		t.Fatalf("reload owner: %v", errFind)
	}
	if !security.CheckPassword(reloaded.Password, "secret123") {
		t.Fatalf("expected super admin password unchanged")
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/admins/%d", owner.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete super admin status = %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, "/admins/9999", map[string]any{"active": false})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing target status = %d (%s)", w.Code, w.Body.String())
	}
}

func TestAdminCreate_NonSuperCannotGrantBeyondOwnPermissions(t *testing.T) {
	conn := newTestDB(t)
	h := NewAdminHandler(conn)
	caller := seedAdmin(t, conn, "staff", false, `["POST /v0/admin/admins"]`)
	r := adminRouter(h, caller.ID, false, []string{"POST /v0/admin/admins"})

	w := doJSON(t, r, http.MethodPost, "/admins", map[string]any{
		"username": "boss", "password": "secret123", "is_super_admin": true,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("create super admin status = %d (%s)", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/admins", map[string]any{
		"username": "reader", "password": "secret123", "permissions": []string{"GET /v0/admin/leads"},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("create with unheld permission status = %d (%s)", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/admins", map[string]any{
		"username": "helper", "password": "secret123", "permissions": []string{"POST /v0/admin/admins"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create with held permission status = %d (%s)", w.Code, w.Body.String())
	}

	var count int64
	conn.Model(&models.Admin{}).Where("username IN ?", []string{"boss", "reader"}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rejected accounts not stored, found %d", count)
	}
}

func TestAdminUpdate_SuperAdminCanPromote(t *testing.T) {
	conn := newTestDB(t)
	h := NewAdminHandler(conn)
	owner := seedAdmin(t, conn, "owner", true, `[]`)
	staff := seedAdmin(t, conn, "staff", false, `[]`)
	r := adminRouter(h, owner.ID, true, nil)

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/admins/%d", staff.ID), map[string]any{
		"is_super_admin": true, "permissions": []string{"GET /v0/admin/leads"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("promote status = %d (%s)", w.Code, w.Body.String())
	}
	var reloaded models.Admin
	if errFind := conn.First(&reloaded, staff.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if !reloaded.IsSuperAdmin {
		t.Fatalf("expected staff promoted")
	}
}
