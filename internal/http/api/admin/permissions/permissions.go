// Package permissions lists the admin API routes that can be granted to
// non-super admins.
package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Definition describes an admin permission.
type Definition struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Label  string `json:"label"`
	Module string `json:"module"`
}

// Key builds a permission key from method and route path.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Normalize trims, de-duplicates, and sorts permission keys.
func Normalize(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

// Validate reports the first key that is not a known permission.
func Validate(perms []string) error {
	for _, perm := range perms {
		trimmed := strings.TrimSpace(perm)
		if trimmed == "" {
			continue
		}
		if _, ok := byKey[trimmed]; !ok {
			return fmt.Errorf("invalid permission: %s", trimmed)
		}
	}
	return nil
}

// Parse decodes a stored JSON list. Malformed input yields no permissions.
func Parse(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return []string{}
	}
	return Normalize(perms)
}

// Marshal encodes normalized permission keys.
func Marshal(perms []string) ([]byte, error) {
	return json.Marshal(Normalize(perms))
}

// Has reports whether key was granted.
func Has(perms []string, key string) bool {
	if key == "" {
		return false
	}
	for _, perm := range perms {
		if perm == key {
			return true
		}
	}
	return false
}

// Definitions returns a copy of all permission definitions in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	def, ok := byKey[key]
	return def, ok
}

func define(method, path, label, module string) Definition {
	method = strings.ToUpper(method)
	return Definition{Key: Key(method, path), Method: method, Path: path, Label: label, Module: module}
}

var definitions = []Definition{
	define("POST", "/v0/admin/leads", "Create Lead", "Leads"),
	define("GET", "/v0/admin/leads", "List Leads", "Leads"),
	define("GET", "/v0/admin/leads/:id", "Get Lead", "Leads"),
	define("PUT", "/v0/admin/leads/:id", "Update Lead", "Leads"),
	define("DELETE", "/v0/admin/leads/:id", "Delete Lead", "Leads"),
	define("POST", "/v0/admin/leads/:id/convert", "Convert Lead", "Leads"),

	define("POST", "/v0/admin/projects", "Create Project", "Projects"),
	define("GET", "/v0/admin/projects", "List Projects", "Projects"),
	define("GET", "/v0/admin/projects/:id", "Get Project", "Projects"),
	define("PUT", "/v0/admin/projects/:id", "Update Project", "Projects"),
	define("DELETE", "/v0/admin/projects/:id", "Delete Project", "Projects"),
	define("GET", "/v0/admin/projects/:id/designs", "List Designs", "Projects"),
	define("POST", "/v0/admin/projects/:id/designs", "Create Design", "Projects"),
	define("PUT", "/v0/admin/projects/:id/designs/:designID", "Update Design", "Projects"),
	define("DELETE", "/v0/admin/projects/:id/designs/:designID", "Delete Design", "Projects"),

	define("POST", "/v0/admin/products", "Create Product", "Catalogue"),
	define("GET", "/v0/admin/products", "List Products", "Catalogue"),
	define("GET", "/v0/admin/products/:id", "Get Product", "Catalogue"),
	define("PUT", "/v0/admin/products/:id", "Update Product", "Catalogue"),
	define("DELETE", "/v0/admin/products/:id", "Delete Product", "Catalogue"),

	define("POST", "/v0/admin/vendors", "Create Vendor", "Vendors"),
	define("GET", "/v0/admin/vendors", "List Vendors", "Vendors"),
	define("GET", "/v0/admin/vendors/:id", "Get Vendor", "Vendors"),
	define("PUT", "/v0/admin/vendors/:id", "Update Vendor", "Vendors"),
	define("DELETE", "/v0/admin/vendors/:id", "Delete Vendor", "Vendors"),
	define("POST", "/v0/admin/rate-cards", "Create Rate Card", "Vendors"),
	define("GET", "/v0/admin/rate-cards", "List Rate Cards", "Vendors"),
	define("PUT", "/v0/admin/rate-cards/:id", "Update Rate Card", "Vendors"),
	define("DELETE", "/v0/admin/rate-cards/:id", "Delete Rate Card", "Vendors"),

	define("POST", "/v0/admin/quotations", "Create Quotation", "Quotations"),
	define("GET", "/v0/admin/quotations", "List Quotations", "Quotations"),
	define("GET", "/v0/admin/quotations/:id", "Get Quotation", "Quotations"),
	define("PUT", "/v0/admin/quotations/:id", "Update Quotation", "Quotations"),
	define("PUT", "/v0/admin/quotations/:id/status", "Change Quotation Status", "Quotations"),
	define("DELETE", "/v0/admin/quotations/:id", "Delete Quotation", "Quotations"),
	define("GET", "/v0/admin/quotations/:id/download", "Download Quotation", "Quotations"),

	define("GET", "/v0/admin/sheets", "List Sheet Sources", "Sheets"),
	define("GET", "/v0/admin/sheets/:name", "View Sheet Snapshot", "Sheets"),
	define("POST", "/v0/admin/sheets/:name/sync", "Sync Sheet", "Sheets"),

	define("POST", "/v0/admin/admins", "Create Admin", "Admins"),
	define("GET", "/v0/admin/admins", "List Admins", "Admins"),
	define("PUT", "/v0/admin/admins/:id", "Update Admin", "Admins"),
	define("DELETE", "/v0/admin/admins/:id", "Delete Admin", "Admins"),
	define("GET", "/v0/admin/permissions", "List Permissions", "Admins"),

	define("POST", "/v0/admin/settings", "Create Setting", "Settings"),
	define("GET", "/v0/admin/settings", "List Settings", "Settings"),
	define("GET", "/v0/admin/settings/:key", "Get Setting", "Settings"),
	define("PUT", "/v0/admin/settings/:key", "Update Setting", "Settings"),
	define("DELETE", "/v0/admin/settings/:key", "Delete Setting", "Settings"),
}

var byKey = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}()
