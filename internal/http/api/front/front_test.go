package front

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	dbutil "github.com/fixturedesk/leaddesk/internal/db"
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/fixturedesk/leaddesk/internal/quote"
	"github.com/fixturedesk/leaddesk/internal/ratelimit"
	"github.com/fixturedesk/leaddesk/internal/sheets"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stubFetcher struct {
	mu    sync.Mutex
	ids   []string
	rows  [][]string
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, spreadsheetID, _ string) ([][]string, error) {
	f.mu.Lock()
	f.ids = append(f.ids, spreadsheetID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type staticRates []quote.Rate

func (r staticRates) Load(context.Context) ([]quote.Rate, error) { return r, nil }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := dbutil.Open(fmt.Sprintf("file:front_%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func newTestRouter(t *testing.T, deps Deps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.DB == nil {
		deps.DB = newTestDB(t)
	}
	r := gin.New()
	RegisterFrontRoutes(r, deps)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://fixturedesk.example")
	req.RemoteAddr = "10.0.0.1:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestFetchSheetRejectsMissingAndInvalidURL(t *testing.T) {
	fetcher := &stubFetcher{}
	r := newTestRouter(t, Deps{Fetcher: fetcher})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing", body: `{}`},
		{name: "blank", body: `{"url":"   "}`},
		{name: "not a sheet", body: `{"url":"https://example.com/doc/123"}`},
		{name: "bad json", body: `{"url":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(r, "/v0/front/functions/fetch-sheet", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if got := decodeBody(t, w)["error"]; got == nil || got == "" {
				t.Fatalf("expected error payload, got %s", w.Body.String())
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
			}
		})
	}
	if len(fetcher.ids) != 0 {
		t.Fatalf("fetcher called %d times on bad input", len(fetcher.ids))
	}
}

func TestFetchSheetReturnsRows(t *testing.T) {
	fetcher := &stubFetcher{rows: [][]string{{"sku", "price"}, {"PNL-1", "12.50"}}}
	r := newTestRouter(t, Deps{Fetcher: fetcher})

	w := postJSON(r, "/v0/front/functions/fetch-sheet",
		`{"url":"https://docs.google.com/spreadsheets/d/abc_123-XYZ/edit#gid=0","range":"Rates!A:B"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["spreadsheet_id"] != "abc_123-XYZ" {
		t.Fatalf("spreadsheet_id = %v", body["spreadsheet_id"])
	}
	if body["row_count"] != float64(2) {
		t.Fatalf("row_count = %v, want 2", body["row_count"])
	}
	if len(fetcher.ids) != 1 || fetcher.ids[0] != "abc_123-XYZ" {
		t.Fatalf("fetcher ids = %v", fetcher.ids)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestFetchSheetUpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "upstream error", err: errors.New("googleapi: Error 403: forbidden"), want: http.StatusInternalServerError},
		{name: "timeout", err: fmt.Errorf("%w after 15s", sheets.ErrTimedOut), want: http.StatusGatewayTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, Deps{Fetcher: &stubFetcher{err: tc.err}})
			w := postJSON(r, "/v0/front/functions/fetch-sheet", `{"url":"https://docs.google.com/spreadsheets/d/sheet1/edit"}`)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if decodeBody(t, w)["error"] == nil {
				t.Fatalf("missing error payload: %s", w.Body.String())
			}
			if w.Header().Get("Access-Control-Allow-Origin") == "" {
				t.Fatalf("missing CORS header on failure")
			}
		})
	}
}

func TestFetchSheetCooldownPerClient(t *testing.T) {
	limiter := ratelimit.NewManager(nil, func() ratelimit.SettingsConfig { return ratelimit.SettingsConfig{} }, nil, nil)
	r := newTestRouter(t, Deps{
		Fetcher:       &stubFetcher{rows: [][]string{{"a"}}},
		Limiter:       limiter,
		SheetCooldown: time.Minute,
	})
	body := `{"url":"https://docs.google.com/spreadsheets/d/sheet1/edit"}`
	if w := postJSON(r, "/v0/front/functions/fetch-sheet", body); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	if w := postJSON(r, "/v0/front/functions/fetch-sheet", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
}

func TestPreflightAllowsOrigin(t *testing.T) {
	r := newTestRouter(t, Deps{Fetcher: &stubFetcher{}})
	req := httptest.NewRequest(http.MethodOptions, "/v0/front/functions/fetch-sheet", nil)
	req.Header.Set("Origin", "https://fixturedesk.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestRestrictedOrigins(t *testing.T) {
	r := newTestRouter(t, Deps{Fetcher: &stubFetcher{}, AllowedOrigins: []string{"https://shop.example.com"}})
	req := httptest.NewRequest(http.MethodPost, "/v0/front/functions/fetch-sheet", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/v0/front/functions/fetch-sheet", bytes.NewBufferString(`{}`))
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for disallowed origin", w.Code)
	}
}

func TestContactCreatesLeadAndCoolsDown(t *testing.T) {
	conn := newTestDB(t)
	limiter := ratelimit.NewManager(nil, func() ratelimit.SettingsConfig { return ratelimit.SettingsConfig{} }, nil, nil)
	r := newTestRouter(t, Deps{DB: conn, Limiter: limiter})

	body := `{"name":"Asha Rao","email":"Asha@Example.com","company":"Metro Mall","message":"Need 12 cubicles"}`
	w := postJSON(r, "/v0/front/contact", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	var lead models.Lead
	if err := conn.First(&lead).Error; err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if lead.Source != "website" || lead.Status != models.LeadStatusNew || lead.Email != "asha@example.com" {
		t.Fatalf("unexpected lead %+v", lead)
	}

	w = postJSON(r, "/v0/front/contact", strings.Replace(body, "Asha@Example.com", "asha@example.com ", 1))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("repeat status = %d, want 429", w.Code)
	}
	var count int64
	conn.Model(&models.Lead{}).Count(&count)
	if count != 1 {
		t.Fatalf("lead count = %d, want 1", count)
	}
}

func TestContactValidatesFields(t *testing.T) {
	r := newTestRouter(t, Deps{})
	w := postJSON(r, "/v0/front/contact", `{"name":"","email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	fields, _ := decodeBody(t, w)["fields"].([]any)
	if len(fields) != 2 {
		t.Fatalf("fields = %v, want name and email", fields)
	}
}

func TestRateCardsAndEstimate(t *testing.T) {
	rates := staticRates{
		{VendorID: 1, VendorName: "Acme", ProductID: 7, SKU: "PNL-1", ProductName: "Panel", Category: "partition", UnitPrice: 40, InstallPrice: 5},
		{VendorID: 2, VendorName: "Bolt", ProductID: 7, SKU: "PNL-1", ProductName: "Panel", Category: "partition", UnitPrice: 38, InstallPrice: 4},
		{VendorID: 1, VendorName: "Acme", ProductID: 9, SKU: "HNG-2", ProductName: "Hinge", Category: "hardware", UnitPrice: 3},
	}
	r := newTestRouter(t, Deps{Rates: rates})

	req := httptest.NewRequest(http.MethodGet, "/v0/front/rate-cards?category=hardware", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("rate-cards status = %d", w.Code)
	}
	cards, _ := decodeBody(t, w)["rate_cards"].([]any)
	if len(cards) != 1 {
		t.Fatalf("rate_cards = %v, want one hardware rate", cards)
	}

	w = postJSON(r, "/v0/front/estimate", `{"lines":[{"product_id":7,"quantity":3}],"include_install":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["total"]; got != "126" {
		t.Fatalf("total = %v, want 126", got)
	}

	w = postJSON(r, "/v0/front/estimate", `{"lines":[{"product_id":7,"quantity":0}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero quantity status = %d, want 400", w.Code)
	}
}
