package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chatrelay/chatrelay/internal/clock"
	"github.com/chatrelay/chatrelay/internal/models"
	"github.com/chatrelay/chatrelay/internal/quota"
	"github.com/chatrelay/chatrelay/internal/tier"
)

func newTestRouter(t *testing.T, secret string) (*gin.Engine, *quota.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.User{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	table, errTiers := tier.NewTable([]tier.Tier{
		{Name: "free", Allowance: tier.Bounded(10), Model: "model-small"},
		{Name: "pro", Allowance: tier.Unlimited(), Model: "model-large"},
	}, "free")
	if errTiers != nil {
		t.Fatalf("build tiers: %v", errTiers)
	}
	store := quota.NewStore(conn, table, clock.System())

	engine := gin.New()
	RegisterAdminRoutes(engine, store, secret)
	return engine, store
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	engine, _ := newTestRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/v0/admin/usage/reset", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminAuth_WrongSecret(t *testing.T) {
	engine, _ := newTestRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/v0/admin/usage/reset", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminAuth_DisabledWithoutSecret(t *testing.T) {
	engine, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v0/admin/usage/reset", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when admin api disabled, got %d", rec.Code)
	}
}

func TestEntitlementUpdate_UpsertAndPreserveBonus(t *testing.T) {
	engine, _ := newTestRouter(t, "s3cret")

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/v0/admin/users/alice/entitlement", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer s3cret")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	rec := do(`{"level":"pro","bonus_requests":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	// Level-only update must not clobber the bonus balance.
	rec = do(`{"level":"free"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Level         string `json:"level"`
		BonusRequests int    `json:"bonus_requests"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &payload); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if payload.Level != "free" || payload.BonusRequests != 5 {
		t.Fatalf("expected level=free bonus=5, got %+v", payload)
	}

	if rec := do(`{"bonus_requests":-1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative bonus, got %d", rec.Code)
	}
}

func TestUsageReset(t *testing.T) {
	engine, store := newTestRouter(t, "s3cret")

	if _, err := store.EnsureUser(context.Background(), "alice"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := store.Consume(context.Background(), "alice"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v0/admin/usage/reset", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Reset int64 `json:"reset"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &payload); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if payload.Reset != 1 {
		t.Fatalf("expected 1 row reset, got %d", payload.Reset)
	}
}
