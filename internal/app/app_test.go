package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/greenhouse-labs/catalog-bff/internal/api/v1"
	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
)

const upstreamToken = "upstream-token"

// fakeUpstream serves a login endpoint and a single short catalog page
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "svc-catalog" || r.URL.Query().Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = fmt.Fprintf(w, `{"token":%q,"expiresIn":3600}`, upstreamToken)
	})
	mux.HandleFunc("/adArticulosCatalogo/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-access-token") != upstreamToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"$resources":[
			{"CodigoArticulo":"120455","DescripcionArticulo":"FICUS BENJAMINA","Precio1":12.5,"PrecioVentasinIVA2":10.25,"PrecioVentasinIVA3":9,"_Maceta":"17","_OfertaCortijo":{"value":-1}},
			{"CodigoArticulo":"100200","DescripcionArticulo":"rosa canina","Precio1":4,"PrecioVentasinIVA2":3.5,"PrecioVentasinIVA3":3},
			{"DescripcionArticulo":"no id"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serve(t *testing.T, h http.Handler, method, target, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCatalogApp_SyncThenServe(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Upstream.BaseURL = fakeUpstream(t).URL
	cfg.Auth = &config.AuthConfig{JWTSecret: "app-test-secret"}

	app, err := NewCatalogApp(context.Background(), WithConfig(cfg), WithRateLimit(0, 0))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	result, syncErr, ran := app.Components().SyncCoordinator.RunOnce(context.Background(), coordinator.TriggerCLI)
	require.True(t, ran)
	require.Nil(t, syncErr)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Kept)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, 2, result.Stored)

	handler := app.GetHTTPServer().Handler

	rec := serve(t, handler, http.MethodGet, "/api/v1/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page v1.ArticlesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.TotalArticles)
	require.Len(t, page.Articles, 2)
	assert.Equal(t, "Ficus Benjamina", page.Articles[0].ScientificName)
	assert.Equal(t, "https://img.example.com/low/120455-0.jpg", page.Articles[0].ImageURL)
	assert.Nil(t, page.Articles[0].Price)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role:      auth.RoleCustomer,
		PriceType: "precio2",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("app-test-secret"))
	require.NoError(t, err)

	rec = serve(t, handler, http.MethodGet, "/api/v1/articles/120455", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	var article v1.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &article))
	require.NotNil(t, article.Price)
	assert.InDelta(t, 10.25, *article.Price, 1e-9)
	assert.True(t, article.PromotionFlags.Cortijo)

	rec = serve(t, handler, http.MethodGet, "/api/v1/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st status.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, status.SyncPhaseComplete, st.Phase)
	assert.Equal(t, coordinator.TriggerCLI, st.Trigger)
	assert.Equal(t, 2, st.Stored)
}

func TestCatalogApp_SharedLock(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	cfg := createValidTestConfig()
	cfg.Upstream.BaseURL = fakeUpstream(t).URL
	cfg.Sync.Lock = &config.LockConfig{Enabled: true, RedisAddr: mr.Addr(), Key: "catalog:test-lock"}

	app, err := NewCatalogApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	// another replica holds the lock
	require.NoError(t, mr.Set("catalog:test-lock", "other-replica"))
	_, _, ran := app.Components().SyncCoordinator.RunOnce(context.Background(), coordinator.TriggerCLI)
	assert.False(t, ran)

	mr.Del("catalog:test-lock")
	_, syncErr, ran := app.Components().SyncCoordinator.RunOnce(context.Background(), coordinator.TriggerCLI)
	assert.True(t, ran)
	assert.Nil(t, syncErr)
	assert.False(t, mr.Exists("catalog:test-lock"), "lock is released after the run")
}

func TestCatalogApp_UpstreamLoginFailure(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Upstream.BaseURL = fakeUpstream(t).URL
	cfg.Upstream.Password = "wrong"

	app, err := NewCatalogApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, syncErr, ran := app.Components().SyncCoordinator.RunOnce(context.Background(), coordinator.TriggerCLI)
	require.True(t, ran)
	require.NotNil(t, syncErr)
	assert.Equal(t, "Unauthorized", syncErr.Reason)

	count, err := app.Components().Store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
