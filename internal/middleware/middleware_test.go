package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-agenda-api/internal/models"
	"github.com/noah-isme/studio-agenda-api/internal/service"
	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
	"github.com/noah-isme/studio-agenda-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type stubGate struct {
	claims *models.JWTClaims
	err    error
	seen   models.Capability
}

func (s *stubGate) Authorize(ctx context.Context, credential string, capability models.Capability) (models.Grant, *models.JWTClaims, error) {
	s.seen = capability
	return models.Grant{Granted: s.err == nil, Capability: capability}, s.claims, s.err
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	tokens := stubTokens{"good": {UserID: "u1", Role: models.RoleAdmin}}
	router := gin.New()
	router.GET("/protected", JWT(tokens), func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		require.True(t, ok)
		assert.Equal(t, "u1", c.GetString(logger.ActorKey))
		c.String(http.StatusOK, claims.UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer   ").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer bad").Code)

	rec := serve(router, "bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireCapability(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1"}
	cases := []struct {
		name   string
		header string
		gate   *stubGate
		status int
	}{
		{name: "missing header", header: "", gate: &stubGate{claims: claims}, status: http.StatusUnauthorized},
		{name: "granted", header: "Bearer t", gate: &stubGate{claims: claims}, status: http.StatusOK},
		{name: "forbidden", header: "Bearer t", gate: &stubGate{claims: claims, err: appErrors.ErrForbidden}, status: http.StatusForbidden},
		{name: "inactive account", header: "Bearer t", gate: &stubGate{claims: claims, err: appErrors.ErrUnauthorized}, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/protected", RequireCapability(tc.gate, models.CapCredits), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			rec := serve(router, tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.header != "" {
				assert.Equal(t, models.CapCredits, tc.gate.seen)
			}
		})
	}
}

func TestAuditClientMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(AuditClient())
	router.GET("/protected", func(c *gin.Context) {
		client, ok := service.AuditClientFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, "panel-test", client.UserAgent)
		assert.NotEmpty(t, client.IPAddress)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("User-Agent", "panel-test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type recordingObserver struct {
	routes []string
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.routes = append(r.routes, method+" "+path)
}

func TestMetricsMiddleware(t *testing.T) {
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer, "/metrics"))
	router.GET("/slots/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/slots/1", "/slots/2", "/metrics", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /slots/:id", "GET /slots/:id", "GET unmatched"}, observer.routes)
}
