package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
)

type validatorStub struct {
	claims map[string]*models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v.claims[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type usersStub map[string]*models.User

func (u usersStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
}

var (
	approvedMember = &models.User{
		ID: "u1", Role: models.RoleUser, FullName: "Budi", NIM: "1", Prodi: "Teknik",
		VerificationStatus: models.VerificationApproved, IsActive: true,
	}
	bannedMember = &models.User{
		ID: "u2", Role: models.RoleUser, FullName: "Sari", NIM: "2", Prodi: "Teknik",
		VerificationStatus: models.VerificationApproved, IsActive: true, IsBanned: true,
	}
	freshMember = &models.User{ID: "u3", Role: models.RoleUser, IsActive: true}
	adminUser   = &models.User{ID: "a1", Role: models.RoleAdmin, IsActive: true}
)

func testValidator() validatorStub {
	return validatorStub{claims: map[string]*models.JWTClaims{
		"member": {UserID: "u1", Role: models.RoleUser},
		"banned": {UserID: "u2", Role: models.RoleUser},
		"fresh":  {UserID: "u3", Role: models.RoleUser},
		"admin":  {UserID: "a1", Role: models.RoleAdmin},
		// role in the token is stale, the stored document says user
		"promoted": {UserID: "u1", Role: models.RoleAdmin},
		"ghost":    {UserID: "gone", Role: models.RoleUser},
	}}
}

func testUsers() usersStub {
	return usersStub{"u1": approvedMember, "u2": bannedMember, "u3": freshMember, "a1": adminUser}
}

func newTestRouter(guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{JWT(testValidator()), Session(testUsers())}, guards...)
	chain = append(chain, func(c *gin.Context) {
		session := SessionFromContext(c)
		c.String(http.StatusOK, string(session.View.Kind))
	})
	router.GET("/guarded", chain...)
	return router
}

func get(router http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRequiresBearerHeader(t *testing.T) {
	router := newTestRouter()

	assert.Equal(t, http.StatusUnauthorized, get(router, "/guarded", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/guarded", "nope").Code)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Token member")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSessionLoadsStoredDocument(t *testing.T) {
	router := newTestRouter()

	recorder := get(router, "/guarded", "member")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, string(models.ViewDashboard), recorder.Body.String())

	recorder = get(router, "/guarded", "ghost")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireViewGatesByAccountState(t *testing.T) {
	router := newTestRouter(RequireView(models.ViewDashboard))

	assert.Equal(t, http.StatusOK, get(router, "/guarded", "member").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/guarded", "fresh").Code)

	recorder := get(router, "/guarded", "banned")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), appErrors.ErrBanned.Code)
}

func TestNotBannedLetsOtherViewsThrough(t *testing.T) {
	router := newTestRouter(NotBanned())

	assert.Equal(t, http.StatusOK, get(router, "/guarded", "fresh").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/guarded", "banned").Code)
}

func TestRequireViewProfileEditorsOnly(t *testing.T) {
	router := newTestRouter(RequireView(models.ViewDashboard, models.ViewAdmin))

	assert.Equal(t, http.StatusOK, get(router, "/guarded", "member").Code)
	assert.Equal(t, http.StatusOK, get(router, "/guarded", "admin").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/guarded", "fresh").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/guarded", "banned").Code)
}

func TestRequireRolesUsesStoredRole(t *testing.T) {
	router := newTestRouter(RequireRoles(models.RoleAdmin))

	assert.Equal(t, http.StatusOK, get(router, "/guarded", "admin").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/guarded", "promoted").Code)
}

func TestWebsocketJWTAcceptsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", WebsocketJWT(testValidator()), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFromContext(c).UserID)
	})

	recorder := get(router, "/ws?access_token=member", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "u1", recorder.Body.String())

	assert.Equal(t, http.StatusOK, get(router, "/ws", "admin").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/ws", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/ws?access_token=bad", "").Code)
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &auditStub{}
	router := gin.New()
	router.Use(JWT(testValidator()))
	router.POST("/items/:id", Audit(store, models.AuditActionAnnouncement, "announcements"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusCreated)
	})

	for _, target := range []string{"/items/42", "/items/42?fail=1"} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		req.Header.Set("Authorization", "Bearer admin")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, store.logs, 1)
	log := store.logs[0]
	assert.Equal(t, models.AuditActionAnnouncement, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "a1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "42", *log.ResourceID)
}

func TestMetricsLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(router, "/users/123", "")
	get(router, "/does/not/exist", "")

	assert.Equal(t, []string{"/users/:id", unmatchedRoute}, observer.paths)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/stats", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	get(router, "/stats", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	_, timed := meta["processing_time_ms"]
	assert.True(t, timed)
}

func TestClaimsFromContextMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ClaimsFromContext(c))
	assert.Nil(t, SessionFromContext(c))
}
