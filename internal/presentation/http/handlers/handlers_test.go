package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/agropulse/cropalert-go/internal/application/services"
	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/agropulse/cropalert-go/internal/infrastructure/realtime"
	"github.com/agropulse/cropalert-go/internal/infrastructure/security"
	"github.com/agropulse/cropalert-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUserRepo is a minimal in-memory user.Repository for handler tests.
type memUserRepo struct {
	mu       sync.Mutex
	accounts map[string]*user.Account
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{accounts: make(map[string]*user.Account)}
}

func (r *memUserRepo) FindByID(id string) (*user.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(email string) (*user.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Store(account *user.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *memUserRepo) UpdateProfile(id string, crops []string, location *geo.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("no such user %s", id)
	}
	account.SubscribedCrops = crops
	account.Location = location
	return nil
}

func (r *memUserRepo) SetApproval(id string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("no such user %s", id)
	}
	account.IsApproved = approved
	return nil
}

func (r *memUserRepo) FindPending(role user.Role) ([]user.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []user.Identity
	for _, account := range r.accounts {
		if account.Role == role && !account.IsApproved {
			pending = append(pending, account.Identity)
		}
	}
	return pending, nil
}

func (r *memUserRepo) FindWithinRadius(center geo.Point, radiusMeters float64, filter user.RoleFilter) ([]user.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []user.Identity
	for _, account := range r.accounts {
		if account.Role != filter.Role || account.Location == nil {
			continue
		}
		if filter.ApprovedOnly && !account.IsApproved {
			continue
		}
		if geo.DistanceMeters(center, *account.Location) <= radiusMeters {
			found = append(found, account.Identity)
		}
	}
	return found, nil
}

// memAlertRepo is a minimal in-memory alert.Repository.
type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[string]*alert.Alert)}
}

func (r *memAlertRepo) FindByID(id string) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.alerts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (r *memAlertRepo) FindAll() ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []alert.Alert
	for _, a := range r.alerts {
		all = append(all, *a)
	}
	return all, nil
}

func (r *memAlertRepo) FindByCreator(creatorID string) ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []alert.Alert
	for _, a := range r.alerts {
		if a.CreatorID == creatorID {
			mine = append(mine, *a)
		}
	}
	return mine, nil
}

func (r *memAlertRepo) FindWithinRadius(center geo.Point, radiusMeters float64, cropType string) ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []alert.Alert
	for _, a := range r.alerts {
		if cropType != "" && a.CropType != cropType {
			continue
		}
		if geo.DistanceMeters(center, a.Location) <= radiusMeters {
			found = append(found, *a)
		}
	}
	return found, nil
}

func (r *memAlertRepo) Store(a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.alerts[a.ID] = &copied
	return nil
}

func (r *memAlertRepo) Update(a *alert.Alert) error { return r.Store(a) }

func (r *memAlertRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alerts, id)
	return nil
}

type handlerFixture struct {
	router   *gin.Engine
	users    *memUserRepo
	alerts   *memAlertRepo
	registry *realtime.Registry
	hub      *realtime.Hub
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
	})
	require.NoError(t, err)

	users := newMemUserRepo()
	alerts := newMemAlertRepo()
	collector := metrics.NewCollector(prometheus.NewRegistry())
	registry := realtime.NewRegistry(logger)
	hub := realtime.NewHub(registry, logger, collector)

	dispatcher := services.NewNotificationDispatcher(
		services.NewSpatialIndex(users, logger), registry, hub, logger, collector)

	authService := services.NewAuthService(users, logger)
	authHandlers := NewAuthHandlers(authService, logger)
	alertHandlers := NewAlertHandlers(services.NewAlertService(alerts, dispatcher, logger), logger)
	profileHandlers := NewProfileHandlers(services.NewProfileService(users, logger), logger)
	adminHandlers := NewAdminHandlers(services.NewAdminService(users, nil, logger), logger)
	wsHandlers := NewWSHandlers(authService, registry, hub, logger, collector)

	router := gin.New()
	router.GET("/ws", wsHandlers.GetWebSocket)
	api := router.Group("/api/v1")
	api.POST("/auth/register", authHandlers.PostRegister)
	api.POST("/auth/login", authHandlers.PostLogin)
	api.GET("/alerts", alertHandlers.GetAlerts)
	api.POST("/alerts", authHandlers.AuthMiddleware(), alertHandlers.PostAlert)
	api.DELETE("/alerts/:id", authHandlers.AuthMiddleware(), alertHandlers.DeleteAlert)
	api.GET("/profile", authHandlers.AuthMiddleware(), profileHandlers.GetProfile)
	api.PUT("/profile", authHandlers.AuthMiddleware(), profileHandlers.PutProfile)
	api.GET("/admin/pending", authHandlers.AuthMiddleware(), authHandlers.AdminOnlyMiddleware(), adminHandlers.GetPendingAgronomists)
	api.POST("/admin/users/:id/approve", authHandlers.AuthMiddleware(), authHandlers.AdminOnlyMiddleware(), adminHandlers.PostApprove)

	return &handlerFixture{router: router, users: users, alerts: alerts, registry: registry, hub: hub}
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func (f *handlerFixture) register(t *testing.T, email, role string) map[string]any {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":     email,
		"password":  "correct-horse",
		"firstName": "Test",
		"lastName":  "User",
		"role":      role,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decodeBody(t, recorder)
}

func (f *handlerFixture) login(t *testing.T, email string) string {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	token, _ := decodeBody(t, recorder)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterValidation(t *testing.T) {
	f := newHandlerFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "not-an-email", "password": "correct-horse", "firstName": "X", "role": "farmer",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "x@y.example", "password": "short", "firstName": "X", "role": "farmer",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "x@y.example", "password": "correct-horse", "firstName": "X", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "admin accounts cannot self-register")
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "marie@farm.example", "farmer")
	recorder := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "marie@farm.example", "password": "correct-horse", "firstName": "Marie", "role": "farmer",
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestAgronomistAlertFlow(t *testing.T) {
	f := newHandlerFixture(t)

	body := f.register(t, "ada@agro.example", "agronomist")
	assert.Equal(t, true, body["pendingApproval"])

	token := f.login(t, "ada@agro.example")

	alertBody := gin.H{
		"title":     "Aphid outbreak",
		"severity":  "high",
		"alertType": "pest",
		"cropType":  "wheat",
		"location":  gin.H{"latitude": 48.8566, "longitude": 2.3522},
	}

	// Pending agronomists cannot author yet.
	recorder := f.do(t, http.MethodPost, "/api/v1/alerts", token, alertBody)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Approve and retry; the stale token picks up the new approval state.
	userBody := body["user"].(map[string]any)
	require.NoError(t, f.users.SetApproval(userBody["id"].(string), true))

	recorder = f.do(t, http.MethodPost, "/api/v1/alerts", token, alertBody)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	created := decodeBody(t, recorder)
	assert.Equal(t, float64(0), created["notifiedUsers"], "no farmers online")

	// The alert is publicly listed.
	recorder = f.do(t, http.MethodGet, "/api/v1/alerts", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), decodeBody(t, recorder)["count"])

	// Another agronomist cannot delete it.
	otherBody := f.register(t, "bob@agro.example", "agronomist")
	otherUser := otherBody["user"].(map[string]any)
	require.NoError(t, f.users.SetApproval(otherUser["id"].(string), true))
	otherToken := f.login(t, "bob@agro.example")

	alertID := created["alert"].(map[string]any)["id"].(string)
	recorder = f.do(t, http.MethodDelete, "/api/v1/alerts/"+alertID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = f.do(t, http.MethodDelete, "/api/v1/alerts/"+alertID, token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestAlertCreateRequiresAuth(t *testing.T) {
	f := newHandlerFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/v1/alerts", "", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/v1/alerts", "garbage-token", gin.H{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestFarmersCannotCreateAlerts(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "marie@farm.example", "farmer")
	token := f.login(t, "marie@farm.example")

	recorder := f.do(t, http.MethodPost, "/api/v1/alerts", token, gin.H{
		"title":     "Fake alert",
		"severity":  "low",
		"alertType": "pest",
		"cropType":  "wheat",
		"location":  gin.H{"latitude": 48.85, "longitude": 2.35},
	})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestProfileUpdate(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "marie@farm.example", "farmer")
	token := f.login(t, "marie@farm.example")

	recorder := f.do(t, http.MethodPut, "/api/v1/profile", token, gin.H{
		"subscribedCrops": []string{"wheat", "corn"},
		"location":        gin.H{"latitude": 48.86, "longitude": 2.36},
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = f.do(t, http.MethodGet, "/api/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	userBody := decodeBody(t, recorder)["user"].(map[string]any)
	assert.Equal(t, []any{"wheat", "corn"}, userBody["subscribedCrops"])
	require.NotNil(t, userBody["location"])
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	f := newHandlerFixture(t)

	f.register(t, "marie@farm.example", "farmer")
	farmerToken := f.login(t, "marie@farm.example")

	recorder := f.do(t, http.MethodGet, "/api/v1/admin/pending", farmerToken, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// Seed an admin directly; admins are provisioned, not registered.
	adaBody := f.register(t, "ada@agro.example", "agronomist")
	adaID := adaBody["user"].(map[string]any)["id"].(string)

	admin := &user.Account{
		Identity: user.Identity{
			ID:         "admin-1",
			Email:      "root@cropalert.app",
			FirstName:  "Root",
			Role:       user.RoleAdmin,
			IsApproved: true,
		},
	}
	require.NoError(t, f.users.Store(admin))

	adminToken := mintToken(t, admin)

	recorder = f.do(t, http.MethodGet, "/api/v1/admin/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), decodeBody(t, recorder)["count"])

	recorder = f.do(t, http.MethodPost, "/api/v1/admin/users/"+adaID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	account, err := f.users.FindByID(adaID)
	require.NoError(t, err)
	assert.True(t, account.IsApproved)
}

// mintToken signs a token for a seeded account without a password round trip.
func mintToken(t *testing.T, account *user.Account) string {
	t.Helper()
	token, err := security.GenerateAccessToken(account.ID, string(account.Role), config.JWTSecret, config.TokenExpiry)
	require.NoError(t, err)
	return token
}
