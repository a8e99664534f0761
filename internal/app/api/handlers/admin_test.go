package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/config"
	"github.com/rezars19/rz-automedata/pkg/types"
)

type stubManager struct {
	activateReq *license.ActivateRequest
	banned      []string
	unbanned    []string
	notFound    bool
}

func (s *stubManager) Activate(_ context.Context, req *license.ActivateRequest) (*license.ActivateResult, error) {
	s.activateReq = req
	exp := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &license.ActivateResult{Success: true, LicenseKey: req.LicenseKey, Plan: req.Plan, ExpiresAt: &exp}, nil
}

func (s *stubManager) SweepExpired(_ context.Context) (int64, error) { panic("not used") }

func (s *stubManager) Renew(_ context.Context, licenseKey string, durationDays int) (*license.ActivateResult, error) {
	return &license.ActivateResult{Success: true, LicenseKey: licenseKey}, nil
}

func (s *stubManager) Ban(_ context.Context, licenseKey, _ string) error {
	if s.notFound {
		return license.ErrLicenseNotFound
	}
	s.banned = append(s.banned, licenseKey)
	return nil
}

func (s *stubManager) Unban(_ context.Context, licenseKey string) error {
	s.unbanned = append(s.unbanned, licenseKey)
	return nil
}

func (s *stubManager) Deactivate(_ context.Context, _ string, _ string) error { return nil }

func (s *stubManager) ChangePlan(_ context.Context, _ string, _ types.Plan) error { return nil }

type stubAdminStore struct {
	licenses []*models.License
	settings map[string]string
	purged   int64
}

func (s *stubAdminStore) ListLicenses(_ context.Context, p policy.Principal, req *store.ListLicensesRequest) (*store.ListLicensesResponse, error) {
	if err := policy.Authorize(p, policy.ResourceLicense, policy.OpSelect); err != nil {
		return nil, err
	}
	return &store.ListLicensesResponse{Items: s.licenses, Total: int64(len(s.licenses))}, nil
}

func (s *stubAdminStore) DeleteLicense(_ context.Context, p policy.Principal, _ string) error {
	return policy.Authorize(p, policy.ResourceLicense, policy.OpDelete)
}

func (s *stubAdminStore) ListActivity(_ context.Context, _ policy.Principal, _ string, _ int) ([]*models.ActivityLog, error) {
	return nil, nil
}

func (s *stubAdminStore) PurgeActivity(_ context.Context, _ policy.Principal) (int64, error) {
	return s.purged, nil
}

func (s *stubAdminStore) CreateAppVersion(_ context.Context, _ policy.Principal, _ *models.AppVersion) error {
	return nil
}

func (s *stubAdminStore) UpdateAppVersion(_ context.Context, _ policy.Principal, _ string, _ map[string]any) error {
	return store.ErrNotFound
}

func (s *stubAdminStore) ListSettings(_ context.Context, _ policy.Principal) ([]*models.AdminSetting, error) {
	var out []*models.AdminSetting
	for k, v := range s.settings {
		out = append(out, &models.AdminSetting{Key: k, Value: v})
	}
	return out, nil
}

func (s *stubAdminStore) SetSetting(_ context.Context, _ policy.Principal, key, value string) error {
	if s.settings == nil {
		s.settings = map[string]string{}
	}
	s.settings[key] = value
	return nil
}

func adminTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.AdminEmail = "admin@example.com"
	cfg.Auth.AdminPassword = "hunter2"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	return cfg
}

func TestApiAdminLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", ApiAdminLogin(adminTestConfig()))

	w := postJSON(t, r, "/login", map[string]any{"email": "admin@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Code int           `json:"code"`
		Data LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 0, env.Code)
	require.NotEmpty(t, env.Data.Token)

	// the error envelope carries a string payload, not a LoginResponse
	w = postJSON(t, r, "/login", map[string]any{"email": "admin@example.com", "password": "wrong"})
	var errEnv struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errEnv))
	require.Equal(t, 40100, errEnv.Code)
}

func TestApiAdminLogin_RefusesWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := adminTestConfig()
	cfg.Auth.AdminEmail = ""
	r := gin.New()
	r.POST("/login", ApiAdminLogin(cfg))

	w := postJSON(t, r, "/login", map[string]any{"email": "", "password": ""})
	require.Contains(t, w.Body.String(), "invalid credentials")
}

func TestApiActivateLicense(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := &stubManager{}
	r := gin.New()
	r.POST("/activate_license", ApiActivateLicense(mgr))

	w := postJSON(t, r, "/activate_license", map[string]any{"license_key": "K1", "plan": "monthly", "duration_days": 30})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mgr.activateReq)
	require.Equal(t, types.PlanMonthly, mgr.activateReq.Plan)
	require.Equal(t, 30, mgr.activateReq.DurationDays)
	require.Contains(t, w.Body.String(), `"success":true`)
}

func TestApiBanLicense_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ban_license", ApiBanLicense(&stubManager{notFound: true}))

	w := postJSON(t, r, "/ban_license", map[string]any{"license_key": "K1", "reason": "abuse"})
	var env struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 40400, env.Code)
}

func TestApiBanLicense_RequiresKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ban_license", ApiBanLicense(&stubManager{}))

	w := postJSON(t, r, "/ban_license", map[string]any{"reason": "abuse"})
	require.Contains(t, w.Body.String(), "missing license_key")
}

func TestApiListLicenses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := &stubAdminStore{licenses: []*models.License{
		{ID: "id-1", LicenseKey: "K1", Plan: types.PlanTrial, Status: types.LicenseStatusActive},
	}}
	r := gin.New()
	r.POST("/list_licenses", ApiListLicenses(st))

	w := postJSON(t, r, "/list_licenses", map[string]any{"from": 0, "size": 10})
	var env struct {
		Data ListLicensesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.EqualValues(t, 1, env.Data.Total)
	require.Equal(t, "K1", env.Data.Items[0].LicenseKey)
}

func TestApiChangePlan_RejectsInvalidPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/change_plan", ApiChangePlan(&stubManager{}))

	w := postJSON(t, r, "/change_plan", map[string]any{"license_key": "K1", "plan": "weekly"})
	require.Contains(t, w.Body.String(), "invalid plan")
}

func TestApiSettingsRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := &stubAdminStore{}
	r := gin.New()
	r.POST("/settings", ApiSetSetting(st))
	r.GET("/settings", ApiListSettings(st))

	w := postJSON(t, r, "/settings", map[string]any{"key": "price_monthly", "value": "15"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "15", env.Data["price_monthly"])
}

func TestApiUpdateAppVersion_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PATCH("/versions/:version", ApiUpdateAppVersion(&stubAdminStore{}))

	body, _ := json.Marshal(map[string]any{"is_active": false})
	req := httptest.NewRequest(http.MethodPatch, "/versions/9.9.9", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Contains(t, w.Body.String(), "version not found")
}
