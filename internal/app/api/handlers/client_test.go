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
	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/types"
)

type stubEntitlementStore struct {
	byKey     map[string]*models.License
	byMachine map[string]*models.License
	appended  []*models.ActivityLog
	touched   []string
	versions  []*models.AppVersion
}

func newStubEntitlementStore() *stubEntitlementStore {
	return &stubEntitlementStore{
		byKey:     map[string]*models.License{},
		byMachine: map[string]*models.License{},
	}
}

func (s *stubEntitlementStore) RegisterLicense(_ context.Context, _ policy.Principal, lic *models.License) error {
	lic.ID = "id-" + lic.LicenseKey
	s.byKey[lic.LicenseKey] = lic
	if lic.MachineID != "" {
		s.byMachine[lic.MachineID] = lic
	}
	return nil
}

func (s *stubEntitlementStore) GetLicenseByKey(_ context.Context, _ policy.Principal, key string) (*models.License, error) {
	if lic, ok := s.byKey[key]; ok {
		return lic, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubEntitlementStore) FindLicenseByMachineID(_ context.Context, _ policy.Principal, machineID string) (*models.License, error) {
	if lic, ok := s.byMachine[machineID]; ok {
		return lic, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubEntitlementStore) UpdateLicenseFields(_ context.Context, _ policy.Principal, key string, _ map[string]any) error {
	if _, ok := s.byKey[key]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *stubEntitlementStore) TouchLastCheck(_ context.Context, _ policy.Principal, key string, _ time.Time) error {
	s.touched = append(s.touched, key)
	return nil
}

func (s *stubEntitlementStore) AppendActivity(_ context.Context, _ policy.Principal, entry *models.ActivityLog) error {
	s.appended = append(s.appended, entry)
	return nil
}

func (s *stubEntitlementStore) ListAppVersions(_ context.Context, _ policy.Principal) ([]*models.AppVersion, error) {
	return s.versions, nil
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiRegister_NewInstallation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	r := gin.New()
	r.POST("/register", ApiRegister(st))

	w := postJSON(t, r, "/register", map[string]any{"machine_id": "aabbccdd", "user_name": "Reza"})
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Code int              `json:"code"`
		Data RegisterResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.False(t, env.Data.Restored)
	require.NotEmpty(t, env.Data.License.LicenseKey)
	require.Equal(t, types.PlanTrial, env.Data.License.Plan)
	require.Equal(t, types.LicenseStatusInactive, env.Data.License.Status)

	require.Len(t, st.appended, 1)
	require.Equal(t, types.ActivityActionRegistered, st.appended[0].Action)
}

func TestApiRegister_RestoresKnownMachine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	existing := &models.License{ID: "id-1", LicenseKey: "AAAA-BBBB-CCCC-DDDD", MachineID: "aabbccdd", Status: types.LicenseStatusExpired, Plan: types.PlanMonthly}
	st.byMachine["aabbccdd"] = existing
	st.byKey[existing.LicenseKey] = existing

	r := gin.New()
	r.POST("/register", ApiRegister(st))

	w := postJSON(t, r, "/register", map[string]any{"machine_id": "aabbccdd"})
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data RegisterResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Data.Restored)
	require.Equal(t, "AAAA-BBBB-CCCC-DDDD", env.Data.License.LicenseKey)
	// restoring must not grant a fresh trial
	require.Equal(t, types.LicenseStatusExpired, env.Data.License.Status)
	require.Empty(t, st.appended)
}

func TestApiLicenseCheck_Entitled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	exp := time.Now().UTC().Add(10 * 24 * time.Hour)
	st.byKey["K1"] = &models.License{ID: "id-1", LicenseKey: "K1", Status: types.LicenseStatusActive, Plan: types.PlanMonthly, ExpiresAt: &exp}

	r := gin.New()
	r.POST("/licenses/:key/check", ApiLicenseCheck(st))

	w := postJSON(t, r, "/licenses/K1/check", nil)
	var env struct {
		Data LicenseCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Data.Entitled)
	require.Empty(t, env.Data.Reason)
	require.NotNil(t, env.Data.DaysLeft)
	require.Equal(t, 9, *env.Data.DaysLeft)

	require.Equal(t, []string{"K1"}, st.touched)
	require.Len(t, st.appended, 1)
	require.Equal(t, types.ActivityActionLicenseCheck, st.appended[0].Action)
}

func TestApiLicenseCheck_LapsedButUnswept(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	exp := time.Now().UTC().Add(-time.Hour)
	st.byKey["K1"] = &models.License{ID: "id-1", LicenseKey: "K1", Status: types.LicenseStatusActive, Plan: types.PlanMonthly, ExpiresAt: &exp}

	r := gin.New()
	r.POST("/licenses/:key/check", ApiLicenseCheck(st))

	w := postJSON(t, r, "/licenses/K1/check", nil)
	var env struct {
		Data LicenseCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.False(t, env.Data.Entitled)
	require.Equal(t, "subscription has expired", env.Data.Reason)
	// a lapsed license must not advertise a (negative) remaining-days count
	require.Nil(t, env.Data.DaysLeft)
}

func TestApiLicenseCheck_UnknownKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/licenses/:key/check", ApiLicenseCheck(newStubEntitlementStore()))

	w := postJSON(t, r, "/licenses/NOPE/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "license not registered")
}

func TestApiUpdateLicense_RejectsEmptyPatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PATCH("/licenses/:key", ApiUpdateLicense(newStubEntitlementStore()))

	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPatch, "/licenses/K1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Contains(t, w.Body.String(), "no fields to update")
}

func TestApiAppendActivity_RejectsUnknownAction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	r := gin.New()
	r.POST("/activity", ApiAppendActivity(st))

	w := postJSON(t, r, "/activity", map[string]any{"license_key": "K1", "action": "totally_not_an_action"})
	var env struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 40000, env.Code)
	require.Empty(t, st.appended, "nothing may reach the ledger")

	w = postJSON(t, r, "/activity", map[string]any{"license_key": "K1", "action": "app_opened"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, 0, env.Code)
	require.Len(t, st.appended, 1)
}

func TestApiListVersions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := newStubEntitlementStore()
	st.versions = []*models.AppVersion{
		{Version: "1.3.0", DownloadURL: "https://example.com/dl/1.3.0", IsMandatory: true},
		{Version: "1.2.0"},
	}
	r := gin.New()
	r.GET("/versions", ApiListVersions(st))

	req := httptest.NewRequest(http.MethodGet, "/versions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env struct {
		Data []*AppVersionItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	require.Equal(t, "1.3.0", env.Data[0].Version)
	require.True(t, env.Data[0].IsMandatory)
}
