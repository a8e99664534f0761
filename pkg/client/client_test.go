package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rezars19/rz-automedata/pkg/response"
	"github.com/rezars19/rz-automedata/pkg/types"
)

func newTestBackend(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:        baseURL,
		APIKey:         "client-key",
		DataDir:        t.TempDir(),
		CurrentVersion: "1.2.5",
	})
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(response.OKT(data))
}

func TestRegisterOrLoad_FreshInstall(t *testing.T) {
	mux := http.NewServeMux()
	var gotKey, gotAPIKey string
	mux.HandleFunc("POST /api/v1/client/register", func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")
		var req struct {
			LicenseKey string `json:"license_key"`
			MachineID  string `json:"machine_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotKey = req.LicenseKey
		writeEnvelope(w, registerResponse{License: &License{
			LicenseKey: req.LicenseKey,
			MachineID:  req.MachineID,
			Plan:       types.PlanTrial,
			Status:     types.LicenseStatusInactive,
		}})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)

	lic, err := c.RegisterOrLoad(context.Background())
	require.NoError(t, err)
	require.Equal(t, gotKey, lic.LicenseKey)
	require.Equal(t, "client-key", gotAPIKey)
	require.Regexp(t, `^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`, lic.LicenseKey)

	// the registration must be persisted for the next start
	local, err := c.loadLocalLicense()
	require.NoError(t, err)
	require.Equal(t, lic.LicenseKey, local.LicenseKey)
}

func TestCheckLicense_EntitledCachesResult(t *testing.T) {
	exp := time.Now().UTC().Add(20 * 24 * time.Hour)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/client/licenses/{key}/check", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, checkResponse{
			License:  &License{LicenseKey: r.PathValue("key"), Status: types.LicenseStatusActive, Plan: types.PlanMonthly, ExpiresAt: &exp},
			Entitled: true,
		})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "AAAA-BBBB-CCCC-DDDD"}))

	res, err := c.CheckLicense(context.Background())
	require.NoError(t, err)
	require.True(t, res.Entitled)
	require.False(t, res.Offline)

	oc, err := c.loadOfflineCache()
	require.NoError(t, err)
	require.True(t, oc.Entitled)
	require.Equal(t, "AAAA-BBBB-CCCC-DDDD", oc.License.LicenseKey)
}

func TestCheckLicense_MachineMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/client/licenses/{key}/check", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, checkResponse{
			License:  &License{LicenseKey: r.PathValue("key"), MachineID: "other-machine", Status: types.LicenseStatusActive},
			Entitled: true,
		})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1", MachineID: "this-machine"}))

	res, err := c.CheckLicense(context.Background())
	require.NoError(t, err)
	require.False(t, res.Entitled)
	require.Equal(t, "license is bound to another machine", res.Reason)
}

func TestCheckLicense_OfflineWithinGrace(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1") // nothing listens here
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1"}))
	require.NoError(t, c.saveOfflineCache(&offlineCache{
		License:  &License{LicenseKey: "K1", Status: types.LicenseStatusActive},
		Entitled: true,
		CachedAt: time.Now().UTC().Add(-24 * time.Hour),
	}))

	res, err := c.CheckLicense(context.Background())
	require.NoError(t, err)
	require.True(t, res.Entitled)
	require.True(t, res.Offline)
	require.Equal(t, 1, res.OfflineDays)
}

func TestCheckLicense_OfflineGraceExceeded(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1"}))
	require.NoError(t, c.saveOfflineCache(&offlineCache{
		License:  &License{LicenseKey: "K1", Status: types.LicenseStatusActive},
		Entitled: true,
		CachedAt: time.Now().UTC().Add(-5 * 24 * time.Hour),
	}))

	res, err := c.CheckLicense(context.Background())
	require.NoError(t, err)
	require.False(t, res.Entitled)
	require.True(t, res.Offline)
}

func TestCheckLicense_BackendRefusalIsNotOffline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/client/licenses/{key}/check", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(response.ErrorT[any](response.APIResponseCodeNotFound, "license not registered"))
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1"}))
	// a stale cache must not override an explicit refusal
	require.NoError(t, c.saveOfflineCache(&offlineCache{
		License:  &License{LicenseKey: "K1", Status: types.LicenseStatusActive},
		Entitled: true,
		CachedAt: time.Now().UTC(),
	}))

	res, err := c.CheckLicense(context.Background())
	require.NoError(t, err)
	require.False(t, res.Entitled)
	require.False(t, res.Offline)
}

func TestCheckForUpdates(t *testing.T) {
	latest := &versionItem{Version: "2.0.0", DownloadURL: "https://example.com/dl/2.0.0", IsMandatory: true}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/client/versions", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, []*versionItem{latest, {Version: "1.2.5"}})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)

	info, err := c.CheckForUpdates(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "2.0.0", info.Version)
	require.True(t, info.IsMandatory)
}

func TestCheckForUpdates_AlreadyLatest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/client/versions", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, []*versionItem{{Version: "1.2.5"}})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)

	info, err := c.CheckForUpdates(context.Background())
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestReportAppOpened_SwallowsErrors(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1"}))
	// must not panic or block on an unreachable backend
	c.ReportAppOpened(context.Background())
}

func TestLicenseInfo(t *testing.T) {
	exp := time.Now().UTC().Add(10 * 24 * time.Hour)
	days := 9
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/client/licenses/{key}/check", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, checkResponse{
			License:  &License{LicenseKey: r.PathValue("key"), Status: types.LicenseStatusActive, Plan: types.PlanYearly, ExpiresAt: &exp},
			Entitled: true,
			DaysLeft: &days,
		})
	})
	srv := newTestBackend(t, mux)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.saveLocalLicense(&localLicense{LicenseKey: "K1"}))

	info, err := c.LicenseInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "K1", info.LicenseKey)
	require.Equal(t, types.PlanYearly, info.Plan)
	require.Equal(t, 9, *info.DaysLeft)
}

func TestLoadLocalLicense_Missing(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.loadLocalLicense()
	require.ErrorIs(t, err, ErrNoLocalData)
}
