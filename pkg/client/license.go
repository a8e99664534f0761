package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rezars19/rz-automedata/pkg/machineid"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// RegisterOrLoad returns the license bound to this installation. It loads the
// locally stored registration when present; otherwise it registers against
// the backend, which restores the existing row for a known machine
// fingerprint instead of creating a fresh trial.
func (c *Client) RegisterOrLoad(ctx context.Context) (*License, error) {
	machineID := machineid.ID()

	if local, err := c.loadLocalLicense(); err == nil {
		lic, err := c.fetchLicense(ctx, local.LicenseKey)
		if err == nil {
			return lic, nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			// offline; the stored key is still the best answer
			return &License{LicenseKey: local.LicenseKey, MachineID: local.MachineID}, nil
		}
		// the backend no longer knows this key; fall through and re-register
		c.log.Warnw("stored license rejected, re-registering", "err", err)
	}

	req := map[string]any{
		"license_key": tool.GenerateLicenseKey(),
		"machine_id":  machineID,
	}
	var res registerResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/client/register", req, &res); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	if res.License == nil {
		return nil, errors.New("empty registration response")
	}
	if res.Restored {
		c.log.Infow("restored existing license", "license_key", res.License.LicenseKey)
	}

	if err := c.saveLocalLicense(&localLicense{
		LicenseKey:   res.License.LicenseKey,
		MachineID:    machineID,
		RegisteredAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return res.License, nil
}

// CheckResult is the outcome of an entitlement check.
type CheckResult struct {
	License  *License
	Entitled bool
	Reason   string
	DaysLeft *int
	// Offline reports that the backend was unreachable and the result came
	// from the grace-period cache.
	Offline     bool
	OfflineDays int
}

// CheckLicense validates entitlement with the backend. When the backend is
// unreachable it falls back to the last cached check, honoring the offline
// grace period.
func (c *Client) CheckLicense(ctx context.Context) (*CheckResult, error) {
	local, err := c.loadLocalLicense()
	if err != nil {
		return nil, err
	}

	var res checkResponse
	err = c.call(ctx, http.MethodPost, "/api/v1/client/licenses/"+local.LicenseKey+"/check", nil, &res)
	if err == nil {
		out := &CheckResult{License: res.License, Entitled: res.Entitled, Reason: res.Reason, DaysLeft: res.DaysLeft}
		if res.License != nil && res.License.MachineID != "" && res.License.MachineID != local.MachineID {
			out.Entitled = false
			out.Reason = "license is bound to another machine"
		}
		if out.Entitled {
			if cerr := c.saveOfflineCache(&offlineCache{License: res.License, Entitled: true, CachedAt: time.Now().UTC()}); cerr != nil {
				c.log.Warnw("failed to cache entitlement", "err", cerr)
			}
		}
		return out, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// the backend answered; this is a real refusal, not connectivity
		return &CheckResult{Entitled: false, Reason: apiErr.Message}, nil
	}

	c.log.Warnw("license check unreachable, trying offline cache", "err", err)
	return c.checkOffline()
}

func (c *Client) checkOffline() (*CheckResult, error) {
	oc, err := c.loadOfflineCache()
	if err != nil {
		return nil, fmt.Errorf("backend unreachable and no offline cache: %w", err)
	}
	offlineDays := int(time.Since(oc.CachedAt).Hours() / 24)
	if offlineDays > OfflineGraceDays {
		return &CheckResult{
			Entitled:    false,
			Reason:      fmt.Sprintf("offline for %d days, grace period of %d days exceeded", offlineDays, OfflineGraceDays),
			Offline:     true,
			OfflineDays: offlineDays,
		}, nil
	}
	if !oc.Entitled || oc.License == nil || oc.License.Status != types.LicenseStatusActive {
		return &CheckResult{Entitled: false, Reason: "cached license is not active", Offline: true, OfflineDays: offlineDays}, nil
	}
	return &CheckResult{License: oc.License, Entitled: true, Offline: true, OfflineDays: offlineDays}, nil
}

// ReportAppOpened appends an app_opened event to the activity ledger. Errors
// are logged, not returned: telemetry must never block startup.
func (c *Client) ReportAppOpened(ctx context.Context) {
	local, err := c.loadLocalLicense()
	if err != nil {
		return
	}
	req := map[string]any{
		"license_key": local.LicenseKey,
		"action":      types.ActivityActionAppOpened,
		"details":     "v" + c.currentVersion,
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/client/activity", req, nil); err != nil {
		c.log.Debugw("app_opened event not delivered", "err", err)
	}
}

// Info is a compact license summary for UI display.
type Info struct {
	LicenseKey string              `json:"license_key"`
	Plan       types.Plan          `json:"plan"`
	Status     types.LicenseStatus `json:"status"`
	DaysLeft   *int                `json:"days_left"`
	Offline    bool                `json:"offline"`
}

// LicenseInfo returns a summary of the current license for display.
func (c *Client) LicenseInfo(ctx context.Context) (*Info, error) {
	local, err := c.loadLocalLicense()
	if err != nil {
		return nil, err
	}
	res, err := c.CheckLicense(ctx)
	if err != nil {
		return &Info{LicenseKey: local.LicenseKey}, nil
	}
	info := &Info{LicenseKey: local.LicenseKey, DaysLeft: res.DaysLeft, Offline: res.Offline}
	if res.License != nil {
		info.Plan = res.License.Plan
		info.Status = res.License.Status
	}
	return info, nil
}

func (c *Client) fetchLicense(ctx context.Context, key string) (*License, error) {
	var res checkResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/client/licenses/"+key+"/check", nil, &res); err != nil {
		return nil, err
	}
	return res.License, nil
}
