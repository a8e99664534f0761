// Package client is the desktop-side library for the license backend. It
// registers installations, validates entitlement with an offline grace
// fallback, and checks for app updates.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rezars19/rz-automedata/pkg/response"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// OfflineGraceDays is how long a previously validated license keeps working
// without reaching the backend.
const OfflineGraceDays = 3

type Options struct {
	BaseURL string
	// APIKey is the shared client key baked into the build.
	APIKey string
	// DataDir holds license.json and cache.json. Defaults to
	// ~/.rz-automedata.
	DataDir string
	// CurrentVersion is the running build's version, used by update checks.
	CurrentVersion string

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

type Client struct {
	baseURL        string
	apiKey         string
	dataDir        string
	currentVersion string

	hc  *http.Client
	log *zap.SugaredLogger
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("missing base url")
	}
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:        opts.BaseURL,
		apiKey:         opts.APIKey,
		dataDir:        dataDir,
		currentVersion: opts.CurrentVersion,
		hc:             hc,
		log:            log,
	}, nil
}

// License is the wire shape of a license row as returned by the backend.
type License struct {
	ID          string              `json:"id"`
	LicenseKey  string              `json:"license_key"`
	MachineID   string              `json:"machine_id"`
	Plan        types.Plan          `json:"plan"`
	Status      types.LicenseStatus `json:"status"`
	ActivatedAt *time.Time          `json:"activated_at"`
	ExpiresAt   *time.Time          `json:"expires_at"`
	UserName    string              `json:"user_name"`
	UserEmail   string              `json:"user_email"`
}

type registerResponse struct {
	License  *License `json:"license"`
	Restored bool     `json:"restored"`
}

type checkResponse struct {
	License  *License `json:"license"`
	Entitled bool     `json:"entitled"`
	Reason   string   `json:"reason"`
	DaysLeft *int     `json:"days_left"`
}

type versionItem struct {
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	DownloadURL  string `json:"download_url"`
	IsMandatory  bool   `json:"is_mandatory"`
}

// call performs a JSON request against the backend and decodes the standard
// envelope. A non-zero envelope code is returned as an error.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Code    response.APIResponseCode `json:"code"`
		Message string                   `json:"message"`
		Data    json.RawMessage          `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, env.Message)
	}
	if env.Code != response.APIResponseCodeOK {
		return &APIError{Code: env.Code, Message: env.Message, Detail: string(env.Data)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// APIError is an application-level refusal from the backend.
type APIError struct {
	Code    response.APIResponseCode
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}
