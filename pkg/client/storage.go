package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	licenseFile = "license.json"
	cacheFile   = "cache.json"
)

func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".rz-automedata")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}
	return dir, nil
}

// localLicense is the persisted registration on this machine.
type localLicense struct {
	LicenseKey   string    `json:"license_key"`
	MachineID    string    `json:"machine_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (c *Client) saveLocalLicense(l *localLicense) error {
	return writeJSON(filepath.Join(c.dataDir, licenseFile), l)
}

func (c *Client) loadLocalLicense() (*localLicense, error) {
	var l localLicense
	if err := readJSON(filepath.Join(c.dataDir, licenseFile), &l); err != nil {
		return nil, err
	}
	if l.LicenseKey == "" {
		return nil, errors.New("corrupt license file")
	}
	return &l, nil
}

// offlineCache holds the last successful entitlement check for the grace
// period fallback.
type offlineCache struct {
	License  *License  `json:"license"`
	Entitled bool      `json:"entitled"`
	CachedAt time.Time `json:"cached_at"`
}

func (c *Client) saveOfflineCache(oc *offlineCache) error {
	return writeJSON(filepath.Join(c.dataDir, cacheFile), oc)
}

func (c *Client) loadOfflineCache() (*offlineCache, error) {
	var oc offlineCache
	if err := readJSON(filepath.Join(c.dataDir, cacheFile), &oc); err != nil {
		return nil, err
	}
	return &oc, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoLocalData
		}
		return err
	}
	return json.Unmarshal(raw, v)
}

// ErrNoLocalData means no registration or cache exists on this machine yet.
var ErrNoLocalData = errors.New("no local license data")
