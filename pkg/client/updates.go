package client

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

// UpdateInfo describes a newer published version.
type UpdateInfo struct {
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	DownloadURL  string `json:"download_url"`
	IsMandatory  bool   `json:"is_mandatory"`
}

// CheckForUpdates compares the newest active release against the running
// version. It returns nil when already up to date.
func (c *Client) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	var items []*versionItem
	if err := c.call(ctx, http.MethodGet, "/api/v1/client/versions", nil, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	// versions arrive newest first
	latest := items[0]
	if semver.Compare(canonical(latest.Version), canonical(c.currentVersion)) <= 0 {
		return nil, nil
	}
	return &UpdateInfo{
		Version:      latest.Version,
		ReleaseNotes: latest.ReleaseNotes,
		DownloadURL:  latest.DownloadURL,
		IsMandatory:  latest.IsMandatory,
	}, nil
}

// canonical normalizes a bare "1.2.5" to the "v1.2.5" form semver expects.
func canonical(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
