package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/datatypes"

	mw "github.com/rezars19/rz-automedata/internal/app/api/middleware"
	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/metrics"
	"github.com/rezars19/rz-automedata/pkg/response"
	"github.com/rezars19/rz-automedata/pkg/tool"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// EntitlementStore is the slice of the store the client-facing handlers use.
// All calls carry the principal resolved by the auth middleware.
type EntitlementStore interface {
	RegisterLicense(ctx context.Context, p policy.Principal, lic *models.License) error
	GetLicenseByKey(ctx context.Context, p policy.Principal, licenseKey string) (*models.License, error)
	FindLicenseByMachineID(ctx context.Context, p policy.Principal, machineID string) (*models.License, error)
	UpdateLicenseFields(ctx context.Context, p policy.Principal, licenseKey string, fields map[string]any) error
	TouchLastCheck(ctx context.Context, p policy.Principal, licenseKey string, at time.Time) error
	AppendActivity(ctx context.Context, p policy.Principal, entry *models.ActivityLog) error
	ListAppVersions(ctx context.Context, p policy.Principal) ([]*models.AppVersion, error)
}

type RegisterRequest struct {
	LicenseKey string `json:"license_key"`
	MachineID  string `json:"machine_id"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
}

type RegisterResponse struct {
	License *models.License `json:"license"`
	// Restored is true when the machine fingerprint matched an existing
	// registration and that row was returned instead of a fresh trial.
	Restored bool `json:"restored"`
}

// @Summary      Register Installation
// @Description  Registers a new installation, or restores the existing license for a known machine fingerprint.
// @Tags         Client
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration request"
// @Success      200  {object}  handlers.RespRegister
// @Router       /api/v1/client/register [post]
func ApiRegister(st EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p := mw.PrincipalFromGin(c)
		ctx := c.Request.Context()

		// Reinstall on a known machine restores the original license row,
		// expired state included, so wiping the app never grants a new trial.
		if req.MachineID != "" {
			existing, err := st.FindLicenseByMachineID(ctx, p, req.MachineID)
			if err == nil {
				c.JSON(http.StatusOK, response.OKT(&RegisterResponse{License: existing, Restored: true}))
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
				return
			}
		}

		key := req.LicenseKey
		if key == "" {
			key = tool.GenerateLicenseKey()
		}
		lic := &models.License{
			LicenseKey: key,
			MachineID:  req.MachineID,
			Plan:       types.PlanTrial,
			Status:     types.LicenseStatusInactive,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
		}
		if err := st.RegisterLicense(ctx, p, lic); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		entry := &models.ActivityLog{
			LicenseID:  &lic.ID,
			LicenseKey: lic.LicenseKey,
			Action:     types.ActivityActionRegistered,
			Details:    "New installation",
			IPAddress:  c.ClientIP(),
			Extra:      datatypes.JSONMap{"machine_id": req.MachineID},
		}
		// registration already committed; a missing ledger entry does not
		// fail the call
		_ = st.AppendActivity(ctx, p, entry)

		metrics.RegistrationsTotal.Inc()
		c.JSON(http.StatusOK, response.OKT(&RegisterResponse{License: lic}))
	}
}

type LicenseCheckResponse struct {
	License  *models.License `json:"license"`
	Entitled bool            `json:"entitled"`
	// Reason explains a refused entitlement (inactive, banned, expired, lapsed).
	Reason string `json:"reason,omitempty"`
	// DaysLeft is populated only while entitled; lifetime plans omit it.
	DaysLeft *int `json:"days_left,omitempty"`
}

// entitlementReason classifies why a license is not entitled at now.
func entitlementReason(lic *models.License, now time.Time) string {
	switch lic.Status {
	case types.LicenseStatusBanned:
		return "license is banned"
	case types.LicenseStatusInactive:
		return "license is not activated"
	case types.LicenseStatusExpired:
		return "subscription has expired"
	}
	if lic.ExpiresAt != nil && !lic.ExpiresAt.After(now) {
		// lapsed but not yet swept; the check must refuse entitlement anyway
		return "subscription has expired"
	}
	return ""
}

func daysLeft(lic *models.License, now time.Time) *int {
	if lic.ExpiresAt == nil {
		return nil
	}
	d := int(lic.ExpiresAt.Sub(now).Hours() / 24)
	return &d
}

// @Summary      License Check
// @Description  Validates entitlement for a license key, records the check-in and appends a ledger entry.
// @Tags         Client
// @Produce      json
// @Param        key  path  string  true  "License key"
// @Success      200  {object}  handlers.RespLicenseCheck
// @Router       /api/v1/client/licenses/{key}/check [post]
func ApiLicenseCheck(st EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		p := mw.PrincipalFromGin(c)
		ctx := c.Request.Context()
		now := time.Now().UTC()

		lic, err := st.GetLicenseByKey(ctx, p, key)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "license not registered"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		out := &LicenseCheckResponse{
			License:  lic,
			Entitled: lic.Entitled(now),
		}
		if out.Entitled {
			out.DaysLeft = daysLeft(lic, now)
		} else {
			out.Reason = entitlementReason(lic, now)
		}

		if err := st.TouchLastCheck(ctx, p, key, now); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		entry := &models.ActivityLog{
			LicenseID:  &lic.ID,
			LicenseKey: lic.LicenseKey,
			Action:     types.ActivityActionLicenseCheck,
			IPAddress:  c.ClientIP(),
		}
		_ = st.AppendActivity(ctx, p, entry)

		metrics.LicenseChecksTotal.Inc()
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

type UpdateLicenseRequest struct {
	UserName  *string `json:"user_name"`
	UserEmail *string `json:"user_email"`
}

// @Summary      Update License Contact Fields
// @Description  Lets the client fill in the optional user name/email on its license row.
// @Tags         Client
// @Accept       json
// @Produce      json
// @Param        key      path  string                true  "License key"
// @Param        request  body  UpdateLicenseRequest  true  "Fields to update"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/client/licenses/{key} [patch]
func ApiUpdateLicense(st EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		fields := map[string]any{}
		if req.UserName != nil {
			fields["user_name"] = *req.UserName
		}
		if req.UserEmail != nil {
			fields["user_email"] = *req.UserEmail
		}
		if len(fields) == 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "no fields to update"))
			return
		}
		err := st.UpdateLicenseFields(c.Request.Context(), mw.PrincipalFromGin(c), c.Param("key"), fields)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "license not registered"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type AppendActivityRequest struct {
	LicenseKey string               `json:"license_key"`
	Action     types.ActivityAction `json:"action"`
	Details    string               `json:"details"`
}

// @Summary      Append Activity Event
// @Description  Appends a client event (e.g. app_opened) to the activity ledger.
// @Tags         Client
// @Accept       json
// @Produce      json
// @Param        request body AppendActivityRequest true "Activity event"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/client/activity [post]
func ApiAppendActivity(st EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AppendActivityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.LicenseKey == "" || req.Action == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing license_key or action"))
			return
		}
		if !req.Action.Valid() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid action"))
			return
		}
		entry := &models.ActivityLog{
			LicenseKey: req.LicenseKey,
			Action:     req.Action,
			Details:    req.Details,
			IPAddress:  c.ClientIP(),
		}
		if err := st.AppendActivity(c.Request.Context(), mw.PrincipalFromGin(c), entry); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type AppVersionItem struct {
	Version      string    `json:"version"`
	ReleaseNotes string    `json:"release_notes"`
	DownloadURL  string    `json:"download_url"`
	IsMandatory  bool      `json:"is_mandatory"`
	CreatedAt    time.Time `json:"created_at"`
}

// @Summary      List Published Versions
// @Description  Returns active release rows for client update checks, newest first.
// @Tags         Client
// @Produce      json
// @Success      200  {object}  handlers.RespVersions
// @Router       /api/v1/client/versions [get]
func ApiListVersions(st EntitlementStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := st.ListAppVersions(c.Request.Context(), mw.PrincipalFromGin(c))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(rows, func(v *models.AppVersion, _ int) *AppVersionItem {
			return &AppVersionItem{
				Version:      v.Version,
				ReleaseNotes: v.ReleaseNotes,
				DownloadURL:  v.DownloadURL,
				IsMandatory:  v.IsMandatory,
				CreatedAt:    v.CreatedAt,
			}
		})
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterClientRoutes(r gin.IRouter, st *store.Store) {
	r.POST("/register", ApiRegister(st))
	r.POST("/licenses/:key/check", ApiLicenseCheck(st))
	r.PATCH("/licenses/:key", ApiUpdateLicense(st))
	r.POST("/activity", ApiAppendActivity(st))
	r.GET("/versions", ApiListVersions(st))
}
