package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/rezars19/rz-automedata/internal/app/auth"
	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/internal/app/service/statistics"
	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/internal/models"
	"github.com/rezars19/rz-automedata/pkg/config"
	"github.com/rezars19/rz-automedata/pkg/response"
	"github.com/rezars19/rz-automedata/pkg/types"
)

// AdminStore is the slice of the store the admin handlers use. Admin routes
// always run with the privileged principal set by the auth middleware.
type AdminStore interface {
	ListLicenses(ctx context.Context, p policy.Principal, req *store.ListLicensesRequest) (*store.ListLicensesResponse, error)
	DeleteLicense(ctx context.Context, p policy.Principal, licenseKey string) error
	ListActivity(ctx context.Context, p policy.Principal, licenseKey string, limit int) ([]*models.ActivityLog, error)
	PurgeActivity(ctx context.Context, p policy.Principal) (int64, error)
	CreateAppVersion(ctx context.Context, p policy.Principal, v *models.AppVersion) error
	UpdateAppVersion(ctx context.Context, p policy.Principal, version string, fields map[string]any) error
	ListSettings(ctx context.Context, p policy.Principal) ([]*models.AdminSetting, error)
	SetSetting(ctx context.Context, p policy.Principal, key, value string) error
}

// DashboardProvider supplies the aggregated dashboard numbers.
type DashboardProvider interface {
	GetDashboardStatistics(ctx context.Context) (*statistics.DashboardStatistics, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// @Summary      Admin Login
// @Description  Exchanges admin credentials for a bearer token.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Admin credentials"
// @Success      200  {object}  handlers.RespLogin
// @Router       /api/v1/admin/login [post]
func ApiAdminLogin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if cfg.Auth.AdminEmail == "" ||
			req.Email != cfg.Auth.AdminEmail || req.Password != cfg.Auth.AdminPassword {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid credentials"))
			return
		}
		token, expiresAt, err := auth.GenerateAdminToken(cfg, req.Email)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&LoginResponse{Token: token, ExpiresAt: expiresAt}))
	}
}

// @Summary      Activate License (Admin)
// @Description  Activates a license for a plan; re-activating resets the subscription window to now.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body license.ActivateRequest true "Activation request"
// @Success      200  {object}  handlers.RespActivate
// @Router       /api/v1/admin/activate_license [post]
func ApiActivateLicense(mgr license.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req license.ActivateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := mgr.Activate(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type RenewRequest struct {
	LicenseKey   string `json:"license_key"`
	DurationDays int    `json:"duration_days"`
}

// @Summary      Renew License (Admin)
// @Description  Extends the subscription from its current expiry, or from now when already lapsed.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body RenewRequest true "Renewal request"
// @Success      200  {object}  handlers.RespActivate
// @Router       /api/v1/admin/renew_license [post]
func ApiRenewLicense(mgr license.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RenewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := mgr.Renew(c.Request.Context(), req.LicenseKey, req.DurationDays)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type LicenseActionRequest struct {
	LicenseKey string `json:"license_key"`
	Reason     string `json:"reason"`
}

func licenseActionHandler(fn func(ctx context.Context, req *LicenseActionRequest) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LicenseActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.LicenseKey == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing license_key"))
			return
		}
		err := fn(c.Request.Context(), &req)
		if errors.Is(err, license.ErrLicenseNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "license not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Ban License (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body LicenseActionRequest true "Ban request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/ban_license [post]
func ApiBanLicense(mgr license.Manager) gin.HandlerFunc {
	return licenseActionHandler(func(ctx context.Context, req *LicenseActionRequest) error {
		return mgr.Ban(ctx, req.LicenseKey, req.Reason)
	})
}

// @Summary      Unban License (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body LicenseActionRequest true "Unban request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/unban_license [post]
func ApiUnbanLicense(mgr license.Manager) gin.HandlerFunc {
	return licenseActionHandler(func(ctx context.Context, req *LicenseActionRequest) error {
		return mgr.Unban(ctx, req.LicenseKey)
	})
}

// @Summary      Deactivate License (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body LicenseActionRequest true "Deactivation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/deactivate_license [post]
func ApiDeactivateLicense(mgr license.Manager) gin.HandlerFunc {
	return licenseActionHandler(func(ctx context.Context, req *LicenseActionRequest) error {
		return mgr.Deactivate(ctx, req.LicenseKey, req.Reason)
	})
}

type ChangePlanRequest struct {
	LicenseKey string     `json:"license_key"`
	Plan       types.Plan `json:"plan"`
}

// @Summary      Change License Plan (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ChangePlanRequest true "Plan change request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/change_plan [post]
func ApiChangePlan(mgr license.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if !req.Plan.Valid() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid plan"))
			return
		}
		err := mgr.ChangePlan(c.Request.Context(), req.LicenseKey, req.Plan)
		if errors.Is(err, license.ErrLicenseNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "license not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type LicenseItem struct {
	ID          string              `json:"id"`
	LicenseKey  string              `json:"license_key"`
	MachineID   string              `json:"machine_id"`
	Plan        types.Plan          `json:"plan"`
	Status      types.LicenseStatus `json:"status"`
	ActivatedAt *time.Time          `json:"activated_at"`
	ExpiresAt   *time.Time          `json:"expires_at"`
	LastCheck   *time.Time          `json:"last_check"`
	UserName    string              `json:"user_name"`
	UserEmail   string              `json:"user_email"`
	Notes       string              `json:"notes"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toLicenseItem(m *models.License) *LicenseItem {
	return &LicenseItem{
		ID:          m.ID,
		LicenseKey:  m.LicenseKey,
		MachineID:   m.MachineID,
		Plan:        m.Plan,
		Status:      m.Status,
		ActivatedAt: m.ActivatedAt,
		ExpiresAt:   m.ExpiresAt,
		LastCheck:   m.LastCheck,
		UserName:    m.UserName,
		UserEmail:   m.UserEmail,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type ListLicensesResponse struct {
	Items []*LicenseItem `json:"items"`
	Total int64          `json:"total"`
}

// @Summary      List Licenses (Admin)
// @Description  Retrieves a paginated and filterable list of licenses.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body store.ListLicensesRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListLicenses
// @Router       /api/v1/admin/list_licenses [post]
func ApiListLicenses(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req store.ListLicensesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := st.ListLicenses(c.Request.Context(), policy.PrincipalPrivileged, &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.License, _ int) *LicenseItem { return toLicenseItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListLicensesResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Delete License (Admin)
// @Tags         Admin
// @Produce      json
// @Param        key  path  string  true  "License key"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/licenses/{key} [delete]
func ApiDeleteLicense(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := st.DeleteLicense(c.Request.Context(), policy.PrincipalPrivileged, c.Param("key"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "license not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type ListActivityResponse struct {
	Items []*models.ActivityLog `json:"items"`
}

// @Summary      List Activity (Admin)
// @Description  Lists ledger entries newest first, optionally scoped to a license key.
// @Tags         Admin
// @Produce      json
// @Param        license_key  query  string  false  "Scope to a single license key"
// @Param        limit        query  int     false  "Max rows (default 50)"
// @Success      200  {object}  handlers.RespActivity
// @Router       /api/v1/admin/activity [get]
func ApiListActivity(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid limit"))
				return
			}
			limit = n
		}
		rows, err := st.ListActivity(c.Request.Context(), policy.PrincipalPrivileged, c.Query("license_key"), limit)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListActivityResponse{Items: rows}))
	}
}

// @Summary      Purge Activity (Admin)
// @Description  Deletes all ledger entries. Bulk maintenance only.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/activity [delete]
func ApiPurgeActivity(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := st.PurgeActivity(c.Request.Context(), policy.PrincipalPrivileged)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]int64{"deleted": n}))
	}
}

type CreateAppVersionRequest struct {
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	DownloadURL  string `json:"download_url"`
	IsMandatory  bool   `json:"is_mandatory"`
	IsActive     *bool  `json:"is_active"`
}

// @Summary      Publish App Version (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body CreateAppVersionRequest true "Version metadata"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/versions [post]
func ApiCreateAppVersion(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAppVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.Version == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing version"))
			return
		}
		v := &models.AppVersion{
			Version:      req.Version,
			ReleaseNotes: req.ReleaseNotes,
			DownloadURL:  req.DownloadURL,
			IsMandatory:  req.IsMandatory,
			IsActive:     req.IsActive == nil || *req.IsActive,
		}
		if err := st.CreateAppVersion(c.Request.Context(), policy.PrincipalPrivileged, v); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type UpdateAppVersionRequest struct {
	ReleaseNotes *string `json:"release_notes"`
	DownloadURL  *string `json:"download_url"`
	IsMandatory  *bool   `json:"is_mandatory"`
	IsActive     *bool   `json:"is_active"`
}

// @Summary      Update App Version (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        version  path  string                   true  "Version string"
// @Param        request  body  UpdateAppVersionRequest  true  "Fields to update"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/versions/{version} [patch]
func ApiUpdateAppVersion(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateAppVersionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		fields := map[string]any{}
		if req.ReleaseNotes != nil {
			fields["release_notes"] = *req.ReleaseNotes
		}
		if req.DownloadURL != nil {
			fields["download_url"] = *req.DownloadURL
		}
		if req.IsMandatory != nil {
			fields["is_mandatory"] = *req.IsMandatory
		}
		if req.IsActive != nil {
			fields["is_active"] = *req.IsActive
		}
		if len(fields) == 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "no fields to update"))
			return
		}
		err := st.UpdateAppVersion(c.Request.Context(), policy.PrincipalPrivileged, c.Param("version"), fields)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "version not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      List Settings (Admin)
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespSettings
// @Router       /api/v1/admin/settings [get]
func ApiListSettings(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := st.ListSettings(c.Request.Context(), policy.PrincipalPrivileged)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		out := lo.SliceToMap(rows, func(s *models.AdminSetting) (string, string) { return s.Key, s.Value })
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

type SetSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// @Summary      Set Setting (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body SetSettingRequest true "Setting key and value"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/settings [post]
func ApiSetSetting(st AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetSettingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.Key == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing key"))
			return
		}
		if err := st.SetSetting(c.Request.Context(), policy.PrincipalPrivileged, req.Key, req.Value); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Dashboard Statistics (Admin)
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespStatistics
// @Router       /api/v1/admin/statistics [get]
func ApiDashboardStatistics(svc DashboardProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.GetDashboardStatistics(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, mgr license.Manager, st *store.Store, stats *statistics.Service) {
	r.POST("/activate_license", ApiActivateLicense(mgr))
	r.POST("/renew_license", ApiRenewLicense(mgr))
	r.POST("/ban_license", ApiBanLicense(mgr))
	r.POST("/unban_license", ApiUnbanLicense(mgr))
	r.POST("/deactivate_license", ApiDeactivateLicense(mgr))
	r.POST("/change_plan", ApiChangePlan(mgr))
	r.POST("/list_licenses", ApiListLicenses(st))
	r.DELETE("/licenses/:key", ApiDeleteLicense(st))
	r.GET("/activity", ApiListActivity(st))
	r.DELETE("/activity", ApiPurgeActivity(st))
	r.POST("/versions", ApiCreateAppVersion(st))
	r.PATCH("/versions/:version", ApiUpdateAppVersion(st))
	r.GET("/settings", ApiListSettings(st))
	r.POST("/settings", ApiSetSetting(st))
	r.GET("/statistics", ApiDashboardStatistics(stats))
}
