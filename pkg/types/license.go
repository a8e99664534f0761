package types

// Plan is the commercial tier a license is sold under.
type Plan string

const (
	PlanTrial    Plan = "trial"
	PlanMonthly  Plan = "monthly"
	PlanYearly   Plan = "yearly"
	PlanLifetime Plan = "lifetime"
)

var plans = map[Plan]struct{}{
	PlanTrial:    {},
	PlanMonthly:  {},
	PlanYearly:   {},
	PlanLifetime: {},
}

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	_, ok := plans[p]
	return ok
}

// LicenseStatus is the lifecycle state of a license token.
type LicenseStatus string

const (
	LicenseStatusInactive LicenseStatus = "inactive"
	LicenseStatusActive   LicenseStatus = "active"
	LicenseStatusExpired  LicenseStatus = "expired"
	LicenseStatusBanned   LicenseStatus = "banned"
)

var licenseStatuses = map[LicenseStatus]struct{}{
	LicenseStatusInactive: {},
	LicenseStatusActive:   {},
	LicenseStatusExpired:  {},
	LicenseStatusBanned:   {},
}

func (s LicenseStatus) Valid() bool {
	_, ok := licenseStatuses[s]
	return ok
}

// ActivityAction identifies the event recorded in an activity log entry.
type ActivityAction string

const (
	ActivityActionRegistered   ActivityAction = "registered"
	ActivityActionActivated    ActivityAction = "activated"
	ActivityActionDeactivated  ActivityAction = "deactivated"
	ActivityActionExpired      ActivityAction = "expired"
	ActivityActionRenewed      ActivityAction = "renewed"
	ActivityActionBanned       ActivityAction = "banned"
	ActivityActionUnbanned     ActivityAction = "unbanned"
	ActivityActionLicenseCheck ActivityAction = "license_check"
	ActivityActionAppOpened    ActivityAction = "app_opened"
	ActivityActionPlanChanged  ActivityAction = "plan_changed"
)

var activityActions = map[ActivityAction]struct{}{
	ActivityActionRegistered:   {},
	ActivityActionActivated:    {},
	ActivityActionDeactivated:  {},
	ActivityActionExpired:      {},
	ActivityActionRenewed:      {},
	ActivityActionBanned:       {},
	ActivityActionUnbanned:     {},
	ActivityActionLicenseCheck: {},
	ActivityActionAppOpened:    {},
	ActivityActionPlanChanged:  {},
}

// Valid reports whether a is one of the known ledger actions.
func (a ActivityAction) Valid() bool {
	_, ok := activityActions[a]
	return ok
}
