package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivityAction_Valid(t *testing.T) {
	for _, a := range []ActivityAction{
		ActivityActionRegistered,
		ActivityActionActivated,
		ActivityActionDeactivated,
		ActivityActionExpired,
		ActivityActionRenewed,
		ActivityActionBanned,
		ActivityActionUnbanned,
		ActivityActionLicenseCheck,
		ActivityActionAppOpened,
		ActivityActionPlanChanged,
	} {
		assert.True(t, a.Valid(), string(a))
	}
	assert.False(t, ActivityAction("").Valid())
	assert.False(t, ActivityAction("totally_not_an_action").Valid())
}

func TestPlan_Valid(t *testing.T) {
	assert.True(t, PlanTrial.Valid())
	assert.True(t, PlanLifetime.Valid())
	assert.False(t, Plan("weekly").Valid())
}
