package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoleFallsBackToLeastPrivilege(t *testing.T) {
	assert.Equal(t, RoleSuperAdmin, ParseRole("super_admin"))
	assert.Equal(t, RoleClient, ParseRole("client"))
	assert.Equal(t, RoleClient, ParseRole("SUPER_ADMIN"))
	assert.Equal(t, RoleClient, ParseRole(""))
	assert.True(t, RoleSuperAdmin.IsSuperAdmin())
	assert.False(t, RoleClient.IsSuperAdmin())
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateUnpublished, StateOf(false, false))
	assert.Equal(t, StateDraft, StateOf(false, true))
	assert.Equal(t, StateDraft, StateOf(true, true))
	assert.Equal(t, StatePublishedClean, StateOf(true, false))
}

func TestPlanMaxLinks(t *testing.T) {
	assert.Equal(t, FreeMaxLinks, PlanFree.MaxLinks())
	assert.Zero(t, PlanPro.MaxLinks())
	_, ok := ParsePlan("enterprise")
	assert.False(t, ok)
}

func TestUserHasClient(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.HasClient())
	id := "c1"
	assert.True(t, (&User{ClientID: &id}).HasClient())
	assert.False(t, (&User{}).HasClient())
}
