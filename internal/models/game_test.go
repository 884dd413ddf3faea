// internal/models/game_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextEraOrdering(t *testing.T) {
	assert.Equal(t, EraProgression, NextEra(EraInitiation))
	assert.Equal(t, EraDistortion, NextEra(EraProgression))
	assert.Equal(t, EraEquilibrium, NextEra(EraDistortion))
	assert.Equal(t, EraEquilibrium, NextEra(EraEquilibrium), "Equilibrium is terminal")
}

func TestEraOrdinal(t *testing.T) {
	assert.Equal(t, 1, EraOrdinal(EraInitiation))
	assert.Equal(t, 4, EraOrdinal(EraEquilibrium))
	assert.Equal(t, 0, EraOrdinal(Era("Collapse")))
}

func TestValidEra(t *testing.T) {
	for _, era := range []Era{EraInitiation, EraProgression, EraDistortion, EraEquilibrium} {
		assert.True(t, ValidEra(string(era)))
	}
	assert.False(t, ValidEra(""))
	assert.False(t, ValidEra("Collapse"))
}

func TestValidRole(t *testing.T) {
	for _, role := range []Role{RoleTechnoMonk, RoleShadowBroker, RoleChronoDiplomat, RoleBioSmith} {
		assert.True(t, ValidRole(string(role)))
	}
	assert.False(t, ValidRole("Wanderer"))
}
