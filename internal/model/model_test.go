package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Team", &Team{}, "teams"},
		{"Point", &Point{}, "points"},
		{"Zone", &Zone{}, "zones"},
		{"Route", &Route{}, "routes"},
		{"PerkDefinition", &PerkDefinition{}, "perk_definitions"},
		{"ActivePerk", &ActivePerk{}, "active_perks"},
		{"PerkCooldown", &PerkCooldown{}, "perk_cooldowns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsCoverEveryTable(t *testing.T) {
	assert.Len(t, DatabaseModels, 7)
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T has no table name", m)
	}
}
