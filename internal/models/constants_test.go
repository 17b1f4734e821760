package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitProject(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"открытый проект уходит в работу", ProjectStatusOpen, ProjectStatusInProgress, true},
		{"проект в работе завершается", ProjectStatusInProgress, ProjectStatusCompleted, true},
		{"нельзя завершить открытый проект напрямую", ProjectStatusOpen, ProjectStatusCompleted, false},
		{"нельзя вернуть проект в открытые", ProjectStatusInProgress, ProjectStatusOpen, false},
		{"завершённый проект не меняет статус", ProjectStatusCompleted, ProjectStatusInProgress, false},
		{"завершённый проект не открывается заново", ProjectStatusCompleted, ProjectStatusOpen, false},
		{"неизвестный исходный статус", "draft", ProjectStatusOpen, false},
		{"неизвестный целевой статус", ProjectStatusOpen, "archived", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransitProject(tc.from, tc.to))
		})
	}
}

func TestIsValidProjectStatus(t *testing.T) {
	assert.True(t, IsValidProjectStatus(ProjectStatusOpen))
	assert.True(t, IsValidProjectStatus(ProjectStatusInProgress))
	assert.True(t, IsValidProjectStatus(ProjectStatusCompleted))
	assert.False(t, IsValidProjectStatus("cancelled"))
	assert.False(t, IsValidProjectStatus(""))
}

func TestIsOverrideRole(t *testing.T) {
	assert.True(t, IsOverrideRole(RoleModerator))
	assert.True(t, IsOverrideRole(RoleAdmin))
	assert.False(t, IsOverrideRole(RoleClient))
	assert.False(t, IsOverrideRole(RoleContractor))
	assert.False(t, IsOverrideRole(""))
}
