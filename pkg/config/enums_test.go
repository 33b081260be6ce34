package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionMode_IsValid(t *testing.T) {
	tests := []struct {
		name string
		mode ExecutionMode
		want bool
	}{
		{"fast", ModeFast, true},
		{"balanced", ModeBalanced, true},
		{"best quality", ModeBestQuality, true},
		{"lowercase rejected", ExecutionMode("fast"), false},
		{"empty", ExecutionMode(""), false},
		{"unknown", ExecutionMode("TURBO"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.IsValid())
		})
	}
}

func TestTaskType_IsValid(t *testing.T) {
	for _, tt := range TaskTypeSpecificity {
		assert.True(t, tt.IsValid(), "expected %s to be valid", tt)
	}
	assert.False(t, TaskType("SUMMARIZATION").IsValid())
	assert.False(t, TaskType("").IsValid())
}

func TestTaskTypeSpecificity_Order(t *testing.T) {
	// Routing depends on this exact order; a reshuffle silently changes
	// which type wins ties.
	want := []TaskType{
		TaskCodeGeneration,
		TaskDebugging,
		TaskReasoning,
		TaskResearch,
		TaskFactCheck,
		TaskVerification,
		TaskCreative,
	}
	assert.Equal(t, want, TaskTypeSpecificity)
}

func TestRiskLevel_AtLeast(t *testing.T) {
	tests := []struct {
		name  string
		level RiskLevel
		floor RiskLevel
		want  bool
	}{
		{"high at least high", RiskHigh, RiskHigh, true},
		{"critical at least high", RiskCritical, RiskHigh, true},
		{"medium below high", RiskMedium, RiskHigh, false},
		{"low below medium", RiskLow, RiskMedium, false},
		{"unknown below everything", RiskLevel("SEVERE"), RiskLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.AtLeast(tt.floor))
		})
	}
}

func TestLimitsConfig_ForRole(t *testing.T) {
	limits := &LimitsConfig{Demo: 3, Authenticated: 100, Admin: 1000}

	assert.Equal(t, 3, limits.ForRole(RoleDemo))
	assert.Equal(t, 100, limits.ForRole(RoleAuthenticated))
	assert.Equal(t, 1000, limits.ForRole(RoleAdmin))
	// Unknown roles are treated as demo.
	assert.Equal(t, 3, limits.ForRole(Role("guest")))
}
