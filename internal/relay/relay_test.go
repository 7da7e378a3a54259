package relay_test

import (
	"strings"
	"testing"

	"github.com/masc-mcp/masc/internal/relay"
	"github.com/stretchr/testify/require"
)

func TestMaxTokensByModel(t *testing.T) {
	require.Equal(t, 200_000, relay.MaxTokens(relay.ModelClaude))
	require.Equal(t, 1_000_000, relay.MaxTokens(relay.ModelGemini))
	require.Equal(t, 128_000, relay.MaxTokens(relay.ModelGPT))
	require.Equal(t, 128_000, relay.MaxTokens(relay.ModelCodex))
	require.Equal(t, 100_000, relay.MaxTokens(relay.Model("unknown")))
}

func TestEstimateAndReactiveRelay(t *testing.T) {
	usage := relay.Estimate(100, 40, relay.ModelClaude)
	require.Equal(t, 220_000, usage.EstimatedTokens)
	require.InDelta(t, 1.1, usage.UsageRatio, 0.0001)

	decision := relay.ShouldRelay(usage, relay.TaskCostHint(relay.TaskSimple, 0), relay.DefaultThreshold)
	require.Equal(t, relay.Reactive, decision)
}

func TestProactiveRelay(t *testing.T) {
	usage := relay.Estimate(70, 10, relay.ModelClaude) // 145,000 tokens, ratio 0.725
	require.Less(t, usage.UsageRatio, relay.DefaultThreshold)

	decision := relay.ShouldRelay(usage, relay.TaskCostHint(relay.TaskLongRunning, 0), relay.DefaultThreshold)
	require.Equal(t, relay.Proactive, decision)
}

func TestNoRelay(t *testing.T) {
	usage := relay.Estimate(5, 2, relay.ModelClaude)
	decision := relay.ShouldRelay(usage, relay.TaskCostHint(relay.TaskSimple, 0), relay.DefaultThreshold)
	require.Equal(t, relay.NoRelay, decision)
}

func TestTaskCostHintMultiFileEditFloor(t *testing.T) {
	require.Equal(t, 3000, relay.TaskCostHint(relay.TaskMultiFileEdit, 0))
	require.Equal(t, 3000, relay.TaskCostHint(relay.TaskMultiFileEdit, 1))
	require.Equal(t, 9000, relay.TaskCostHint(relay.TaskMultiFileEdit, 3))
}

func TestBuildPromptSections(t *testing.T) {
	prompt := relay.BuildPrompt(relay.Payload{
		Summary:         "Implemented the lock manager.",
		CurrentTask:     "T42: add stale-lock reclamation",
		Todos:           []string{"write tests", "update docs"},
		RelevantFiles:   []string{"internal/room/locks.go"},
		RelayGeneration: 3,
	})

	require.True(t, strings.HasPrefix(prompt, "# RELAY HANDOFF — Generation 3"))
	require.Contains(t, prompt, "## Context Summary")
	require.Contains(t, prompt, "## Current Task")
	require.Contains(t, prompt, "## TODO List")
	require.Contains(t, prompt, "- write tests")
	require.Contains(t, prompt, "## Relevant Files")
	require.Contains(t, prompt, "`internal/room/locks.go`")
	require.NotContains(t, prompt, "## PDCA State")
}

func TestBuildPromptEmptySections(t *testing.T) {
	prompt := relay.BuildPrompt(relay.Payload{Summary: "nothing yet", RelayGeneration: 1})
	require.Contains(t, prompt, "_none_")
}
