package relay

import (
	"fmt"
	"strings"
)

// Payload is the structured context a fresh agent receives when taking
// over a task.
type Payload struct {
	Summary        string   `json:"summary"`
	CurrentTask    string   `json:"current_task,omitempty"`
	Todos          []string `json:"todos"`
	PDCAState      string   `json:"pdca_state,omitempty"`
	RelevantFiles  []string `json:"relevant_files"`
	SessionID      string   `json:"session_id,omitempty"`
	RelayGeneration int     `json:"relay_generation"`
}

// BuildPrompt renders p as a Markdown handoff document: a generation
// header; Context Summary, TODO List and Relevant Files sections, always
// present (an empty list renders as _none_); Current Task and PDCA State
// sections only when set; then standing instructions stressing seamless
// continuation via the room's tools.
func BuildPrompt(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# RELAY HANDOFF — Generation %d\n\n", p.RelayGeneration)

	b.WriteString("## Context Summary\n\n")
	b.WriteString(p.Summary)
	b.WriteString("\n\n")

	if p.CurrentTask != "" {
		b.WriteString("## Current Task\n\n")
		b.WriteString(p.CurrentTask)
		b.WriteString("\n\n")
	}

	b.WriteString("## TODO List\n\n")
	if len(p.Todos) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		for _, t := range p.Todos {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	if p.PDCAState != "" {
		b.WriteString("## PDCA State\n\n")
		b.WriteString(p.PDCAState)
		b.WriteString("\n\n")
	}

	b.WriteString("## Relevant Files\n\n")
	if len(p.RelevantFiles) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		for _, f := range p.RelevantFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	b.WriteString("You are continuing work from a prior agent that reached its context ")
	b.WriteString("limit. Use the MASC tools (`join`, `claim`, `read_messages`, `broadcast`) to pick ")
	b.WriteString("up exactly where this handoff leaves off. Do not repeat completed work; ")
	b.WriteString("treat the TODO list above as authoritative and proceed without asking the ")
	b.WriteString("room to re-explain context already captured here.\n")

	return b.String()
}
