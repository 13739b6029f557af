// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the chat TUI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Message role labels.
	UserLabel      lipgloss.Color
	AssistantLabel lipgloss.Color

	// Segment accents.
	ThinkingText lipgloss.Color
	ToolAccent   lipgloss.Color
	MemoryAccent lipgloss.Color

	// Tool-call statuses needing attention.
	PendingAccent lipgloss.Color
	DeniedAccent  lipgloss.Color

	// Transient notices (stream errors, server failures).
	NoticeForeground lipgloss.Color
	NoticeBackground lipgloss.Color

	// Session picker selection.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Filter match highlighting in the picker.
	MatchBackground lipgloss.Color

	// UI chrome.
	BorderColor lipgloss.Color
	HelpText    lipgloss.Color

	// Branch indicator (e.g. "2/3" under a regenerated message).
	BranchIndicator lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	UserLabel:      lipgloss.Color("114"), // green
	AssistantLabel: lipgloss.Color("75"),  // blue

	ThinkingText: lipgloss.Color("243"), // dim gray, visually secondary
	ToolAccent:   lipgloss.Color("220"), // amber
	MemoryAccent: lipgloss.Color("141"), // light purple

	PendingAccent: lipgloss.Color("208"), // orange
	DeniedAccent:  lipgloss.Color("196"), // red

	NoticeForeground: lipgloss.Color("255"),
	NoticeBackground: lipgloss.Color("52"), // dark red tint

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	MatchBackground: lipgloss.Color("58"), // dark amber

	BorderColor: lipgloss.Color("240"),
	HelpText:    lipgloss.Color("241"),

	BranchIndicator: lipgloss.Color("245"),
}
