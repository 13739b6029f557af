// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the chat TUI.
type KeyMap struct {
	// Composer.
	Send    key.Binding // Submit the typed message as a turn.
	Newline key.Binding // Insert a line break without sending.

	// Turn control.
	Cancel     key.Binding // Stop the streaming turn.
	Regenerate key.Binding // Re-stream the latest assistant response.
	Edit       key.Binding // Edit the latest user message and resubmit.

	// Branch navigation on the selected assistant message.
	BranchPrevious key.Binding
	BranchNext     key.Binding

	// Transcript scrolling.
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Session management.
	Sessions   key.Binding // Open the session picker.
	NewSession key.Binding

	// Picker-mode bindings.
	PickerUp      key.Binding
	PickerDown    key.Binding
	PickerOpen    key.Binding
	PickerRename  key.Binding
	PickerDelete  key.Binding
	PickerDismiss key.Binding

	// Display toggles.
	ToggleThinking key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("alt+enter", "ctrl+j"),
		key.WithHelp("M-Enter", "newline"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "stop"),
	),
	Regenerate: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "regenerate"),
	),
	Edit: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("C-e", "edit last"),
	),
	BranchPrevious: key.NewBinding(
		key.WithKeys("ctrl+left", "ctrl+h"),
		key.WithHelp("C-←", "prev variant"),
	),
	BranchNext: key.NewBinding(
		key.WithKeys("ctrl+right", "ctrl+l"),
		key.WithHelp("C-→", "next variant"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("PgUp", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("PgDn", "scroll down"),
	),
	Sessions: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "sessions"),
	),
	NewSession: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "new session"),
	),
	PickerUp: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "up"),
	),
	// ctrl+n stays free so NewSession works inside the picker.
	PickerDown: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
		key.WithHelp("↓", "down"),
	),
	PickerOpen: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "open"),
	),
	PickerRename: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "rename"),
	),
	PickerDelete: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("C-x", "delete"),
	),
	PickerDismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "close"),
	),
	ToggleThinking: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "thinking"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
