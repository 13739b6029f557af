// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/recall-sh/recall/lib/api"
)

// Timestamp layouts for picker rows.
const (
	timestampFull    = "2006-01-02 15:04"
	timestampCompact = "Jan 02 15:04"
)

func timestampFormat(compact bool) string {
	if compact {
		return timestampCompact
	}
	return timestampFull
}

// sessionPicker is the overlay for switching sessions: a filter input
// over the session list with fzf-style fuzzy matching.
type sessionPicker struct {
	sessions   []api.Session
	filtered   []pickerItem
	filter     textinput.Model
	cursor     int
	theme      Theme
	timeFormat string

	// offline marks a list served from the local cache because the
	// server was unreachable.
	offline bool

	// Inline rename of the session under the cursor.
	rename    textinput.Model
	renaming  bool
	renameUID string

	slab *util.Slab
}

// pickerItem is one session that survived the filter.
type pickerItem struct {
	session   api.Session
	score     int
	positions map[int]bool
}

func newSessionPicker(sessions []api.Session, offline bool, theme Theme, timeFormat string) *sessionPicker {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter sessions"
	filter.Focus()

	picker := &sessionPicker{
		sessions:   sessions,
		filter:     filter,
		theme:      theme,
		timeFormat: timeFormat,
		offline:    offline,
		slab:       util.MakeSlab(100*1024, 2048),
	}
	picker.applyFilter()
	return picker
}

// applyFilter recomputes the filtered list from the current filter
// text. Matches sort by fuzzy score, ties broken by recency.
func (picker *sessionPicker) applyFilter() {
	pattern := []rune(picker.filter.Value())
	picker.filtered = picker.filtered[:0]

	for _, session := range picker.sessions {
		result := fuzzyMatch(session.Title, pattern, picker.slab)
		if result.Score <= 0 {
			continue
		}
		positions := make(map[int]bool, len(result.Positions))
		if len(pattern) > 0 {
			for _, position := range result.Positions {
				positions[position] = true
			}
		}
		picker.filtered = append(picker.filtered, pickerItem{
			session:   session,
			score:     result.Score,
			positions: positions,
		})
	}

	sort.SliceStable(picker.filtered, func(a, b int) bool {
		if picker.filtered[a].score != picker.filtered[b].score {
			return picker.filtered[a].score > picker.filtered[b].score
		}
		return picker.filtered[a].session.UpdatedTs > picker.filtered[b].session.UpdatedTs
	})

	if picker.cursor >= len(picker.filtered) {
		picker.cursor = max(0, len(picker.filtered)-1)
	}
}

func (picker *sessionPicker) moveCursor(delta int) {
	picker.cursor += delta
	if picker.cursor < 0 {
		picker.cursor = 0
	}
	if picker.cursor >= len(picker.filtered) {
		picker.cursor = max(0, len(picker.filtered)-1)
	}
}

// selected returns the session under the cursor.
func (picker *sessionPicker) selected() (api.Session, bool) {
	if picker.cursor >= len(picker.filtered) {
		return api.Session{}, false
	}
	return picker.filtered[picker.cursor].session, true
}

// removeSession drops a session from the picker after server-side
// deletion succeeds.
func (picker *sessionPicker) removeSession(uid string) {
	kept := picker.sessions[:0]
	for _, session := range picker.sessions {
		if session.UID != uid {
			kept = append(kept, session)
		}
	}
	picker.sessions = kept
	picker.applyFilter()
}

// beginRename opens an inline rename input seeded with the selected
// session's title.
func (picker *sessionPicker) beginRename() {
	session, ok := picker.selected()
	if !ok {
		return
	}
	input := textinput.New()
	input.Prompt = "rename: "
	input.SetValue(session.Title)
	input.CursorEnd()
	input.Focus()
	picker.rename = input
	picker.renaming = true
	picker.renameUID = session.UID
	picker.filter.Blur()
}

func (picker *sessionPicker) cancelRename() {
	picker.renaming = false
	picker.renameUID = ""
	picker.filter.Focus()
}

// renameTarget returns the pending rename. ok is false when nothing is
// being renamed or the new title is blank.
func (picker *sessionPicker) renameTarget() (uid, title string, ok bool) {
	title = strings.TrimSpace(picker.rename.Value())
	if picker.renameUID == "" || title == "" {
		return "", "", false
	}
	return picker.renameUID, title, true
}

// updateTitle applies a server-confirmed rename to the list.
func (picker *sessionPicker) updateTitle(uid, title string) {
	for index := range picker.sessions {
		if picker.sessions[index].UID == uid {
			picker.sessions[index].Title = title
		}
	}
	picker.applyFilter()
}

// view renders the picker. height bounds the visible rows; the list
// scrolls to keep the cursor visible.
func (picker *sessionPicker) view(width, height int) string {
	var lines []string

	title := lipgloss.NewStyle().Foreground(picker.theme.NormalText).Bold(true).Render("Sessions")
	if picker.offline {
		offline := lipgloss.NewStyle().Foreground(picker.theme.PendingAccent).Render(" (offline cache)")
		title += offline
	}
	input := picker.filter.View()
	if picker.renaming {
		input = picker.rename.View()
	}
	lines = append(lines, title, input, "")

	visible := max(1, height-len(lines)-1)
	first := 0
	if picker.cursor >= visible {
		first = picker.cursor - visible + 1
	}

	if len(picker.filtered) == 0 {
		faint := lipgloss.NewStyle().Foreground(picker.theme.FaintText)
		lines = append(lines, faint.Render("no matching sessions"))
	}

	for index := first; index < len(picker.filtered) && index < first+visible; index++ {
		lines = append(lines, picker.renderRow(index, width))
	}
	return strings.Join(lines, "\n")
}

func (picker *sessionPicker) renderRow(index, width int) string {
	item := picker.filtered[index]
	title := picker.highlightTitle(item)
	updated := time.Unix(item.session.UpdatedTs, 0).Format(picker.timeFormat)

	faint := lipgloss.NewStyle().Foreground(picker.theme.FaintText)
	row := fmt.Sprintf("%s  %s", title, faint.Render(updated))

	if index == picker.cursor {
		selected := lipgloss.NewStyle().
			Background(picker.theme.SelectedBackground).
			Foreground(picker.theme.SelectedForeground)
		return selected.Render("▸ ") + row
	}
	return "  " + row
}

// highlightTitle styles the matched filter characters within a title.
func (picker *sessionPicker) highlightTitle(item pickerItem) string {
	normal := lipgloss.NewStyle().Foreground(picker.theme.NormalText)
	if len(item.positions) == 0 {
		return normal.Render(item.session.Title)
	}
	match := normal.Background(picker.theme.MatchBackground)

	var out strings.Builder
	for index, r := range []rune(item.session.Title) {
		if item.positions[index] {
			out.WriteString(match.Render(string(r)))
		} else {
			out.WriteString(normal.Render(string(r)))
		}
	}
	return out.String()
}
