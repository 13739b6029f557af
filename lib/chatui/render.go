// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recall-sh/recall/lib/chat"
)

// transcriptOptions controls transcript rendering.
type transcriptOptions struct {
	width        int
	showThinking bool

	// streaming marks the final assistant message as in progress; its
	// header gets the spinner frame instead of the role label alone.
	streaming    bool
	spinnerFrame string
}

// renderTranscript renders the whole conversation for the viewport.
func renderTranscript(messages []chat.Message, theme Theme, options transcriptOptions) string {
	if len(messages) == 0 {
		empty := lipgloss.NewStyle().Foreground(theme.FaintText)
		return empty.Render("No messages yet. Type below and press Enter to start.")
	}

	var sections []string
	for index := range messages {
		message := &messages[index]
		last := index == len(messages)-1
		sections = append(sections, renderMessage(message, theme, options, last))
	}
	return strings.Join(sections, "\n\n")
}

func renderMessage(message *chat.Message, theme Theme, options transcriptOptions, last bool) string {
	var lines []string
	lines = append(lines, renderHeader(message, theme, options, last))

	switch message.Role {
	case chat.RoleUser:
		body := lipgloss.NewStyle().Foreground(theme.NormalText).
			Width(options.width).Render(message.Content)
		lines = append(lines, body)

	case chat.RoleAssistant:
		for _, segment := range message.Segments() {
			rendered := renderSegment(segment, theme, options)
			if rendered != "" {
				lines = append(lines, rendered)
			}
		}
		if indicator := branchIndicator(message, theme); indicator != "" {
			lines = append(lines, indicator)
		}
	}
	return strings.Join(lines, "\n")
}

func renderHeader(message *chat.Message, theme Theme, options transcriptOptions, last bool) string {
	switch message.Role {
	case chat.RoleUser:
		label := lipgloss.NewStyle().Foreground(theme.UserLabel).Bold(true)
		return label.Render("You")
	default:
		label := lipgloss.NewStyle().Foreground(theme.AssistantLabel).Bold(true)
		header := label.Render("Recall")
		if last && options.streaming {
			header += " " + options.spinnerFrame
		}
		return header
	}
}

func renderSegment(segment chat.Segment, theme Theme, options transcriptOptions) string {
	switch segment.Kind {
	case chat.SegmentMemory:
		return renderMemoryOp(segment.Memory, theme)
	case chat.SegmentThinking:
		if !options.showThinking {
			return ""
		}
		return renderThinkingBlock(segment.Thinking, theme, options.width)
	case chat.SegmentTool:
		return renderToolCall(segment.Tool, theme)
	case chat.SegmentContent:
		return renderMarkdown(segment.Text, theme, options.width)
	default:
		return ""
	}
}

func renderMemoryOp(op *chat.MemoryOp, theme Theme) string {
	style := lipgloss.NewStyle().Foreground(theme.MemoryAccent)
	if op.Open() {
		return style.Render(fmt.Sprintf("⌕ searching memories for %q…", op.Query))
	}
	return style.Render(fmt.Sprintf("⌕ searched memories for %q — %d found", op.Query, len(op.Memories)))
}

func renderThinkingBlock(block *chat.ThinkingBlock, theme Theme, width int) string {
	header := lipgloss.NewStyle().Foreground(theme.FaintText).Italic(true)
	body := lipgloss.NewStyle().Foreground(theme.ThinkingText).Width(width - 2)

	title := "thinking"
	if block.IsStreaming {
		title = "thinking…"
	}
	indented := indentLines(body.Render(block.Content), "  ")
	return header.Render("∴ "+title) + "\n" + indented
}

func renderToolCall(call *chat.ToolCall, theme Theme) string {
	style := lipgloss.NewStyle().Foreground(theme.ToolAccent)
	switch call.Status {
	case chat.ToolStatusStarted:
		return style.Render(fmt.Sprintf("⚙ %s running…", call.Name))
	case chat.ToolStatusCompleted:
		return style.Render(fmt.Sprintf("⚙ %s done", call.Name))
	case chat.ToolStatusPendingConfirmation:
		pending := lipgloss.NewStyle().Foreground(theme.PendingAccent)
		return pending.Render(fmt.Sprintf("⚙ %s awaiting confirmation", call.Name))
	case chat.ToolStatusDenied:
		denied := lipgloss.NewStyle().Foreground(theme.DeniedAccent)
		return denied.Render(fmt.Sprintf("⚙ %s denied", call.Name))
	default:
		return style.Render("⚙ " + call.Name)
	}
}

// branchIndicator shows which variant of a regenerated message is
// displayed, e.g. "◂ 2/3 ▸". Empty for messages with no branches.
func branchIndicator(message *chat.Message, theme Theme) string {
	if len(message.Branches) == 0 {
		return ""
	}
	total := len(message.Branches) + 1
	current := message.CurrentBranch + 1
	style := lipgloss.NewStyle().Foreground(theme.BranchIndicator)
	return style.Render(fmt.Sprintf("◂ %d/%d ▸", current, total))
}

func indentLines(block, indent string) string {
	lines := strings.Split(block, "\n")
	for index := range lines {
		lines[index] = indent + lines[index]
	}
	return strings.Join(lines, "\n")
}
