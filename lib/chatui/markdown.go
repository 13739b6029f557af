// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break lines at, in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

// markdownParser is initialized once and reused. The goldmark parser
// is safe to share; per-call state lives in the reader.
var (
	markdownParser     goldmark.Markdown
	markdownParserOnce sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParser = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownParser
}

// renderMarkdown renders assistant markdown as styled terminal text
// wrapped to width. Soft line breaks become spaces so hard-wrapped
// source reflows at any terminal width; fenced code keeps its exact
// line structure and gets chroma syntax highlighting.
func renderMarkdown(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	source := []byte(input)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	// Force the ANSI256 profile: output always targets the TUI, and
	// auto-detection would strip colors under tests with no TTY.
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &markdownRenderer{
		source:      source,
		theme:       theme,
		width:       width,
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

// markdownRenderer walks a goldmark AST and accumulates styled text.
// Inline content collects in a buffer and is word-wrapped as a unit
// when its containing block closes; goldmark's streaming renderer
// interface does not fit that accumulate-then-wrap shape.
type markdownRenderer struct {
	source []byte
	theme  Theme
	width  int

	output strings.Builder
	inline strings.Builder

	// Inline style counters; counters rather than booleans so nested
	// emphasis unwinds correctly.
	boldCount   int
	italicCount int

	quoteDepth    int
	listStack     []listState
	pendingBullet string

	lipRenderer *lipgloss.Renderer
}

type listState struct {
	ordered bool
	index   int
}

func (renderer *markdownRenderer) newStyle() lipgloss.Style {
	return renderer.lipRenderer.NewStyle()
}

func (renderer *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch typed := node.(type) {
	case *ast.Document:

	case *ast.Paragraph, *ast.TextBlock:
		if entering {
			renderer.inline.Reset()
		} else {
			renderer.flushInline(renderer.textStyle())
		}

	case *ast.Heading:
		if entering {
			renderer.inline.Reset()
		} else {
			style := renderer.newStyle().Bold(true).Foreground(renderer.theme.NormalText)
			renderer.flushInline(style)
		}

	case *ast.Text:
		if entering {
			renderer.inline.Write(typed.Segment.Value(renderer.source))
			if typed.SoftLineBreak() {
				renderer.inline.WriteByte(' ')
			}
			if typed.HardLineBreak() {
				renderer.inline.WriteByte('\n')
			}
		}

	case *ast.Emphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if typed.Level >= 2 {
			renderer.boldCount += delta
		} else {
			renderer.italicCount += delta
		}

	case *ast.CodeSpan:
		if entering {
			code := renderer.childText(node)
			style := renderer.newStyle().Foreground(renderer.theme.ToolAccent)
			renderer.inline.WriteString(style.Render(code))
			return ast.WalkSkipChildren, nil
		}

	case *ast.Link:
		if !entering {
			url := renderer.newStyle().Foreground(renderer.theme.FaintText)
			renderer.inline.WriteString(url.Render(" (" + string(typed.Destination) + ")"))
		}

	case *ast.AutoLink:
		if entering {
			renderer.inline.Write(typed.URL(renderer.source))
		}

	case *ast.FencedCodeBlock:
		if entering {
			renderer.renderCode(renderer.blockLines(node), string(typed.Language(renderer.source)))
			return ast.WalkSkipChildren, nil
		}

	case *ast.CodeBlock:
		if entering {
			renderer.renderCode(renderer.blockLines(node), "")
			return ast.WalkSkipChildren, nil
		}

	case *ast.Blockquote:
		if entering {
			renderer.quoteDepth++
		} else {
			renderer.quoteDepth--
		}

	case *ast.List:
		if entering {
			renderer.listStack = append(renderer.listStack, listState{
				ordered: typed.IsOrdered(),
				index:   typed.Start,
			})
		} else {
			renderer.listStack = renderer.listStack[:len(renderer.listStack)-1]
			if len(renderer.listStack) == 0 {
				renderer.ensureBlankLine()
			}
		}

	case *ast.ListItem:
		if entering {
			renderer.pendingBullet = renderer.nextBullet()
		}

	case *ast.ThematicBreak:
		if entering {
			rule := renderer.newStyle().Foreground(renderer.theme.BorderColor)
			renderer.writeLine(rule.Render(strings.Repeat("─", min(renderer.width, 30))))
			renderer.ensureBlankLine()
		}
	}
	return ast.WalkContinue, nil
}

// textStyle is the style for the current inline counters.
func (renderer *markdownRenderer) textStyle() lipgloss.Style {
	style := renderer.newStyle().Foreground(renderer.theme.NormalText)
	if renderer.boldCount > 0 {
		style = style.Bold(true)
	}
	if renderer.italicCount > 0 {
		style = style.Italic(true)
	}
	return style
}

// flushInline word-wraps the accumulated inline content and writes it
// with the current block prefix.
func (renderer *markdownRenderer) flushInline(style lipgloss.Style) {
	content := strings.TrimRight(renderer.inline.String(), " \n")
	renderer.inline.Reset()
	if content == "" {
		return
	}

	prefix := renderer.linePrefix()
	wrapWidth := renderer.width - ansi.StringWidth(prefix)
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	wrapped := ansi.Wrap(style.Render(content), wrapWidth, wrapBreakpoints)

	for _, line := range strings.Split(wrapped, "\n") {
		renderer.writeLine(renderer.consumePrefix(prefix) + line)
	}
	if len(renderer.listStack) == 0 {
		renderer.ensureBlankLine()
	}
}

// linePrefix is the indentation for the current block context:
// blockquote bars plus list indentation.
func (renderer *markdownRenderer) linePrefix() string {
	var prefix strings.Builder
	if renderer.quoteDepth > 0 {
		bar := renderer.newStyle().Foreground(renderer.theme.BorderColor).Render("│ ")
		prefix.WriteString(strings.Repeat(bar, renderer.quoteDepth))
	}
	if len(renderer.listStack) > 0 {
		prefix.WriteString(strings.Repeat("  ", len(renderer.listStack)))
	}
	return prefix.String()
}

// consumePrefix returns the prefix for the next emitted line. The
// pending list bullet stands in for the list indent on an item's
// first line, then clears; quote bars still apply in front of it.
func (renderer *markdownRenderer) consumePrefix(prefix string) string {
	if renderer.pendingBullet == "" {
		return prefix
	}
	bullet := renderer.pendingBullet
	renderer.pendingBullet = ""
	if renderer.quoteDepth > 0 {
		bar := renderer.newStyle().Foreground(renderer.theme.BorderColor).Render("│ ")
		return strings.Repeat(bar, renderer.quoteDepth) + bullet
	}
	return bullet
}

func (renderer *markdownRenderer) nextBullet() string {
	if len(renderer.listStack) == 0 {
		return "• "
	}
	state := &renderer.listStack[len(renderer.listStack)-1]
	indent := strings.Repeat("  ", len(renderer.listStack)-1)
	if state.ordered {
		bullet := fmt.Sprintf("%s%d. ", indent, state.index)
		state.index++
		return bullet
	}
	return indent + "• "
}

// blockLines joins a code block's raw source lines.
func (renderer *markdownRenderer) blockLines(node ast.Node) string {
	var code strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		code.Write(segment.Value(renderer.source))
	}
	return code.String()
}

// childText concatenates the raw text of a node's inline children.
func (renderer *markdownRenderer) childText(node ast.Node) string {
	var buffer strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if textNode, ok := child.(*ast.Text); ok {
			buffer.Write(textNode.Segment.Value(renderer.source))
		}
	}
	return buffer.String()
}

// renderCode writes a code block, chroma-highlighted when the language
// is known and plainly dimmed otherwise.
func (renderer *markdownRenderer) renderCode(code, language string) {
	highlighted := renderer.highlightCode(strings.TrimRight(code, "\n"), language)
	renderer.ensureBlankLine()
	indent := "  "
	for _, line := range strings.Split(highlighted, "\n") {
		renderer.writeLine(indent + line)
	}
	renderer.ensureBlankLine()
}

// highlightCode returns ANSI-styled code, falling back to FaintText
// plain rendering on unknown languages or chroma errors.
func (renderer *markdownRenderer) highlightCode(code, language string) string {
	if language == "" {
		return renderer.newStyle().Foreground(renderer.theme.FaintText).Render(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return renderer.newStyle().Foreground(renderer.theme.FaintText).Render(code)
	}
	return strings.TrimRight(buffer.String(), "\n")
}

func (renderer *markdownRenderer) writeLine(line string) {
	renderer.output.WriteString(line)
	renderer.output.WriteByte('\n')
}

// ensureBlankLine guarantees exactly one blank line separates blocks.
func (renderer *markdownRenderer) ensureBlankLine() {
	current := renderer.output.String()
	if current == "" || strings.HasSuffix(current, "\n\n") {
		return
	}
	if !strings.HasSuffix(current, "\n") {
		renderer.output.WriteByte('\n')
	}
	renderer.output.WriteByte('\n')
}
