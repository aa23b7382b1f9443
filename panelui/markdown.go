// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package panelui

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
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// bodyParserInstance is initialized once and reused. The goldmark
// Parser is safe to share; parsing creates per-call state.
var (
	bodyParserInstance goldmark.Markdown
	bodyParserOnce     sync.Once
)

func getBodyParser() goldmark.Markdown {
	bodyParserOnce.Do(func() {
		bodyParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		)
	})
	return bodyParserInstance
}

// renderMessageBody parses a message body as markdown and renders it
// as styled terminal text wrapped to width. Chat messages are small:
// paragraphs, inline emphasis, code spans, fenced code, quotes, and
// lists cover what people actually type. Headings render as bold
// lines rather than claiming vertical space.
func renderMessageBody(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := getBodyParser().Parser().Parse(text.NewReader(source))

	// Force the ANSI256 profile: output always targets the bubbletea
	// screen, and auto-detection produces uncolored output without a
	// TTY (tests, pipes).
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	walker := &bodyRenderer{
		source:      source,
		theme:       theme,
		width:       width,
		lipRenderer: lipRenderer,
	}
	ast.Walk(document, walker.walk)
	return strings.TrimRight(walker.output.String(), "\n")
}

// bodyRenderer walks a goldmark AST and accumulates styled terminal
// text. Inline content collects in a buffer and is word-wrapped as a
// unit when its block closes; that accumulate-then-wrap shape is why
// this is a direct ast.Walk and not a goldmark renderer.
type bodyRenderer struct {
	source []byte
	theme  Theme
	width  int

	output strings.Builder
	inline strings.Builder

	// Indent prefix for nested blocks (quotes, list items).
	prefix string
	// Bullet for the first line of the current list item; consumed by
	// the next flush.
	pendingBullet string

	bold          int
	italic        int
	strikethrough int

	listDepth   int
	listCounter []int // per-depth ordered-list counters; 0 = unordered

	lipRenderer *lipgloss.Renderer
}

func (r *bodyRenderer) newStyle() lipgloss.Style {
	return r.lipRenderer.NewStyle()
}

func (r *bodyRenderer) contentWidth() int {
	width := r.width - ansi.StringWidth(r.prefix)
	if width < 10 {
		width = 10
	}
	return width
}

// styled applies the active inline emphasis state.
func (r *bodyRenderer) styled(content string) string {
	style := r.newStyle().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strikethrough > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// flushInline wraps the accumulated inline content and writes it out
// with the current prefix (or pending bullet on the first line).
func (r *bodyRenderer) flushInline() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}

	wrapped := ansi.Wrap(content, r.contentWidth(), " ,.;-")
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 && r.pendingBullet != "" {
			r.output.WriteString(r.pendingBullet)
			r.pendingBullet = ""
		} else {
			r.output.WriteString(r.prefix)
		}
		r.output.WriteString(line)
		r.output.WriteString("\n")
	}
}

func (r *bodyRenderer) highlight(code, language string) string {
	if language == "" {
		return r.newStyle().Foreground(r.theme.CodeForeground).Render(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return r.newStyle().Foreground(r.theme.CodeForeground).Render(code)
	}
	return buffer.String()
}

func (r *bodyRenderer) writeCodeBlock(code, language string) {
	highlighted := r.highlight(strings.TrimRight(code, "\n"), language)
	for _, line := range strings.Split(highlighted, "\n") {
		r.output.WriteString(r.prefix + "  " + line + "\n")
	}
}

func (r *bodyRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else {
			r.flushInline()
		}

	case ast.KindHeading:
		// Bold line, no blank-line ceremony; bubbles are small.
		if entering {
			r.inline.Reset()
		} else {
			content := ansi.Strip(r.inline.String())
			r.inline.Reset()
			if content != "" {
				r.inline.WriteString(r.newStyle().Bold(true).Foreground(r.theme.NormalText).Render(content))
				r.flushInline()
			}
		}

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			var code strings.Builder
			lines := block.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				code.Write(seg.Value(r.source))
			}
			r.writeCodeBlock(code.String(), string(block.Language(r.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			block := node.(*ast.CodeBlock)
			var code strings.Builder
			lines := block.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				code.Write(seg.Value(r.source))
			}
			r.writeCodeBlock(code.String(), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		bar := r.newStyle().Foreground(r.theme.QuoteBar).Render("│") + " "
		if entering {
			r.prefix += bar
		} else {
			r.prefix = strings.TrimSuffix(r.prefix, bar)
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			r.listDepth++
			counter := 0
			if list.IsOrdered() {
				counter = list.Start
				if counter == 0 {
					counter = 1
				}
			}
			r.listCounter = append(r.listCounter, counter)
		} else {
			r.listDepth--
			r.listCounter = r.listCounter[:len(r.listCounter)-1]
		}

	case ast.KindListItem:
		if entering {
			depth := len(r.listCounter) - 1
			bullet := "• "
			if r.listCounter[depth] > 0 {
				bullet = fmt.Sprintf("%d. ", r.listCounter[depth])
				r.listCounter[depth]++
			}
			indent := strings.Repeat("  ", r.listDepth-1)
			r.pendingBullet = r.prefix + indent + r.newStyle().Foreground(r.theme.FaintText).Render(bullet)
			r.prefix += indent + strings.Repeat(" ", ansi.StringWidth(bullet))
		} else {
			depth := len(r.listCounter) - 1
			bulletWidth := 2
			if r.listCounter[depth] > 0 {
				bulletWidth = len(fmt.Sprintf("%d. ", r.listCounter[depth]-1))
			}
			indent := strings.Repeat("  ", r.listDepth-1)
			r.prefix = strings.TrimSuffix(r.prefix, indent+strings.Repeat(" ", bulletWidth))
			r.pendingBullet = ""
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styled(string(textNode.Segment.Value(r.source))))
			if textNode.HardLineBreak() {
				r.flushInline()
			} else if textNode.SoftLineBreak() {
				// Soft breaks reflow: hard-wrapped source becomes a
				// space and rewraps at the bubble width.
				r.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		emphasis := node.(*ast.Emphasis)
		delta := 1
		if !entering {
			delta = -1
		}
		if emphasis.Level >= 2 {
			r.bold += delta
		} else {
			r.italic += delta
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					code.Write(textNode.Segment.Value(r.source))
				}
			}
			style := r.newStyle().
				Foreground(r.theme.CodeForeground).
				Background(r.theme.CodeBackground)
			r.inline.WriteString(style.Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			var label strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					label.Write(textNode.Segment.Value(r.source))
				}
			}
			style := r.newStyle().Foreground(r.theme.LinkForeground).Underline(true)
			if label.Len() > 0 {
				r.inline.WriteString(style.Render(label.String()))
			} else {
				r.inline.WriteString(style.Render(string(link.Destination)))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			autoLink := node.(*ast.AutoLink)
			style := r.newStyle().Foreground(r.theme.LinkForeground).Underline(true)
			r.inline.WriteString(style.Render(string(autoLink.URL(r.source))))
		}

	case extast.KindStrikethrough:
		if entering {
			r.strikethrough++
		} else {
			r.strikethrough--
		}
	}

	return ast.WalkContinue, nil
}
