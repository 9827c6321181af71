package chatui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shop_assistant/internal/assistant"
	"shop_assistant/internal/export"
)

const (
	userPrefix      = "나:  "
	assistantPrefix = "봇:  "
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// orderLine renders one order row for list display, e.g.
// "A1  무선 이어폰 · 배송중 · 32,000원".
func orderLine(o assistant.OrderSummary) string {
	label := strings.TrimSpace(o.StatusLabel)
	if label == "" {
		label = o.StatusCode
	}
	parts := []string{strings.TrimSpace(o.ProductName)}
	if label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, export.FormatAmount(o.Amount))
	return fmt.Sprintf("%s  %s", o.ID, strings.Join(parts, " · "))
}

// buildEntryLines flattens transcript entries into display lines.
func buildEntryLines(entries []assistant.Entry, width int) []string {
	if width <= 0 {
		width = 80
	}
	out := make([]string, 0, max(32, len(entries)*2))
	addBlank := func() {
		if len(out) == 0 || strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
	}

	for _, e := range entries {
		switch e.Kind {
		case assistant.EntryText:
			prefix, style := assistantPrefix, assistantStyle
			if e.Speaker == assistant.SpeakerUser {
				prefix, style = userPrefix, userStyle
			}
			out = append(out, wrapPrefixedLines(prefix, style, e.Text, width)...)
			addBlank()
		case assistant.EntryOrderList:
			out = append(out, wrapPrefixedLines(assistantPrefix, promptStyle, e.Prompt, width)...)
			for _, o := range e.Orders {
				out = append(out, dimStyle.Render("     "+orderLine(o)))
			}
			if e.SelectionRequired {
				out = append(out, dimStyle.Render("     (주문 선택 필요)"))
			}
			addBlank()
		case assistant.EntryPrompt:
			out = append(out, wrapPrefixedLines(assistantPrefix, promptStyle, e.Prompt, width)...)
			addBlank()
		case assistant.EntryAddressSearch:
			out = append(out, wrapPrefixedLines(assistantPrefix, promptStyle, e.Prompt, width)...)
			out = append(out, dimStyle.Render("     (검색어 입력 후 Tab: 주소 검색)"))
			addBlank()
		}
	}
	return out
}

func wrapPrefixedLines(prefix string, style lipgloss.Style, text string, width int) []string {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	prefixWidth := runewidth.StringWidth(prefix)
	contentWidth := max(10, width-prefixWidth)
	wrapped := wrapText(text, contentWidth)

	lines := strings.Split(wrapped, "\n")
	out := make([]string, 0, len(lines))
	indent := strings.Repeat(" ", prefixWidth)
	for i, line := range lines {
		if i == 0 {
			out = append(out, style.Render(prefix+line))
			continue
		}
		out = append(out, style.Render(indent+line))
	}
	return out
}

func wrapText(text string, width int) string {
	if width <= 10 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

func truncateANSI(s string, width int) string {
	if width <= 0 {
		return s
	}
	if width == 1 {
		return "…"
	}

	maxVisible := width - 1
	var b strings.Builder
	b.Grow(len(s) + 4)

	visible := 0
	truncated := false
	sawEsc := false

	for i := 0; i < len(s); {
		if s[i] == 0x1b {
			sawEsc = true
			seq, n := readANSISequence(s[i:])
			if n > 0 {
				b.WriteString(seq)
				i += n
				continue
			}
			i++
			continue
		}

		r, n := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && n == 1 {
			i++
			continue
		}
		rw := runewidth.RuneWidth(r)
		if rw < 0 {
			rw = 0
		}
		if visible+rw > maxVisible {
			truncated = true
			break
		}
		b.WriteRune(r)
		visible += rw
		i += n
	}

	if !truncated {
		return s
	}

	b.WriteRune('…')
	if sawEsc {
		b.WriteString("\x1b[0m")
	}
	return b.String()
}

func readANSISequence(s string) (seq string, n int) {
	if len(s) < 2 || s[0] != 0x1b {
		return "", 0
	}
	switch s[1] {
	case '[':
		// CSI: ESC [ ... final-byte(@-~)
		for i := 2; i < len(s); i++ {
			b := s[i]
			if b >= 0x40 && b <= 0x7e {
				return s[:i+1], i + 1
			}
		}
		return s, len(s)
	case ']':
		// OSC: ESC ] ... BEL or ESC \
		for i := 2; i < len(s); i++ {
			if s[i] == 0x07 {
				return s[:i+1], i + 1
			}
			if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '\\' {
				return s[:i+2], i + 2
			}
		}
		return s, len(s)
	default:
		return s[:2], 2
	}
}

func clamp(minv int, v int, maxv int) int {
	if v < minv {
		return minv
	}
	if v > maxv {
		return maxv
	}
	return v
}
