// Package export renders a saved transcript to a shareable document.
package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"shop_assistant/internal/appinfo"
	"shop_assistant/internal/assistant"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed transcript_template.html
var transcriptTemplateFS embed.FS

type transcriptEntryData struct {
	Speaker string
	IsUser  bool
	Body    template.HTML
}

type transcriptTemplateData struct {
	AppDisplay string
	Title      string
	Entries    []transcriptEntryData
	Footer     string
}

var (
	transcriptTemplateOnce sync.Once
	transcriptTemplate     *template.Template
	transcriptTemplateErr  error
)

func getTranscriptTemplate() (*template.Template, error) {
	transcriptTemplateOnce.Do(func() {
		b, err := transcriptTemplateFS.ReadFile("transcript_template.html")
		if err != nil {
			transcriptTemplateErr = err
			return
		}
		transcriptTemplate, transcriptTemplateErr = template.New("transcript_template.html").Parse(string(b))
	})
	return transcriptTemplate, transcriptTemplateErr
}

var transcriptMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
)

var transcriptMarkdownMu sync.Mutex

func renderMarkdownBody(md string) template.HTML {
	body := strings.TrimSpace(md)
	if body == "" {
		body = "(empty)"
	}
	var content bytes.Buffer
	transcriptMarkdownMu.Lock()
	err := transcriptMarkdown.Convert([]byte(body), &content)
	transcriptMarkdownMu.Unlock()
	if err != nil {
		escaped := template.HTMLEscapeString(body)
		content.Reset()
		content.WriteString("<pre>")
		content.WriteString(escaped)
		content.WriteString("</pre>")
	}
	return template.HTML(content.String())
}

func speakerLabel(s assistant.Speaker) string {
	if s == assistant.SpeakerUser {
		return "나"
	}
	return appinfo.Name
}

// entryMarkdown flattens one transcript entry to markdown. Structured
// entries become a prompt line plus an order table.
func entryMarkdown(e assistant.Entry) string {
	switch e.Kind {
	case assistant.EntryOrderList:
		var b strings.Builder
		if prompt := strings.TrimSpace(e.Prompt); prompt != "" {
			b.WriteString(prompt)
			b.WriteString("\n\n")
		}
		b.WriteString("| 주문번호 | 상품 | 상태 | 금액 |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, o := range e.Orders {
			label := o.StatusLabel
			if label == "" {
				label = o.StatusCode
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", o.ID, o.ProductName, label, FormatAmount(o.Amount))
		}
		return b.String()
	case assistant.EntryPrompt, assistant.EntryAddressSearch:
		return e.Prompt
	default:
		return e.Text
	}
}

// FormatAmount renders a won amount with thousands separators, e.g. 32000
// becomes "32,000원".
func FormatAmount(amount float64) string {
	digits := fmt.Sprintf("%.0f", amount)
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "원"
	if neg {
		return "-" + out
	}
	return out
}

// HTML renders the transcript as a standalone HTML page.
func HTML(title string, entries []assistant.Entry) (string, error) {
	data := transcriptTemplateData{
		AppDisplay: appinfo.Display(),
		Title:      strings.TrimSpace(title),
		Footer:     fmt.Sprintf("%s • %s", appinfo.Name, time.Now().UTC().Format(time.RFC3339)),
	}
	if data.Title == "" {
		data.Title = "대화 내역"
	}
	for _, e := range entries {
		data.Entries = append(data.Entries, transcriptEntryData{
			Speaker: speakerLabel(e.Speaker),
			IsUser:  e.Speaker == assistant.SpeakerUser,
			Body:    renderMarkdownBody(entryMarkdown(e)),
		})
	}

	tmpl, err := getTranscriptTemplate()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Markdown renders the transcript as a plain markdown document.
func Markdown(title string, entries []assistant.Entry) string {
	var b strings.Builder
	heading := strings.TrimSpace(title)
	if heading == "" {
		heading = "대화 내역"
	}
	fmt.Fprintf(&b, "# %s\n\n", heading)
	for _, e := range entries {
		fmt.Fprintf(&b, "**%s**\n\n", speakerLabel(e.Speaker))
		body := strings.TrimSpace(entryMarkdown(e))
		if body == "" {
			body = "(empty)"
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	return b.String()
}
