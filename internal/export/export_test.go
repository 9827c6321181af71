package export

import (
	"strings"
	"testing"

	"shop_assistant/internal/assistant"
)

func sampleEntries() []assistant.Entry {
	return []assistant.Entry{
		{Speaker: assistant.SpeakerUser, Kind: assistant.EntryText, Text: "주문 내역 보여줘"},
		{
			Speaker: assistant.SpeakerAssistant,
			Kind:    assistant.EntryOrderList,
			Prompt:  "처리할 주문을 선택해 주세요.",
			Orders: []assistant.OrderSummary{
				{ID: "A1", ProductName: "무선 이어폰", StatusLabel: "배송중", Amount: 32000},
			},
		},
		{Speaker: assistant.SpeakerAssistant, Kind: assistant.EntryText, Text: "# 안내\n\n- 교환\n- 반품"},
	}
}

func TestHTMLRendersMarkdownAndOrders(t *testing.T) {
	html, err := HTML("테스트 대화", sampleEntries())
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Fatal("expected doctype in rendered html")
	}
	if !strings.Contains(html, "테스트 대화") {
		t.Fatal("expected title in rendered html")
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "안내") {
		t.Fatal("expected markdown heading in rendered html")
	}
	if !strings.Contains(html, "<li>") {
		t.Fatal("expected markdown list in rendered html")
	}
	if !strings.Contains(html, "<table>") || !strings.Contains(html, "무선 이어폰") {
		t.Fatal("expected order table in rendered html")
	}
}

func TestHTMLEscapesUserText(t *testing.T) {
	entries := []assistant.Entry{
		{Speaker: assistant.SpeakerUser, Kind: assistant.EntryText, Text: "<script>alert(1)</script>"},
	}
	html, err := HTML("", entries)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("raw script tag leaked into rendered html")
	}
}

func TestMarkdownRendersSpeakersAndOrders(t *testing.T) {
	md := Markdown("", sampleEntries())
	if !strings.Contains(md, "# 대화 내역") {
		t.Fatal("expected default heading")
	}
	if !strings.Contains(md, "**나**") || !strings.Contains(md, "**ShopMate**") {
		t.Fatal("expected speaker labels")
	}
	if !strings.Contains(md, "| A1 |") {
		t.Fatal("expected order table row")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0원"},
		{900, "900원"},
		{32000, "32,000원"},
		{1250000, "1,250,000원"},
		{-4500, "-4,500원"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
