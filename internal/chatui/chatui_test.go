package chatui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"shop_assistant/internal/assistant"
)

func TestOrderLine(t *testing.T) {
	o := assistant.OrderSummary{ID: "A1", ProductName: "무선 이어폰", StatusLabel: "배송중", Amount: 32000}
	got := orderLine(o)
	for _, want := range []string{"A1", "무선 이어폰", "배송중", "32,000원"} {
		if !strings.Contains(got, want) {
			t.Fatalf("orderLine = %q, missing %q", got, want)
		}
	}
}

func TestBuildEntryLinesCoversAllKinds(t *testing.T) {
	entries := []assistant.Entry{
		{Kind: assistant.EntryText, Speaker: assistant.SpeakerUser, Text: "반품하고 싶어"},
		{
			Kind: assistant.EntryOrderList, Speaker: assistant.SpeakerAssistant,
			Prompt:            "처리할 주문을 선택해 주세요.",
			Orders:            []assistant.OrderSummary{{ID: "A1", ProductName: "이어폰", Amount: 32000}},
			SelectionRequired: true,
		},
		{Kind: assistant.EntryPrompt, Speaker: assistant.SpeakerAssistant, Prompt: "진행할까요?"},
		{Kind: assistant.EntryAddressSearch, Speaker: assistant.SpeakerAssistant, Prompt: "주소 검색 버튼을 눌러주세요."},
	}
	joined := strings.Join(buildEntryLines(entries, 80), "\n")
	for _, want := range []string{"반품하고 싶어", "처리할 주문을 선택해 주세요.", "A1", "주문 선택 필요", "진행할까요?", "주소 검색"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("rendered lines missing %q:\n%s", want, joined)
		}
	}
}

func TestTruncateANSI(t *testing.T) {
	if got := truncateANSI("hello", 80); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	got := truncateANSI("hello world", 6)
	if !strings.HasSuffix(got, "…") || len([]rune(got)) > 6 {
		t.Fatalf("truncated = %q", got)
	}
	// wide runes count double
	got = truncateANSI("가나다라마", 5)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("wide truncation = %q", got)
	}
}

func TestParseSelectionInput(t *testing.T) {
	items := []assistant.OrderSummary{{ID: "A1"}, {ID: "B2"}, {ID: "C3"}}

	if got := parseSelectionInput("1, 3", items); len(got) != 2 || got[0] != "A1" || got[1] != "C3" {
		t.Fatalf("positions: %#v", got)
	}
	if got := parseSelectionInput("B2", items); len(got) != 1 || got[0] != "B2" {
		t.Fatalf("literal id: %#v", got)
	}
	if got := parseSelectionInput("1 1 A1", items); len(got) != 1 {
		t.Fatalf("duplicates collapse: %#v", got)
	}
	if got := parseSelectionInput("9, X9", items); len(got) != 0 {
		t.Fatalf("unknown tokens: %#v", got)
	}
}

func TestUIEventsDropAfterExit(t *testing.T) {
	u := New(Options{})
	u.closeOnce.Do(func() { close(u.done) })

	finished := make(chan struct{})
	go func() {
		// more sends than the channel can buffer, with no reader
		for i := 0; i < cap(u.events)+8; i++ {
			u.OnUpdate(assistant.Update{})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("OnUpdate blocked after the program exited")
	}
}

func TestPlainSessionPrintsStreamDeltas(t *testing.T) {
	var out bytes.Buffer
	p := NewPlain(Options{}, &out)

	userEntry := assistant.Entry{Kind: assistant.EntryText, Speaker: assistant.SpeakerUser, Text: "안녕"}
	open := func(text string) []assistant.Entry {
		return []assistant.Entry{userEntry, {Kind: assistant.EntryText, Speaker: assistant.SpeakerAssistant, Text: text}}
	}

	p.OnUpdate(assistant.Update{Entries: []assistant.Entry{userEntry}, Busy: true, Phase: assistant.PhaseSending})
	p.OnUpdate(assistant.Update{Entries: open("안녕하"), Phase: assistant.PhaseStreaming})
	p.OnUpdate(assistant.Update{Entries: open("안녕하세요!"), Phase: assistant.PhaseStreaming})
	p.OnUpdate(assistant.Update{Entries: open("안녕하세요!"), Phase: assistant.PhaseIdle})

	got := out.String()
	if want := plainAssistantPrefix + "안녕하세요!\n"; got != want {
		t.Fatalf("printed %q, want %q", got, want)
	}
}

func TestPlainSessionPrintsStructuredEntries(t *testing.T) {
	var out bytes.Buffer
	p := NewPlain(Options{}, &out)

	entries := []assistant.Entry{
		{Kind: assistant.EntryText, Speaker: assistant.SpeakerUser, Text: "주문 보여줘"},
		{
			Kind: assistant.EntryOrderList, Speaker: assistant.SpeakerAssistant,
			Prompt: "처리할 주문을 선택해 주세요.",
			Orders: []assistant.OrderSummary{{ID: "A1", ProductName: "이어폰", Amount: 32000}},
		},
	}
	p.OnUpdate(assistant.Update{Entries: entries, Phase: assistant.PhaseIdle})

	got := out.String()
	if !strings.Contains(got, "처리할 주문을 선택해 주세요.") {
		t.Fatalf("missing prompt: %q", got)
	}
	if !strings.Contains(got, "1. A1") {
		t.Fatalf("missing numbered order row: %q", got)
	}
	if strings.Contains(got, "주문 보여줘") {
		t.Fatalf("user input should not echo: %q", got)
	}
}

func TestPlainSessionPrintsStatusOnce(t *testing.T) {
	var out bytes.Buffer
	p := NewPlain(Options{}, &out)

	upd := assistant.Update{Status: "주문 내역을 조회하고 있어요", Busy: true, Phase: assistant.PhaseSending}
	p.OnUpdate(upd)
	p.OnUpdate(upd)

	if got := strings.Count(out.String(), "주문 내역을 조회하고 있어요"); got != 1 {
		t.Fatalf("status printed %d times", got)
	}
}
