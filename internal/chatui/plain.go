package chatui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"shop_assistant/internal/address"
	"shop_assistant/internal/assistant"
	"shop_assistant/internal/export"
	"shop_assistant/internal/notify"
	"shop_assistant/internal/session"
)

const (
	plainAssistantPrefix = "봇: "
	plainStatusPrefix    = "  · "
)

// PlainSession is the line-mode front end for non-TTY environments. Streamed
// chunks print incrementally as they arrive; structured entries print as
// numbered blocks and are answered by typing numbers at the prompt.
type PlainSession struct {
	opts Options
	ctrl *assistant.Controller
	out  io.Writer

	mu          sync.Mutex
	printed     int
	openLen     int
	openStarted bool
	lastStatus  string
}

func NewPlain(opts Options, out io.Writer) *PlainSession {
	return &PlainSession{opts: opts, out: out}
}

func (p *PlainSession) SetController(c *assistant.Controller) {
	p.ctrl = c
}

// OnUpdate is the controller notify callback. It prints exactly the delta
// since the previous update, so a streaming entry appears as one growing
// line instead of reprinting the transcript.
func (p *PlainSession) OnUpdate(upd assistant.Update) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if upd.Status != p.lastStatus {
		p.lastStatus = upd.Status
		if upd.Status != "" {
			fmt.Fprintln(p.out, plainStatusPrefix+upd.Status)
		}
	}

	entries := upd.Entries
	for p.printed < len(entries) {
		e := entries[p.printed]
		isLast := p.printed == len(entries)-1
		streamingTail := isLast && upd.Phase == assistant.PhaseStreaming &&
			e.Kind == assistant.EntryText && e.Speaker == assistant.SpeakerAssistant

		if streamingTail {
			if !p.openStarted {
				fmt.Fprint(p.out, plainAssistantPrefix)
				p.openStarted = true
				p.openLen = 0
			}
			if len(e.Text) > p.openLen {
				fmt.Fprint(p.out, e.Text[p.openLen:])
				p.openLen = len(e.Text)
			}
			return
		}

		if p.openStarted {
			// the partially printed entry is now closed; flush the rest
			if len(e.Text) > p.openLen {
				fmt.Fprint(p.out, e.Text[p.openLen:])
			}
			fmt.Fprintln(p.out)
			p.openStarted = false
			p.openLen = 0
			p.printed++
			continue
		}
		p.printEntry(e)
		p.printed++
	}
}

func (p *PlainSession) printEntry(e assistant.Entry) {
	switch e.Kind {
	case assistant.EntryText:
		if e.Speaker == assistant.SpeakerUser {
			// the user just typed it; no echo
			return
		}
		fmt.Fprintln(p.out, plainAssistantPrefix+e.Text)
	case assistant.EntryOrderList:
		fmt.Fprintln(p.out, plainAssistantPrefix+e.Prompt)
		for i, o := range e.Orders {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, orderLine(o))
		}
	case assistant.EntryPrompt, assistant.EntryAddressSearch:
		fmt.Fprintln(p.out, plainAssistantPrefix+e.Prompt)
	}
}

// OnNotify prints an order-status notification between prompts.
func (p *PlainSession) OnNotify(n notify.Notification) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "[알림] "+n.Display())
}

// syncPrinted marks restored entries as already handled so a resumed session
// does not replay its whole history.
func (p *PlainSession) syncPrinted(n int) {
	p.mu.Lock()
	p.printed = n
	p.mu.Unlock()
}

func (p *PlainSession) Run(ctx context.Context, in io.Reader) error {
	if p == nil || p.ctrl == nil {
		return errors.New("chat session is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.syncPrinted(p.ctrl.Transcript().Len())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		switch {
		case text == "/exit" || text == "/quit":
			p.persist(ctx)
			return nil
		case strings.HasPrefix(text, "/export"):
			p.handleExport(text)
			continue
		}

		if err := p.ctrl.Send(ctx, text, assistant.SendOptions{}); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// the apology entry has already printed through OnUpdate
		}
		if p.opts.Shop != nil {
			p.opts.Shop.TrackAssistantTurn("chat", false)
		}
		p.handleSurfaces(ctx, scanner)
		p.persist(ctx)
	}
}

// handleSurfaces answers any structured entry the last turn left behind.
// A selection confirm drives another full turn, which may surface another
// structured entry, so this loops until the conversation settles on text.
func (p *PlainSession) handleSurfaces(ctx context.Context, scanner *bufio.Scanner) {
	for {
		entries := p.ctrl.Transcript().Snapshot()
		if len(entries) == 0 {
			return
		}
		last := entries[len(entries)-1]
		switch last.Kind {
		case assistant.EntryOrderList:
			if !p.handleOrderSelection(ctx, scanner, last) {
				return
			}
		case assistant.EntryAddressSearch:
			p.handleAddressSearch(ctx, scanner)
			return
		default:
			return
		}
	}
}

// handleOrderSelection returns true when a confirm ran another turn.
func (p *PlainSession) handleOrderSelection(ctx context.Context, scanner *bufio.Scanner, entry assistant.Entry) bool {
	sel := assistant.NewOrderSelection(entry)
	if sel == nil || len(sel.Items) == 0 {
		return false
	}

	fmt.Fprint(p.out, "선택할 주문 번호 (쉼표 구분, 엔터로 건너뛰기): ")
	if !scanner.Scan() {
		return false
	}
	raw := strings.TrimSpace(scanner.Text())
	if raw == "" {
		if sel.Required {
			fmt.Fprintln(p.out, "주문 선택이 필요해 건너뛸 수 없어요.")
			return p.handleOrderSelection(ctx, scanner, entry)
		}
		return false
	}

	ids := parseSelectionInput(raw, sel.Items)
	if len(ids) == 0 {
		fmt.Fprintln(p.out, "번호를 알아듣지 못했어요. 1, 2 처럼 입력해 주세요.")
		return p.handleOrderSelection(ctx, scanner, entry)
	}
	for _, id := range ids {
		sel.Toggle(id)
	}
	if err := sel.Confirm(ctx, p.ctrl); err != nil {
		if errors.Is(err, assistant.ErrSelectionRequired) {
			fmt.Fprintln(p.out, "주문을 하나 이상 선택해 주세요.")
			return p.handleOrderSelection(ctx, scanner, entry)
		}
		// transport failures already rendered an apology
	}
	if p.opts.Shop != nil {
		p.opts.Shop.TrackAssistantTurn("order_selection", true)
	}
	return true
}

func (p *PlainSession) handleAddressSearch(ctx context.Context, scanner *bufio.Scanner) {
	if p.opts.Address == nil {
		return
	}
	fmt.Fprint(p.out, "주소 검색어 (엔터로 건너뛰기): ")
	if !scanner.Scan() {
		return
	}
	keyword := strings.TrimSpace(scanner.Text())
	if keyword == "" {
		return
	}
	results, err := p.opts.Address.Search(ctx, keyword)
	if err != nil {
		fmt.Fprintln(p.out, "주소 검색 실패: "+err.Error())
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(p.out, "검색 결과가 없어요.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, address.FormatRoadAddress(r))
	}
	fmt.Fprint(p.out, "번호 선택 (엔터로 건너뛰기): ")
	if !scanner.Scan() {
		return
	}
	pick, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || pick < 1 || pick > len(results) {
		return
	}
	formatted := address.FormatRoadAddress(results[pick-1])
	fmt.Fprintln(p.out, "선택한 주소: "+formatted)
	fmt.Fprintln(p.out, "상세 주소를 덧붙여 다음 메시지로 보내주세요.")
}

func (p *PlainSession) handleExport(command string) {
	path := strings.TrimSpace(strings.TrimPrefix(command, "/export"))
	if path == "" {
		fmt.Fprintln(p.out, "사용법: /export <파일.html|파일.md>")
		return
	}
	entries := p.ctrl.Transcript().Snapshot()
	var (
		data string
		err  error
	)
	if strings.HasSuffix(path, ".md") {
		data = export.Markdown("", entries)
	} else {
		data, err = export.HTML("", entries)
	}
	if err != nil {
		fmt.Fprintln(p.out, "내보내기 실패: "+err.Error())
		return
	}
	if err := writeFileAtomic(path, []byte(data)); err != nil {
		fmt.Fprintln(p.out, "내보내기 실패: "+err.Error())
		return
	}
	fmt.Fprintln(p.out, "저장했어요: "+path)
}

func (p *PlainSession) persist(ctx context.Context) {
	if p == nil || p.opts.Store == nil || p.ctrl == nil {
		return
	}
	rec := session.Record{
		Entries: p.ctrl.Transcript().Snapshot(),
		State:   p.ctrl.State().Get(),
	}
	_ = p.opts.Store.Save(ctx, p.opts.UserID, rec)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// parseSelectionInput resolves a typed selection against the listed orders.
// Tokens may be 1-based positions or literal order IDs; duplicates collapse.
func parseSelectionInput(raw string, items []assistant.OrderSummary) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id := ""
		if n, err := strconv.Atoi(f); err == nil && n >= 1 && n <= len(items) {
			id = items[n-1].ID
		} else {
			for _, item := range items {
				if item.ID == f {
					id = f
					break
				}
			}
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
