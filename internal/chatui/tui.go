// Package chatui is the terminal front end: a full-screen chat surface with
// interactive order selection and address search, plus a plain line-mode
// fallback for non-TTY use.
package chatui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"shop_assistant/internal/address"
	"shop_assistant/internal/appinfo"
	"shop_assistant/internal/applog"
	"shop_assistant/internal/assistant"
	"shop_assistant/internal/notify"
	"shop_assistant/internal/session"
	"shop_assistant/internal/shop"
)

var chatSpinnerFrames = []string{"|", "/", "-", "\\"}

type Mode string

const (
	ModeTUI   Mode = "tui"
	ModePlain Mode = "plain"
)

type Options struct {
	Shop    *shop.Client
	Address *address.Client
	Store   session.Store
	Logger  *applog.Logger
	UserID  string
}

// UI owns the event channel that bridges controller callbacks and
// background work into the bubbletea loop.
type UI struct {
	opts   Options
	ctrl   *assistant.Controller
	events chan chatAsyncMsg

	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *UI {
	return &UI{
		opts:   opts,
		events: make(chan chatAsyncMsg, 512),
		done:   make(chan struct{}),
	}
}

// SetController binds the turn controller. Must be called before Run; the
// two-step construction exists because the controller needs OnUpdate as its
// notify callback.
func (u *UI) SetController(c *assistant.Controller) {
	u.ctrl = c
}

// OnUpdate is the controller notify callback.
func (u *UI) OnUpdate(upd assistant.Update) {
	if u == nil {
		return
	}
	u.post(chatUpdateMsg{Update: upd})
}

// OnNotify feeds an order-status notification into the running view.
func (u *UI) OnNotify(n notify.Notification) {
	if u == nil {
		return
	}
	u.post(chatNotifyMsg{Notification: n})
}

// post hands an event to the bubbletea loop. Once the program has exited
// nobody drains the channel, so a send that would block is dropped instead
// of wedging the caller's goroutine.
func (u *UI) post(ev tea.Msg) {
	select {
	case u.events <- chatAsyncMsg{Event: ev}:
	case <-u.done:
	}
}

func (u *UI) RunTUI(ctx context.Context, in io.Reader, out io.Writer) error {
	if u == nil || u.ctrl == nil {
		return errors.New("chat ui is not configured")
	}
	if f, ok := out.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("stdout is not a TTY; use --ui=plain")
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newChatModel(ctx, u)
	prog := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := prog.Run()
	u.closeOnce.Do(func() { close(u.done) })
	u.persist(context.Background())
	return err
}

// persist saves the current transcript and state snapshot.
func (u *UI) persist(ctx context.Context) {
	if u == nil || u.ctrl == nil || u.opts.Store == nil {
		return
	}
	rec := session.Record{
		Entries: u.ctrl.Transcript().Snapshot(),
		State:   u.ctrl.State().Get(),
	}
	if err := u.opts.Store.Save(ctx, u.opts.UserID, rec); err != nil {
		u.opts.Logger.Logf(applog.KindWarn, "session save failed: %v", err)
	}
}

type chatModel struct {
	ctx context.Context
	ui  *UI

	width  int
	height int

	input    textinput.Model
	viewport viewport.Model

	entries []assistant.Entry
	status  string
	busy    bool

	notice       string
	noticeIsErr  bool
	spinnerFrame int

	stickToBottom bool

	selection    *assistant.OrderSelection
	selCursor    int
	selActive    bool
	selEntryIdx  int
	awaitAddress bool

	addrResults []address.Result
	addrCursor  int
	addrActive  bool
}

type chatAsyncMsg struct {
	Event tea.Msg
}

type chatUpdateMsg struct {
	Update assistant.Update
}

type chatTurnDoneMsg struct {
	Err error
}

type chatNotifyMsg struct {
	Notification notify.Notification
}

type chatAddressResultsMsg struct {
	Results []address.Result
	Err     error
}

type chatTickMsg struct{}

func newChatModel(ctx context.Context, u *UI) chatModel {
	inp := textinput.New()
	inp.Placeholder = "메시지를 입력하세요…"
	inp.Prompt = "› "
	inp.CharLimit = 0
	inp.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return chatModel{
		ctx:           ctx,
		ui:            u,
		input:         inp,
		viewport:      vp,
		entries:       u.ctrl.Transcript().Snapshot(),
		stickToBottom: true,
		selEntryIdx:   -1,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		chatTickCmd(),
		waitAsyncCmd(m.ui.events),
	)
}

func chatTickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(time.Time) tea.Msg { return chatTickMsg{} })
}

func waitAsyncCmd(ch <-chan chatAsyncMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.rerender()
		return m, nil
	case chatTickMsg:
		if m.busy && len(chatSpinnerFrames) > 0 {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(chatSpinnerFrames)
		}
		return m, chatTickCmd()
	case chatAsyncMsg:
		cmd := m.handleAsyncEvent(msg.Event)
		m.rerender()
		return m, tea.Batch(cmd, waitAsyncCmd(m.ui.events))
	case tea.KeyMsg:
		handled, cmd := m.handleKey(msg)
		if handled {
			return m, cmd
		}
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		return m, inputCmd
	default:
		return m, nil
	}
}

func (m *chatModel) handleAsyncEvent(ev tea.Msg) tea.Cmd {
	switch ev := ev.(type) {
	case chatUpdateMsg:
		m.entries = ev.Update.Entries
		m.status = ev.Update.Status
		m.busy = ev.Update.Busy
		m.stickToBottom = true
		m.refreshSurfaces()
	case chatTurnDoneMsg:
		if ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
			m.setNotice(ev.Err.Error(), true)
		}
		ui := m.ui
		go ui.persist(context.Background())
	case chatNotifyMsg:
		m.setNotice(ev.Notification.Display(), false)
	case chatAddressResultsMsg:
		if ev.Err != nil {
			m.setNotice("주소 검색 실패: "+ev.Err.Error(), true)
			return nil
		}
		if len(ev.Results) == 0 {
			m.setNotice("검색 결과가 없어요.", false)
			return nil
		}
		m.addrResults = ev.Results
		m.addrCursor = 0
		m.addrActive = true
	}
	return nil
}

func (m *chatModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

// refreshSurfaces opens the order-selection overlay when a new order-list
// entry lands, and arms address search on an address-search entry.
func (m *chatModel) refreshSurfaces() {
	if len(m.entries) == 0 {
		return
	}
	last := m.entries[len(m.entries)-1]
	lastIdx := len(m.entries) - 1
	switch last.Kind {
	case assistant.EntryOrderList:
		if m.selEntryIdx != lastIdx {
			m.selection = assistant.NewOrderSelection(last)
			m.selCursor = 0
			m.selActive = m.selection != nil && len(m.selection.Items) > 0
			m.selEntryIdx = lastIdx
		}
		m.awaitAddress = false
	case assistant.EntryAddressSearch:
		m.awaitAddress = true
		m.selActive = false
	case assistant.EntryText, assistant.EntryPrompt:
		// keep surfaces as they are; streaming text can precede an action
	}
}

func (m *chatModel) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if m.addrActive {
		switch key {
		case "up", "k":
			m.addrCursor = clamp(0, m.addrCursor-1, len(m.addrResults)-1)
			return true, nil
		case "down", "j":
			m.addrCursor = clamp(0, m.addrCursor+1, len(m.addrResults)-1)
			return true, nil
		case "enter":
			picked := m.addrResults[m.addrCursor]
			m.input.SetValue(address.FormatRoadAddress(picked))
			m.input.CursorEnd()
			m.addrActive = false
			m.setNotice("상세 주소를 덧붙인 뒤 전송하세요.", false)
			return true, nil
		case "esc":
			m.addrActive = false
			return true, nil
		case "ctrl+c":
			return true, tea.Quit
		}
		return true, nil
	}

	if m.selActive {
		switch key {
		case "up", "k":
			m.selCursor = clamp(0, m.selCursor-1, len(m.selection.Items)-1)
			return true, nil
		case "down", "j":
			m.selCursor = clamp(0, m.selCursor+1, len(m.selection.Items)-1)
			return true, nil
		case " ":
			if m.selCursor >= 0 && m.selCursor < len(m.selection.Items) {
				m.selection.Toggle(m.selection.Items[m.selCursor].ID)
			}
			return true, nil
		case "enter":
			return true, m.confirmSelection()
		case "esc":
			m.selActive = false
			return true, nil
		case "ctrl+c":
			return true, tea.Quit
		}
		return true, nil
	}

	switch key {
	case "ctrl+c":
		return true, tea.Quit
	case "tab":
		if m.awaitAddress {
			return true, m.startAddressSearch()
		}
		return true, nil
	case "up", "pgup":
		m.stickToBottom = false
		m.viewport.LineUp(1)
		return true, nil
	case "down", "pgdown":
		m.viewport.LineDown(1)
		if m.viewport.AtBottom() {
			m.stickToBottom = true
		}
		return true, nil
	case "ctrl+l":
		m.stickToBottom = true
		m.rerender()
		return true, nil
	case "enter":
		return true, m.submitInput()
	}
	return false, nil
}

func (m *chatModel) confirmSelection() tea.Cmd {
	sel := m.selection
	if sel == nil {
		m.selActive = false
		return nil
	}
	if !sel.CanConfirm() {
		m.setNotice("주문을 하나 이상 선택해 주세요.", false)
		return nil
	}
	m.selActive = false
	m.setNotice("", false)
	ui := m.ui
	ctx := m.ctx
	go func() {
		err := sel.Confirm(ctx, ui.ctrl)
		ui.trackTurn("order_selection", true)
		ui.post(chatTurnDoneMsg{Err: err})
	}()
	return nil
}

func (m *chatModel) startAddressSearch() tea.Cmd {
	keyword := strings.TrimSpace(m.input.Value())
	if keyword == "" {
		m.setNotice("검색어를 입력한 뒤 Tab을 누르세요.", false)
		return nil
	}
	if m.ui.opts.Address == nil {
		m.setNotice("주소 검색이 설정되어 있지 않아요.", true)
		return nil
	}
	ui := m.ui
	ctx := m.ctx
	go func() {
		results, err := ui.opts.Address.Search(ctx, keyword)
		ui.post(chatAddressResultsMsg{Results: results, Err: err})
	}()
	m.setNotice("주소 검색 중…", false)
	return nil
}

func (m *chatModel) submitInput() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	switch text {
	case "/exit", "/quit":
		return tea.Quit
	}
	if m.busy {
		m.setNotice("응답을 기다리는 중이에요.", false)
		return nil
	}

	m.input.SetValue("")
	m.setNotice("", false)
	m.stickToBottom = true
	m.awaitAddress = false

	ui := m.ui
	ctx := m.ctx
	go func() {
		err := ui.ctrl.Send(ctx, text, assistant.SendOptions{})
		ui.trackTurn("chat", false)
		ui.post(chatTurnDoneMsg{Err: err})
	}()
	return nil
}

func (u *UI) trackTurn(kind string, hidden bool) {
	if u == nil || u.opts.Shop == nil {
		return
	}
	u.opts.Shop.TrackAssistantTurn(kind, hidden)
}

func (m *chatModel) resize() {
	headerH := 2
	statusH := 1
	inputH := 1
	overlayH := len(m.overlayLines())
	m.viewport.Width = max(0, m.width-2)
	m.viewport.Height = max(0, m.height-headerH-statusH-inputH-overlayH)
}

func (m *chatModel) rerender() {
	m.resize()
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	lines := buildEntryLines(m.entries, width)
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, truncateANSI(line, width))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	if m.stickToBottom {
		m.viewport.GotoBottom()
	}
}

func (m *chatModel) overlayLines() []string {
	if m.addrActive {
		out := []string{promptStyle.Render("주소를 선택하세요 (↑/↓, Enter 선택, Esc 취소)")}
		for i, r := range m.addrResults {
			marker := "  "
			if i == m.addrCursor {
				marker = "> "
			}
			out = append(out, marker+address.FormatRoadAddress(r))
		}
		return out
	}
	if m.selActive && m.selection != nil {
		hint := "Space 선택 · Enter 확정 · Esc 닫기"
		out := []string{promptStyle.Render(hint)}
		for i, item := range m.selection.Items {
			marker := "  "
			if i == m.selCursor {
				marker = "> "
			}
			box := "[ ]"
			if m.selection.IsSelected(item.ID) {
				box = "[x]"
			}
			out = append(out, fmt.Sprintf("%s%s %s", marker, box, orderLine(item)))
		}
		return out
	}
	return nil
}

func (m chatModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	title := lipgloss.NewStyle().Bold(true).Render(appinfo.Display())
	sub := dimStyle.Render("사용자: " + m.ui.opts.UserID + " | /exit 종료")
	header := title + "\n" + sub

	statusLine := ""
	switch {
	case m.busy:
		text := strings.TrimSpace(m.status)
		if text == "" {
			text = "응답 생성 중…"
		}
		statusLine = noticeStyle.Render(chatSpinnerFrames[m.spinnerFrame%len(chatSpinnerFrames)] + " " + text)
	case m.notice != "":
		if m.noticeIsErr {
			statusLine = errorStyle.Render(m.notice)
		} else {
			statusLine = noticeStyle.Render(m.notice)
		}
	}

	parts := []string{header, m.viewport.View()}
	if overlay := m.overlayLines(); len(overlay) > 0 {
		for i, line := range overlay {
			overlay[i] = truncateANSI(line, max(10, m.width-2))
		}
		parts = append(parts, strings.Join(overlay, "\n"))
	}
	parts = append(parts, statusLine, m.input.View())
	return strings.Join(parts, "\n")
}
