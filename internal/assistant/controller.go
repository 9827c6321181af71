package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"shop_assistant/internal/applog"
)

// Phase is the turn lifecycle state. Exactly one turn may be Sending or
// Streaming at a time; that single-writer guard is the concurrency
// discipline of the whole widget.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseStreaming Phase = "streaming"
)

var (
	ErrTurnInFlight = errors.New("a turn is already in flight")
	ErrEmptyMessage = errors.New("message is empty")
)

const apologyText = "죄송해요. 요청을 처리하는 중 문제가 발생했어요. 잠시 후 다시 시도해 주세요."

const (
	defaultOrderListPrompt = "처리할 주문을 선택해 주세요."
	defaultAddressPrompt   = "주소 검색 버튼을 눌러주세요."
	defaultConfirmPrompt   = "해당 작업을 진행하시겠습니까?"
)

// Update is the immutable snapshot handed to the observer after every
// transcript, status or busy-flag change.
type Update struct {
	Entries []Entry
	Status  string
	Busy    bool
	Phase   Phase
}

type SendOptions struct {
	// Hidden suppresses the visible user entry while still driving a full
	// turn. Used by UI action surfaces to carry machine-directed messages.
	Hidden bool
}

type Options struct {
	// Endpoint is the streaming chat URL (POST, data:-framed response).
	Endpoint string
	UserID   string

	// HTTPClient must not carry a global timeout: the response body streams
	// for the whole turn. Cancellation runs through the Send context.
	HTTPClient *http.Client

	Notify func(Update)
	Logger *applog.Logger
}

// Controller orchestrates one request/response cycle of the conversational
// protocol: it issues the request, drives frame decoding and event
// interpretation, feeds the transcript and the state store in strict
// arrival order, and terminates the turn on done, error or transport
// failure.
type Controller struct {
	mu     sync.Mutex
	phase  Phase
	status string
	busy   bool

	endpoint   string
	userID     string
	httpClient *http.Client
	transcript *Transcript
	state      *StateStore
	notify     func(Update)
	log        *applog.Logger
}

func NewController(opts Options) (*Controller, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("chat endpoint is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Controller{
		phase:      PhaseIdle,
		endpoint:   endpoint,
		userID:     strings.TrimSpace(opts.UserID),
		httpClient: client,
		transcript: NewTranscript(),
		state:      NewStateStore(),
		notify:     opts.Notify,
		log:        opts.Logger,
	}, nil
}

func (c *Controller) Transcript() *Transcript {
	if c == nil {
		return nil
	}
	return c.transcript
}

func (c *Controller) State() *StateStore {
	if c == nil {
		return nil
	}
	return c.state
}

func (c *Controller) Phase() Phase {
	if c == nil {
		return PhaseIdle
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Busy() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

type chatRequest struct {
	Message       string          `json:"message"`
	UserID        string          `json:"user_id"`
	PreviousState json.RawMessage `json:"previous_state"`
}

// Send runs one full turn and blocks until it reaches a terminal event or
// fails. It is a no-op returning ErrTurnInFlight while another turn is
// active, and ErrEmptyMessage when text trims to nothing; neither rejection
// touches the transcript or opens a request.
//
// Transport failures and backend error events append a single assistant
// apology entry and preserve the pre-turn conversation state, so a retry
// proceeds from the last good state. Context cancellation ends the turn
// without an apology entry.
func (c *Controller) Send(ctx context.Context, text string, opts SendOptions) error {
	if c == nil {
		return errors.New("nil controller")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.phase = PhaseSending
	c.busy = true
	c.status = ""
	if !opts.Hidden {
		c.transcript.AppendUser(text)
	}
	c.mu.Unlock()
	c.emit()

	turnID := uuid.NewString()
	c.log.Logf(applog.KindTurn, "turn %s started (hidden=%v, chars=%d)", turnID, opts.Hidden, len(text))

	err := c.runTurn(ctx, text)

	c.mu.Lock()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cancelled turns freeze whatever streamed in; no apology entry.
	default:
		c.transcript.AppendStructured(Entry{Kind: EntryText, Speaker: SpeakerAssistant, Text: apologyText})
	}
	// The advisory status line never outlives its turn.
	c.status = ""
	c.transcript.CloseOpen()
	c.busy = false
	c.phase = PhaseIdle
	c.mu.Unlock()
	c.emit()

	if err != nil {
		c.log.Logf(applog.KindWarn, "turn %s failed: %v", turnID, err)
		return fmt.Errorf("turn %s: %w", turnID, err)
	}
	c.log.Logf(applog.KindTurn, "turn %s completed", turnID)
	return nil
}

func (c *Controller) runTurn(ctx context.Context, text string) error {
	payload := chatRequest{
		Message:       text,
		UserID:        c.userID,
		PreviousState: c.state.Get(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("chat api error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return c.consumeStream(resp.Body)
}

func (c *Controller) consumeStream(body io.Reader) error {
	dec := NewFrameDecoder()
	buf := make([]byte, 4096)
	var pending json.RawMessage

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			records, err := dec.Push(buf[:n])
			if err != nil {
				return err
			}
			for _, rec := range records {
				done, err := c.handleRecord(rec, &pending)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read chat stream: %w", readErr)
		}
	}

	// The terminal record may end at the stream boundary with no newline.
	if rec, ok := dec.Flush(); ok {
		done, err := c.handleRecord(rec, &pending)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return errors.New("chat stream ended without done or error event")
}

func (c *Controller) handleRecord(record string, pending *json.RawMessage) (bool, error) {
	ev, err := ParseEvent(record)
	if err != nil {
		c.log.Logf(applog.KindWarn, "dropping event record: %v (%s)", err, applog.Preview(record, 120))
		return false, nil
	}

	switch ev.Kind {
	case EventMetadata:
		*pending = ev.State
	case EventTextChunk:
		if ev.Content == "" {
			return false, nil
		}
		c.mu.Lock()
		c.phase = PhaseStreaming
		c.busy = false
		c.status = ""
		c.transcript.AppendOrMutateLast(ev.Content)
		c.mu.Unlock()
		c.emit()
	case EventStatusUpdate:
		c.mu.Lock()
		c.status = ev.Status
		c.mu.Unlock()
		c.emit()
	case EventUIAction:
		entry, ok := entryForAction(ev)
		if !ok {
			c.log.Logf(applog.KindWarn, "ignoring unknown ui_action %q", ev.Action)
			return false, nil
		}
		if ev.State != nil {
			*pending = ev.State
		}
		c.mu.Lock()
		c.phase = PhaseStreaming
		c.busy = false
		c.transcript.AppendStructured(entry)
		c.mu.Unlock()
		c.emit()
	case EventDone:
		if *pending != nil {
			c.state.Set(*pending)
		}
		return true, nil
	case EventError:
		msg := ev.Message
		if msg == "" {
			msg = "unspecified assistant error"
		}
		return true, fmt.Errorf("assistant error: %s", msg)
	}
	return false, nil
}

func (c *Controller) emit() {
	if c == nil || c.notify == nil {
		return
	}
	c.mu.Lock()
	upd := Update{
		Entries: c.transcript.Snapshot(),
		Status:  c.status,
		Busy:    c.busy,
		Phase:   c.phase,
	}
	c.mu.Unlock()
	c.notify(upd)
}

func entryForAction(ev StreamEvent) (Entry, bool) {
	switch ev.Action {
	case UIActionOrderList:
		prompt, orders := parseOrderListData(ev.Data)
		if prompt == "" {
			prompt = defaultOrderListPrompt
		}
		return Entry{
			Kind:              EntryOrderList,
			Speaker:           SpeakerAssistant,
			Prompt:            prompt,
			Orders:            orders,
			SelectionRequired: ev.RequiresSelection,
		}, true
	case UIActionAddressSearch:
		prompt := parseActionMessage(ev.Data)
		if prompt == "" {
			prompt = defaultAddressPrompt
		}
		return Entry{Kind: EntryAddressSearch, Speaker: SpeakerAssistant, Prompt: prompt}, true
	case UIActionConfirmation:
		prompt := parseActionMessage(ev.Data)
		if prompt == "" {
			prompt = defaultConfirmPrompt
		}
		return Entry{Kind: EntryPrompt, Speaker: SpeakerAssistant, Prompt: prompt}, true
	default:
		return Entry{}, false
	}
}

// parseOrderListData accepts both payload shapes seen on the wire: an
// object carrying message + orders, or a bare order array.
func parseOrderListData(data json.RawMessage) (string, []OrderSummary) {
	if len(data) == 0 {
		return "", nil
	}
	var obj struct {
		Message string         `json:"message"`
		Orders  []OrderSummary `json:"orders"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && (len(obj.Orders) > 0 || strings.TrimSpace(obj.Message) != "") {
		return strings.TrimSpace(obj.Message), obj.Orders
	}
	var items []OrderSummary
	if err := json.Unmarshal(data, &items); err == nil {
		return "", items
	}
	return "", nil
}

func parseActionMessage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	return strings.TrimSpace(obj.Message)
}
