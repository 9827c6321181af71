package assistant

import (
	"context"
	"errors"
	"strings"
)

// ErrSelectionRequired blocks a confirm while the backend demanded a
// non-empty selection. The interaction layer keeps the control disabled,
// so the turn never reaches the network in this state.
var ErrSelectionRequired = errors.New("at least one order must be selected")

// OrderSelection is the interactive surface bound to an order-list entry.
// It keeps a local selected-ID set and, on confirm, issues exactly one
// hidden send carrying the machine-directed selection sentence. It never
// mutates the transcript or the state store directly.
type OrderSelection struct {
	Prompt   string
	Items    []OrderSummary
	Required bool

	selected map[string]bool
}

// NewOrderSelection builds a surface from an EntryOrderList entry. Returns
// nil for any other entry kind.
func NewOrderSelection(e Entry) *OrderSelection {
	if e.Kind != EntryOrderList {
		return nil
	}
	return &OrderSelection{
		Prompt:   e.Prompt,
		Items:    append([]OrderSummary(nil), e.Orders...),
		Required: e.SelectionRequired,
		selected: make(map[string]bool),
	}
}

// Toggle flips the selection for id and reports whether id named a known
// item.
func (s *OrderSelection) Toggle(id string) bool {
	if s == nil {
		return false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	known := false
	for _, item := range s.Items {
		if item.ID == id {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if s.selected == nil {
		s.selected = make(map[string]bool)
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	return true
}

func (s *OrderSelection) IsSelected(id string) bool {
	if s == nil {
		return false
	}
	return s.selected[id]
}

// SelectedIDs returns the selection in item order, not toggle order.
func (s *OrderSelection) SelectedIDs() []string {
	if s == nil || len(s.selected) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.selected))
	for _, item := range s.Items {
		if s.selected[item.ID] {
			out = append(out, item.ID)
		}
	}
	return out
}

// CanConfirm reports whether confirm is allowed: a non-empty selection, or
// any selection at all when the backend did not require one.
func (s *OrderSelection) CanConfirm() bool {
	if s == nil {
		return false
	}
	if s.Required {
		return len(s.selected) > 0
	}
	return true
}

// ConfirmMessage is the machine-directed sentence carried by the hidden
// follow-up turn, e.g. "주문 A1를 선택했어".
func (s *OrderSelection) ConfirmMessage() string {
	if s == nil {
		return ""
	}
	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return "선택한 주문이 없어"
	}
	return "주문 " + strings.Join(ids, ", ") + "를 선택했어"
}

// Confirm issues the single hidden send for the current selection. The
// user-visible transcript never shows the literal payload.
func (s *OrderSelection) Confirm(ctx context.Context, c *Controller) error {
	if s == nil {
		return errors.New("nil order selection")
	}
	if !s.CanConfirm() {
		return ErrSelectionRequired
	}
	return c.Send(ctx, s.ConfirmMessage(), SendOptions{Hidden: true})
}
