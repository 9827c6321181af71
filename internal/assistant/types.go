package assistant

// Speaker identifies which side of the conversation produced an entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// EntryKind discriminates the transcript entry union.
type EntryKind string

const (
	EntryText          EntryKind = "text"
	EntryOrderList     EntryKind = "order_list"
	EntryPrompt        EntryKind = "prompt"
	EntryAddressSearch EntryKind = "address_search"
)

// OrderSummary is a purely presentational order row delivered inside a
// show_order_list action. Identity is ID; the client never mutates one.
type OrderSummary struct {
	ID              string  `json:"id"`
	PlacedAt        string  `json:"ordered_at"`
	StatusCode      string  `json:"status"`
	StatusLabel     string  `json:"status_label,omitempty"`
	ProductName     string  `json:"product_name"`
	Amount          float64 `json:"amount"`
	DeliveredAt     string  `json:"delivered_at,omitempty"`
	EligibleActions []string `json:"available_actions,omitempty"`
}

// Entry is one rendered transcript item. Exactly the fields for its Kind are
// set; the rest stay zero.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Speaker Speaker   `json:"speaker"`

	// EntryText
	Text string `json:"text,omitempty"`

	// EntryOrderList / EntryPrompt / EntryAddressSearch
	Prompt string `json:"prompt,omitempty"`

	// EntryOrderList
	Orders            []OrderSummary `json:"orders,omitempty"`
	SelectionRequired bool           `json:"selection_required,omitempty"`
}

func (e Entry) clone() Entry {
	out := e
	if len(e.Orders) > 0 {
		out.Orders = append([]OrderSummary(nil), e.Orders...)
	}
	return out
}
