package assistant

import "strings"

// Transcript owns the ordered conversation history. Entries are append-only
// except for the single assistant text entry that stays open for mutation
// while chunks stream in; it is always the last entry while open.
//
// Observers never see the internal slice: Snapshot returns an independent
// copy, so streaming mutation cannot leak through a rendered view.
type Transcript struct {
	entries []Entry
	open    bool
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Restore replaces the transcript with previously persisted entries. Any
// open entry from a prior run is considered closed.
func (t *Transcript) Restore(entries []Entry) {
	if t == nil {
		return
	}
	t.entries = make([]Entry, 0, len(entries))
	for _, e := range entries {
		t.entries = append(t.entries, e.clone())
	}
	t.open = false
}

func (t *Transcript) AppendUser(text string) {
	if t == nil || strings.TrimSpace(text) == "" {
		return
	}
	t.open = false
	t.entries = append(t.entries, Entry{Kind: EntryText, Speaker: SpeakerUser, Text: text})
}

// AppendOrMutateLast feeds one streamed chunk into the transcript. The first
// chunk of a turn seeds a new assistant text entry and marks it open; later
// chunks concatenate into that entry in place. No new entry is created per
// chunk.
func (t *Transcript) AppendOrMutateLast(chunk string) {
	if t == nil || chunk == "" {
		return
	}
	if t.open && len(t.entries) > 0 {
		t.entries[len(t.entries)-1].Text += chunk
		return
	}
	t.entries = append(t.entries, Entry{Kind: EntryText, Speaker: SpeakerAssistant, Text: chunk})
	t.open = true
}

// AppendStructured pushes an immediately-closed entry. A structured entry
// arriving mid-stream closes the open text entry first, so content never
// interleaves within one entry.
func (t *Transcript) AppendStructured(e Entry) {
	if t == nil {
		return
	}
	t.open = false
	t.entries = append(t.entries, e.clone())
}

// CloseOpen freezes the streaming assistant entry, if any.
func (t *Transcript) CloseOpen() {
	if t == nil {
		return
	}
	t.open = false
}

func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Snapshot returns an independent copy of the entries in arrival order.
func (t *Transcript) Snapshot() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.clone())
	}
	return out
}
