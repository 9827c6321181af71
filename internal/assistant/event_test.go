package assistant

import (
	"errors"
	"testing"
)

func TestParseEventMetadataRequiresState(t *testing.T) {
	ev, err := ParseEvent(`{"type":"metadata","state":{"step":"refund","order":"A1"}}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != EventMetadata {
		t.Fatalf("kind = %q, want metadata", ev.Kind)
	}
	if string(ev.State) != `{"step":"refund","order":"A1"}` {
		t.Fatalf("state not carried verbatim: %s", ev.State)
	}

	if _, err := ParseEvent(`{"type":"metadata"}`); err == nil {
		t.Fatal("metadata without state should fail validation")
	}
	if _, err := ParseEvent(`{"type":"metadata","state":null}`); err == nil {
		t.Fatal("metadata with null state should fail validation")
	}
}

func TestParseEventTextChunk(t *testing.T) {
	ev, err := ParseEvent(`{"type":"text_chunk","content":""}`)
	if err != nil {
		t.Fatalf("empty string content is valid: %v", err)
	}
	if ev.Kind != EventTextChunk || ev.Content != "" {
		t.Fatalf("unexpected event: %#v", ev)
	}

	if _, err := ParseEvent(`{"type":"text_chunk"}`); err == nil {
		t.Fatal("text_chunk without content should fail validation")
	}
	if _, err := ParseEvent(`{"type":"text_chunk","content":null}`); err == nil {
		t.Fatal("text_chunk with null content should fail validation")
	}
}

func TestParseEventUIAction(t *testing.T) {
	record := `{"type":"ui_action","ui_action":"show_order_list","ui_data":{"orders":[{"id":"A1","product_name":"셔츠","status":"delivered","amount":32000}]},"requires_selection":true,"state":{"k":1}}`
	ev, err := ParseEvent(record)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != EventUIAction || ev.Action != UIActionOrderList {
		t.Fatalf("unexpected event: %#v", ev)
	}
	if !ev.RequiresSelection {
		t.Fatal("requires_selection not carried")
	}
	if string(ev.State) != `{"k":1}` {
		t.Fatalf("ui_action state not carried: %s", ev.State)
	}

	if _, err := ParseEvent(`{"type":"ui_action","ui_data":{}}`); err == nil {
		t.Fatal("ui_action without discriminator should fail validation")
	}
}

func TestParseEventTerminalKinds(t *testing.T) {
	ev, err := ParseEvent(`{"type":"done"}`)
	if err != nil || ev.Kind != EventDone {
		t.Fatalf("done: ev=%#v err=%v", ev, err)
	}
	ev, err = ParseEvent(`{"type":"error","message":"backend exploded"}`)
	if err != nil || ev.Kind != EventError || ev.Message != "backend exploded" {
		t.Fatalf("error: ev=%#v err=%v", ev, err)
	}
}

func TestParseEventUnknownTypeAndExtraFields(t *testing.T) {
	_, err := ParseEvent(`{"type":"heartbeat","uptime":3}`)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}

	// Extra fields on known kinds are ignored.
	ev, err := ParseEvent(`{"type":"status_update","status":" 배송 조회 중 ","trace_id":"abc"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Status != "배송 조회 중" {
		t.Fatalf("status = %q", ev.Status)
	}
}

func TestParseEventMalformedJSON(t *testing.T) {
	if _, err := ParseEvent(`{"type":"done"`); err == nil {
		t.Fatal("malformed JSON should fail")
	}
}
