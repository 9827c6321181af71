package assistant

import (
	"strings"
	"testing"
)

func TestFrameDecoderChunkingInvariance(t *testing.T) {
	lines := []string{
		`data: {"type":"status_update","status":"주문을 조회하고 있어요"}`,
		`data: {"type":"text_chunk","content":"안녕하세요"}`,
		`data: {"type":"text_chunk","content":", 무엇을 도와드릴까요?"}`,
		`data: {"type":"done"}`,
	}
	raw := strings.Join(lines, "\n") + "\n"
	want := make([]string, 0, len(lines))
	for _, l := range lines {
		want = append(want, strings.TrimPrefix(l, "data: "))
	}

	// Cut the raw bytes at every possible boundary, including cuts inside
	// multi-byte Korean sequences.
	for cut := 0; cut <= len(raw); cut++ {
		dec := NewFrameDecoder()
		var got []string
		for _, chunk := range [][]byte{[]byte(raw[:cut]), []byte(raw[cut:])} {
			recs, err := dec.Push(chunk)
			if err != nil {
				t.Fatalf("cut %d: push: %v", cut, err)
			}
			got = append(got, recs...)
		}
		if rec, ok := dec.Flush(); ok {
			got = append(got, rec)
		}
		if len(got) != len(want) {
			t.Fatalf("cut %d: got %d records, want %d", cut, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("cut %d: record %d = %q, want %q", cut, i, got[i], want[i])
			}
		}
	}
}

func TestFrameDecoderByteAtATime(t *testing.T) {
	raw := "data: {\"type\":\"text_chunk\",\"content\":\"한글\"}\n"
	dec := NewFrameDecoder()
	var got []string
	for i := 0; i < len(raw); i++ {
		recs, err := dec.Push([]byte{raw[i]})
		if err != nil {
			t.Fatalf("push byte %d: %v", i, err)
		}
		got = append(got, recs...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0] != `{"type":"text_chunk","content":"한글"}` {
		t.Fatalf("unexpected record: %q", got[0])
	}
}

func TestFrameDecoderDiscardsNonRecordLines(t *testing.T) {
	dec := NewFrameDecoder()
	recs, err := dec.Push([]byte("\n: comment\nevent: message\ndata: {\"type\":\"done\"}\r\n\n"))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(recs) != 1 || recs[0] != `{"type":"done"}` {
		t.Fatalf("unexpected records: %#v", recs)
	}
}

func TestFrameDecoderEmptyChunkYieldsNothing(t *testing.T) {
	dec := NewFrameDecoder()
	recs, err := dec.Push(nil)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %#v", recs)
	}
}

func TestFrameDecoderFlushSurfacesTrailingRecord(t *testing.T) {
	dec := NewFrameDecoder()
	recs, err := dec.Push([]byte(`data: {"type":"done"}`))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records before flush, got %#v", recs)
	}
	rec, ok := dec.Flush()
	if !ok {
		t.Fatal("expected flush to surface the trailing record")
	}
	if rec != `{"type":"done"}` {
		t.Fatalf("unexpected record: %q", rec)
	}
	if _, ok := dec.Flush(); ok {
		t.Fatal("second flush should be empty")
	}
}

func TestFrameDecoderResidualBound(t *testing.T) {
	dec := &FrameDecoder{maxResidual: 64}
	if _, err := dec.Push([]byte(strings.Repeat("x", 65))); err == nil {
		t.Fatal("expected a decode failure for a runaway residual")
	}
	// The decoder stays usable for the next turn.
	recs, err := dec.Push([]byte("data: {\"type\":\"done\"}\n"))
	if err != nil {
		t.Fatalf("push after failure: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %#v", recs)
	}
}
