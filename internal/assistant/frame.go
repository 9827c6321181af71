package assistant

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	frameMarker = "data: "

	// defaultMaxResidualBytes bounds how much unterminated data the decoder
	// will hold before declaring the stream malformed. Failing here aborts
	// the current turn only, not the whole client.
	defaultMaxResidualBytes = 1 << 20
)

// FrameDecoder turns successive byte chunks of a chunked chat response into
// complete event records. The wire convention is one `data: <json>` record
// per line; records may be split across read boundaries, so the trailing
// unterminated fragment is retained between calls. The residual is kept as
// raw bytes, which also keeps multi-byte UTF-8 sequences intact across
// chunk cuts.
type FrameDecoder struct {
	residual    []byte
	maxResidual int
}

func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{maxResidual: defaultMaxResidualBytes}
}

// Push appends chunk to the residual and returns every complete record it
// now contains, in arrival order. Lines without the record marker (blank
// separators, comments) are discarded. An empty chunk yields no records.
func (d *FrameDecoder) Push(chunk []byte) ([]string, error) {
	if d == nil {
		return nil, errors.New("nil frame decoder")
	}
	if len(chunk) > 0 {
		d.residual = append(d.residual, chunk...)
	}

	var records []string
	for {
		i := bytes.IndexByte(d.residual, '\n')
		if i < 0 {
			break
		}
		line := d.residual[:i]
		d.residual = d.residual[i+1:]
		if rec, ok := decodeFrameLine(line); ok {
			records = append(records, rec)
		}
	}

	limit := d.maxResidual
	if limit <= 0 {
		limit = defaultMaxResidualBytes
	}
	if len(d.residual) > limit {
		d.residual = nil
		return records, fmt.Errorf("frame residual exceeded %d bytes without a line break", limit)
	}
	return records, nil
}

// Flush surfaces a trailing record whose boundary is the end of the stream
// itself. Callers must invoke it once after the read loop ends, or a final
// unterminated-but-complete line would be dropped.
func (d *FrameDecoder) Flush() (string, bool) {
	if d == nil || len(d.residual) == 0 {
		return "", false
	}
	line := d.residual
	d.residual = nil
	return decodeFrameLine(line)
}

func decodeFrameLine(line []byte) (string, bool) {
	s := strings.TrimRight(string(line), "\r")
	if !strings.HasPrefix(s, frameMarker) {
		return "", false
	}
	rec := strings.TrimSpace(strings.TrimPrefix(s, frameMarker))
	if rec == "" {
		return "", false
	}
	return rec, true
}
