// Package stream decodes the newline-delimited streaming responses emitted
// by the model-runner API.
//
// The wire format is the usual SSE-over-HTTP convention: each logical event
// is one line holding either a bare JSON object or a "data: <json>" framed
// line, and the stream ends with a "data: [DONE]" sentinel. Lines arrive in
// byte chunks with arbitrary boundaries; a line may span several chunks and
// one chunk may carry several lines.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rhuss/dmr-go/pkg/debug"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Decoder turns a byte stream into an ordered sequence of parsed JSON
// objects. It is single-pass and non-restartable: once Next returns io.EOF
// the sequence is over, and re-iteration requires a new request.
//
// Malformed lines are dropped silently (logged at debug level); they never
// abort the stream. A trailing line not terminated by a newline when the
// stream closes is discarded, never parsed.
type Decoder struct {
	r       io.Reader
	buf     []byte   // trailing partial line carried across reads
	pending []string // complete lines awaiting processing
	readErr error    // deferred read error, surfaced after pending lines drain
	done    bool
	scratch []byte

	// OnDrop, when set, is called with a reason each time a non-empty line
	// is discarded without producing a chunk.
	OnDrop func(reason string)
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, scratch: make([]byte, 1024)}
}

// Next returns the next decoded chunk. It returns io.EOF when the [DONE]
// sentinel is observed or the underlying stream is exhausted, and the
// underlying read error for transport failures mid-stream.
//
// On the sentinel, already-buffered but unprocessed lines are abandoned:
// nothing after [DONE] is ever emitted.
func (d *Decoder) Next() (map[string]any, error) {
	for {
		if d.done {
			return nil, io.EOF
		}

		// Drain complete lines before reading more bytes.
		for len(d.pending) > 0 {
			line := d.pending[0]
			d.pending = d.pending[1:]

			obj, terminal, ok := d.decodeLine(line)
			if terminal {
				d.done = true
				d.pending = nil
				return nil, io.EOF
			}
			if ok {
				return obj, nil
			}
		}

		if d.readErr != nil {
			d.done = true
			if d.readErr == io.EOF {
				return nil, io.EOF
			}
			return nil, d.readErr
		}

		n, err := d.r.Read(d.scratch)
		if n > 0 {
			d.buf = append(d.buf, d.scratch[:n]...)
			for {
				i := bytes.IndexByte(d.buf, '\n')
				if i < 0 {
					break
				}
				d.pending = append(d.pending, string(d.buf[:i]))
				d.buf = d.buf[i+1:]
			}
		}
		if err != nil {
			// Whatever remains in buf is an unterminated fragment.
			d.readErr = err
			d.buf = nil
		}
	}
}

// decodeLine processes one complete line. terminal is true for the [DONE]
// sentinel; ok is true when the line produced a chunk.
//
// Lines are buffered as raw bytes and sanitized here, per line, so that a
// multi-byte UTF-8 sequence split across two reads is never corrupted.
// Invalid byte sequences become the Unicode replacement character instead
// of failing the stream.
func (d *Decoder) decodeLine(raw string) (obj map[string]any, terminal bool, ok bool) {
	line := strings.TrimSpace(strings.ToValidUTF8(raw, "�"))
	if line == "" {
		return nil, false, false
	}

	if rest, found := strings.CutPrefix(line, dataPrefix); found {
		if rest == doneSentinel {
			return nil, true, false
		}
		line = rest
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		debug.Log("streaming", "skipping malformed chunk",
			"error", err.Error(),
			"data", debug.Truncate(line, 200),
		)
		if d.OnDrop != nil {
			d.OnDrop("malformed")
		}
		return nil, false, false
	}
	return parsed, false, true
}

// Collect drains the decoder and returns all remaining chunks. Mostly
// useful in tests and short scripted calls; streaming callers should pull
// with Next.
func (d *Decoder) Collect() ([]map[string]any, error) {
	var chunks []map[string]any
	for {
		obj, err := d.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, obj)
	}
}
