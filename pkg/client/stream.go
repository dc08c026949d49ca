package client

import (
	"io"

	"github.com/rhuss/dmr-go/pkg/api"
	"github.com/rhuss/dmr-go/pkg/observability"
	"github.com/rhuss/dmr-go/pkg/stream"
)

// Stream is a pull-based streaming response: a lazy, single-pass sequence
// of decoded JSON chunks. It can be iterated exactly once; a new request is
// needed to re-iterate.
//
// Callers must Close the stream; Close is idempotent and is also invoked
// automatically when Next reaches the end of the sequence or an error.
type Stream struct {
	client   *Client
	body     io.ReadCloser
	dec      *stream.Decoder
	endpoint string
	closed   bool
}

func newStream(c *Client, body io.ReadCloser, endpoint string) *Stream {
	dec := stream.NewDecoder(body)
	if c.metrics {
		observability.StreamsActive.Inc()
		dec.OnDrop = func(reason string) {
			observability.StreamDroppedTotal.WithLabelValues(endpoint, reason).Inc()
		}
	}
	return &Stream{
		client:   c,
		body:     body,
		dec:      dec,
		endpoint: endpoint,
	}
}

// Next returns the next chunk. It returns io.EOF when the stream ends
// (sentinel or closure) and a transport APIError when the connection fails
// mid-stream.
func (s *Stream) Next() (map[string]any, error) {
	if s.closed {
		return nil, io.EOF
	}

	obj, err := s.dec.Next()
	if err != nil {
		s.Close()
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, api.NewTransportError(err)
	}

	if s.client.metrics {
		observability.StreamChunksTotal.WithLabelValues(s.endpoint).Inc()
	}
	return obj, nil
}

// Close releases the underlying response body. Safe to call multiple times
// and on every exit path.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.client.metrics {
		observability.StreamsActive.Dec()
	}
	return s.body.Close()
}
