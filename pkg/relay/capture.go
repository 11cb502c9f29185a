package relay

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Capture is a bounded tee target. It keeps the first limit bytes written and
// counts the rest, and never returns an error, so it cannot stall a stream.
// It is safe for concurrent use: the transport may still be writing request
// bytes while the handler reads.
type Capture struct {
	mu    sync.Mutex
	limit int64
	total int64
	buf   bytes.Buffer
}

// NewCapture returns a Capture that retains at most limit bytes. A limit of
// zero or less only counts.
func NewCapture(limit int64) *Capture {
	return &Capture{limit: limit}
}

// Write implements io.Writer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += int64(len(p))
	if room := c.limit - int64(c.buf.Len()); room > 0 {
		if int64(len(p)) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

// Bytes returns a copy of the retained prefix, or nil when the limit is zero.
func (c *Capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit <= 0 {
		return nil
	}
	return bytes.Clone(c.buf.Bytes())
}

// Total is the number of bytes written, retained or not.
func (c *Capture) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Truncated reports whether bytes were dropped.
func (c *Capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total > int64(c.buf.Len())
}

// closeNotifyBody wraps an outbound request body and reports when the
// transport is done with it. The transport closes request bodies itself,
// possibly after Do has returned.
type closeNotifyBody struct {
	io.Reader
	closer io.Closer
	once   sync.Once
	done   chan struct{}
}

func newCloseNotifyBody(r io.Reader, c io.Closer) *closeNotifyBody {
	return &closeNotifyBody{Reader: r, closer: c, done: make(chan struct{})}
}

// Close implements io.Closer.
func (b *closeNotifyBody) Close() error {
	var err error
	b.once.Do(func() {
		err = b.closer.Close()
		close(b.done)
	})
	return err
}

// wait blocks until the body is closed, the grace period elapses or stop
// fires, and reports whether the body was closed.
func (b *closeNotifyBody) wait(grace time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-b.done:
		return true
	case <-timer.C:
	case <-stop:
	}
	return false
}
