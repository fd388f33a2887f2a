// internal/link/buffer.go
package link

import (
	"sync/atomic"

	"mbot-service/internal/protocol/frame"
)

// receiveBuffer accumulates wired bytes and strips recognized frames from the front.
// Only dropped may be read without holding the manager's readMu.
type receiveBuffer struct {
	buf     []byte
	max     int
	dropped atomic.Int64
}

func newReceiveBuffer(max int) *receiveBuffer {
	return &receiveBuffer{
		buf: make([]byte, 0, max),
		max: max,
	}
}

// write appends p, dropping the oldest bytes beyond the cap
func (r *receiveBuffer) write(p []byte) {
	r.buf = append(r.buf, p...)
	if over := len(r.buf) - r.max; over > 0 {
		r.consume(over)
		r.dropped.Add(int64(over))
	}
}

// next returns the first complete response, skipping garbage on the way
func (r *receiveBuffer) next() (*frame.Response, bool) {
	for len(r.buf) > 0 {
		n, resp := frame.DecodeResponse(r.buf)
		if n == 0 {
			return nil, false
		}
		r.consume(n)
		if resp != nil {
			return resp, true
		}
	}
	return nil, false
}

func (r *receiveBuffer) consume(n int) {
	r.buf = r.buf[:copy(r.buf, r.buf[n:])]
}

func (r *receiveBuffer) len() int {
	return len(r.buf)
}
