// SPDX-License-Identifier: MPL-2.0

package script

import "bytes"

// cappedBuffer accumulates writes up to a fixed limit and fails the write
// that would push it past the limit. The overflow is also recorded on the
// buffer itself: the failed write typically kills the producing process
// (SIGPIPE), and the resulting exit error would otherwise mask the overflow.
// Callers must consult Overflowed after the run, not just the run error.
type cappedBuffer struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len()+len(p) > b.limit {
		b.overflowed = true
		return 0, ErrOutputTooLarge
	}
	return b.buf.Write(p)
}

// Overflowed reports whether any write was rejected for exceeding the limit.
func (b *cappedBuffer) Overflowed() bool { return b.overflowed }

// String returns the accumulated bytes as a string.
func (b *cappedBuffer) String() string { return b.buf.String() }
