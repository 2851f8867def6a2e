package protocol

import (
	"errors"

	"github.com/smallnest/ringbuffer"
)

// DefaultFramerCapacity is sized for several worst-case frames of carry-over;
// a healthy link never accumulates more than a partial frame.
const DefaultFramerCapacity = 256

// Framer reassembles protocol frames from a raw notification byte stream.
// BLE notifications carry whatever the controller flushed: usually exactly one
// frame, but frames can be split across notifications or coalesced into one.
// The framer buffers carry-over bytes and emits only byte runs that look like
// whole frames; integrity is still the decoder's job.
//
// A Framer belongs to one session and is not safe for concurrent use.
type Framer struct {
	buf *ringbuffer.RingBuffer
}

// NewFramer creates a framer with the default carry-over capacity.
func NewFramer() *Framer {
	return &Framer{buf: ringbuffer.New(DefaultFramerCapacity)}
}

// Push appends one notification's bytes and returns every complete frame now
// available, in arrival order. Bytes that cannot begin a frame (advertisement
// noise, torn frames after an overflow) are discarded during resync.
func (f *Framer) Push(chunk []byte) [][]byte {
	if _, err := f.buf.Write(chunk); err != nil && errors.Is(err, ringbuffer.ErrIsFull) {
		// Overflow means we lost sync anyway; start over with this chunk.
		f.buf.Reset()
		_, _ = f.buf.Write(chunk)
	}

	pending := make([]byte, f.buf.Length())
	n, err := f.buf.TryRead(pending)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return nil
	}
	pending = pending[:n]

	frames, rest := splitFrames(pending)
	if len(rest) > 0 {
		_, _ = f.buf.Write(rest)
	}
	return frames
}

// splitFrames extracts complete frames from buf, returning them along with
// any trailing partial frame to carry over.
func splitFrames(buf []byte) (frames [][]byte, rest []byte) {
	for {
		// Resync to a host-address header.
		start := indexHeader(buf)
		if start < 0 {
			// No header; keep the last byte in case it is the first half
			// of a header split across notifications.
			if len(buf) > 0 && buf[len(buf)-1] == addrToHost[0] {
				return frames, buf[len(buf)-1:]
			}
			return frames, nil
		}
		buf = buf[start:]

		if len(buf) < 4 {
			return frames, buf
		}

		paramLen := int(buf[3])
		if paramLen > maxParamLen {
			// Not a real frame; skip the header bytes and rescan.
			buf = buf[2:]
			continue
		}

		total := paramLen + MinFrameLen
		if len(buf) < total {
			return frames, buf
		}

		if buf[total-1] != FrameTerminator {
			buf = buf[2:]
			continue
		}

		frame := make([]byte, total)
		copy(frame, buf[:total])
		frames = append(frames, frame)
		buf = buf[total:]
	}
}

func indexHeader(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == addrToHost[0] && buf[i+1] == addrToHost[1] {
			return i
		}
	}
	return -1
}
