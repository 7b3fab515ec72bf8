package cobs

import "bytes"

// Decoder recovers frames from a byte stream. Bytes are pushed with Feed and
// frames pulled with Next, so one Feed may yield many frames and one frame
// may span many Feeds.
//
// The buffer is an arena with two cursors: start marks the first byte not yet
// consumed and scan marks how far the current span has been searched for a
// delimiter. Compact reclaims the consumed prefix.
type Decoder struct {
	buf   []byte
	start int
	scan  int

	maxFrame int
	skipping bool
}

// NewDecoder creates a decoder. maxFrame <= 0 selects DefaultMaxFrame.
func NewDecoder(maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Decoder{
		buf:      make([]byte, 0, maxFrame),
		maxFrame: maxFrame,
	}
}

// Feed appends stream bytes to the decoder.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame. ok is false when the buffer holds
// no complete frame yet. When err is non-nil the span was consumed but could
// not be decoded; callers should report it and keep calling Next.
func (d *Decoder) Next() (frame []byte, ok bool, err error) {
	for {
		i := bytes.IndexByte(d.buf[d.scan:], Delimiter)
		if i < 0 {
			d.scan = len(d.buf)
			if !d.skipping && d.scan-d.start > d.maxFrame {
				// Drop the oversized span and wait for the next delimiter.
				d.skipping = true
				d.start = d.scan
				return nil, true, ErrFrameTooLong
			}
			if d.skipping {
				d.start = d.scan
			}
			return nil, false, nil
		}

		end := d.scan + i
		span := d.buf[d.start:end]
		d.start = end + 1
		d.scan = d.start

		if d.skipping {
			d.skipping = false
			continue
		}
		if len(span) > d.maxFrame {
			return nil, true, ErrFrameTooLong
		}

		frame, err := Decode(span)
		if err != nil {
			return nil, true, err
		}
		return frame, true, nil
	}
}

// Compact discards consumed bytes, keeping any partial frame.
func (d *Decoder) Compact() {
	if d.start == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.start:])
	d.buf = d.buf[:n]
	d.scan -= d.start
	d.start = 0
}

// Buffered returns the number of unconsumed bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.start
}
