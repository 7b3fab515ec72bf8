// Package cobs implements Consistent Overhead Byte Stuffing and a streaming
// frame decoder for zero-delimited serial links.
package cobs

import (
	"errors"
	"fmt"
)

// Delimiter terminates every frame on the wire.
const Delimiter = 0x00

// DefaultMaxFrame bounds the stuffed size of a single frame.
const DefaultMaxFrame = 4096

// ErrFrameTooLong reports an undelimited span that outgrew the decoder limit.
// The span is discarded and decoding resumes after the next delimiter.
var ErrFrameTooLong = errors.New("cobs: frame exceeds maximum length")

// FrameError reports malformed stuffing inside a delimited span.
type FrameError struct {
	Offset int // offset of the bad code byte within the span
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("cobs: malformed frame at byte %d: %s", e.Offset, e.Reason)
}

// Encode stuffs p so that it contains no Delimiter bytes. The result does not
// include the trailing delimiter.
func Encode(p []byte) []byte {
	out := make([]byte, 1, len(p)+len(p)/254+2)
	codeIdx := 0
	code := byte(1)

	for _, b := range p {
		if b == Delimiter {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	return out
}

// AppendFrame appends the stuffed form of p and a delimiter to dst.
func AppendFrame(dst, p []byte) []byte {
	dst = append(dst, Encode(p)...)
	return append(dst, Delimiter)
}

// Decode reverses Encode. span must not contain the delimiter. An empty span
// decodes to an empty frame.
func Decode(span []byte) ([]byte, error) {
	out := make([]byte, 0, len(span))
	for i := 0; i < len(span); {
		code := int(span[i])
		if code == Delimiter {
			return nil, &FrameError{Offset: i, Reason: "unexpected delimiter"}
		}
		end := i + code
		if end > len(span) {
			return nil, &FrameError{Offset: i, Reason: fmt.Sprintf("code 0x%02x overruns span of %d bytes", code, len(span))}
		}
		for _, b := range span[i+1 : end] {
			if b == Delimiter {
				return nil, &FrameError{Offset: i, Reason: "unexpected delimiter"}
			}
		}
		out = append(out, span[i+1:end]...)
		i = end
		if code < 0xFF && i < len(span) {
			out = append(out, Delimiter)
		}
	}
	return out, nil
}
