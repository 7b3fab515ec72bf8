// Package sctl decodes SCTL diagnostic records carried inside COBS frames.
//
// A frame holds zero or more records packed back to back. Each record is a
// one byte kind, an unsigned LEB128 payload length and the payload bytes:
//
//	+------+-----------------+----------------+
//	| kind | length (varint) | payload ...    |
//	+------+-----------------+----------------+
package sctl

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
)

// Kind identifies the type of a record.
type Kind uint8

// Recognised record kinds. Every other non-zero kind decodes as an "other"
// message that callers may log and ignore.
const (
	KindBoot   Kind = 0x01
	KindStdout Kind = 0x02
	KindStderr Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case KindBoot:
		return "boot"
	case KindStdout:
		return "stdout"
	case KindStderr:
		return "stderr"
	}
	return fmt.Sprintf("other(0x%02x)", uint8(k))
}

// Message is one decoded record. Payload aliases the frame buffer.
type Message struct {
	Kind    Kind
	Payload []byte
}

// Other reports whether the message has an unrecognised kind.
func (m Message) Other() bool {
	return m.Kind != KindBoot && m.Kind != KindStdout && m.Kind != KindStderr
}

func (m Message) String() string {
	return fmt.Sprintf("%s %q", m.Kind, m.Payload)
}

// DecodeError describes one malformed record.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sctl: bad record at offset %d: %s", e.Offset, e.Reason)
}

// Reader pulls records out of a single frame.
type Reader struct {
	frame []byte
	pos   int
}

// NewReader returns a Reader over frame.
func NewReader(frame []byte) *Reader {
	return &Reader{frame: frame}
}

// Next returns the next record. It returns io.EOF once the frame is
// exhausted and a *DecodeError for a malformed record. After a record with a
// zero kind decoding resumes at the following byte; a bad length aborts the
// rest of the frame, so the next call returns io.EOF.
func (r *Reader) Next() (Message, error) {
	if r.pos >= len(r.frame) {
		return Message{}, io.EOF
	}

	start := r.pos
	kind := Kind(r.frame[start])
	if kind == 0 {
		r.pos++
		return Message{}, &DecodeError{Offset: start, Reason: "zero record kind"}
	}

	length, n := binary.Uvarint(r.frame[start+1:])
	if n <= 0 {
		r.pos = len(r.frame)
		if n == 0 {
			return Message{}, &DecodeError{Offset: start, Reason: "truncated length"}
		}
		return Message{}, &DecodeError{Offset: start, Reason: "length overflows 64 bits"}
	}

	body := start + 1 + n
	if length > uint64(len(r.frame)-body) {
		r.pos = len(r.frame)
		return Message{}, &DecodeError{
			Offset: start,
			Reason: fmt.Sprintf("payload of %d bytes overruns frame (%d left)", length, len(r.frame)-body),
		}
	}

	end := body + int(length)
	r.pos = end
	return Message{Kind: kind, Payload: r.frame[body:end:end]}, nil
}

// Decode yields every record in frame, including per-record errors, until
// the frame is exhausted.
func Decode(frame []byte) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		r := NewReader(frame)
		for {
			msg, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(msg, err) {
				return
			}
		}
	}
}

// AppendRecord appends an encoded record to dst.
func AppendRecord(dst []byte, kind Kind, payload []byte) []byte {
	dst = append(dst, byte(kind))
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}
