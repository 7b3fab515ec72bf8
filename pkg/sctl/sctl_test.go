package sctl

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	msg Message
	err error
}

func collect(frame []byte) []result {
	var out []result
	for m, err := range Decode(frame) {
		out = append(out, result{m, err})
	}
	return out
}

func TestDecodeBoot(t *testing.T) {
	frame := AppendRecord(nil, KindBoot, []byte("v1.0"))
	got := collect(frame)
	require.Len(t, got, 1)
	require.NoError(t, got[0].err)
	assert.Equal(t, Message{Kind: KindBoot, Payload: []byte("v1.0")}, got[0].msg)
}

func TestDecodeEmptyFrame(t *testing.T) {
	assert.Empty(t, collect(nil))
	assert.Empty(t, collect([]byte{}))

	_, err := NewReader(nil).Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecodePackedRecords(t *testing.T) {
	var frame []byte
	frame = AppendRecord(frame, KindStdout, []byte("hello\n"))
	frame = AppendRecord(frame, KindStderr, []byte{0xff, 0xfe, 0x00})
	frame = AppendRecord(frame, Kind(0x42), []byte("custom"))
	frame = AppendRecord(frame, KindStdout, nil)
	big := bytes.Repeat([]byte("x"), 300)
	frame = AppendRecord(frame, KindStdout, big)

	got := collect(frame)
	require.Len(t, got, 5)
	for _, r := range got {
		require.NoError(t, r.err)
	}
	assert.Equal(t, []byte("hello\n"), got[0].msg.Payload)
	assert.Equal(t, KindStderr, got[1].msg.Kind)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, got[1].msg.Payload, "payload is forwarded verbatim")
	assert.True(t, got[2].msg.Other())
	assert.Equal(t, "other(0x42)", got[2].msg.Kind.String())
	assert.Empty(t, got[3].msg.Payload)
	assert.Equal(t, big, got[4].msg.Payload)
}

func TestDecodeZeroKindResumes(t *testing.T) {
	var frame []byte
	frame = append(frame, 0x00)
	frame = AppendRecord(frame, KindBoot, []byte("ok"))

	got := collect(frame)
	require.Len(t, got, 2)
	var de *DecodeError
	require.True(t, errors.As(got[0].err, &de))
	assert.Equal(t, 0, de.Offset)
	require.NoError(t, got[1].err)
	assert.Equal(t, []byte("ok"), got[1].msg.Payload)
}

func TestDecodeOverrunAbortsFrame(t *testing.T) {
	var frame []byte
	frame = AppendRecord(frame, KindStdout, []byte("a"))
	frame = append(frame, byte(KindStdout), 0x10, 'b', 'c')

	got := collect(frame)
	require.Len(t, got, 2)
	require.NoError(t, got[0].err)
	var de *DecodeError
	require.True(t, errors.As(got[1].err, &de))
	assert.Equal(t, 3, de.Offset)
}

func TestDecodeTruncatedLength(t *testing.T) {
	frame := []byte{byte(KindStdout), 0x80}
	r := NewReader(frame)

	_, err := r.Next()
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Reason, "truncated")

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecodeStopsWhenConsumerStops(t *testing.T) {
	var frame []byte
	for i := 0; i < 5; i++ {
		frame = AppendRecord(frame, KindStdout, []byte{byte('0' + i)})
	}
	n := 0
	for range Decode(frame) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
