// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}
func (f *fakeRecognizer) Close() error { return nil }

func newTestSession(t *testing.T, recognizer *fakeRecognizer) (*Session, chan OutboundMessage) {
	t.Helper()
	out := make(chan OutboundMessage, 16)
	deps := Dependencies{Recognizer: recognizer, Log: zerolog.Nop()}
	s := New(deps, func(m OutboundMessage) error {
		out <- m
		return nil
	})
	return s, out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func recv(t *testing.T, out chan OutboundMessage) OutboundMessage {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return OutboundMessage{}
	}
}

func silentOpusFrame() []byte { return []byte{0x00, 0x00} }

func TestPingRepliesWithPong(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "x"})
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "ping"})))
	assert.Equal(t, "pong", recv(t, out).Type)
}

func TestStopBeforeStartYieldsError(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "x"})
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))
	msg := recv(t, out)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "stop before start", msg.Message)
}

func TestUnknownTypeYieldsError(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "x"})
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "bogus"})))
	msg := recv(t, out)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "unknown type: bogus", msg.Message)
}

func TestStartEntersCapturingAndGeneratesTraceID(t *testing.T) {
	s, _ := newTestSession(t, &fakeRecognizer{text: "x"})
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start"})))
	assert.Equal(t, Capturing, s.State())
	assert.Len(t, s.currentTraceID(), 6)
}

func TestStartHonorsClientSuppliedTraceID(t *testing.T) {
	s, _ := newTestSession(t, &fakeRecognizer{text: "x"})
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", TraceID: "  abc123  "})))
	assert.Equal(t, "abc123", s.currentTraceID())
}

func TestFullScenarioStartBinaryStopYieldsFastText(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "hello"})

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", TraceID: "abcdef"})))
	s.HandleBinary(silentOpusFrame())
	s.HandleBinary(silentOpusFrame())
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))

	msg := recv(t, out)
	assert.Equal(t, "fast_text", msg.Type)
	assert.Equal(t, "abcdef", msg.TraceID)
	assert.Equal(t, "hello", msg.Content)
	assert.True(t, msg.IsFinal)

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != Idle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, Idle, s.State())
}

func TestSecondStopDuringFinalizingIsRejectedWithoutParallelPipeline(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "hello"})

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", TraceID: "abcdef"})))
	s.HandleBinary(silentOpusFrame())

	s.mu.Lock()
	s.state = Finalizing
	s.mu.Unlock()

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))
	msg := recv(t, out)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "stop before start", msg.Message)
}

func TestStartDuringFinalizingResetsForNewUtterance(t *testing.T) {
	s, _ := newTestSession(t, &fakeRecognizer{text: "hello"})

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", TraceID: "first0"})))
	s.mu.Lock()
	s.state = Finalizing
	s.mu.Unlock()

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", TraceID: "second"})))
	assert.Equal(t, Capturing, s.State())
	assert.Equal(t, "second", s.currentTraceID())
}

func TestBinaryOutsideCapturingIsDropped(t *testing.T) {
	s, _ := newTestSession(t, &fakeRecognizer{text: "x"})
	s.HandleBinary(silentOpusFrame())
	s.mu.Lock()
	packetCount := s.packetCount
	s.mu.Unlock()
	assert.Zero(t, packetCount)
}

func TestAsrFailureSendsErrorThenFastTextPlaceholder(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{err: assertErr{"boom"}})

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start"})))
	s.HandleBinary(silentOpusFrame())
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))

	errMsg := recv(t, out)
	assert.Equal(t, "error", errMsg.Type)
	assert.Contains(t, errMsg.Message, "asr failed")

	placeholder := recv(t, out)
	assert.Equal(t, "fast_text", placeholder.Type)
	assert.Contains(t, placeholder.Content, "[asr_error:")
}

func TestDecodeFailureSendsErrorAndReturnsToIdle(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "x"})

	unsupportedRate := 44100
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start", SampleRate: &unsupportedRate})))
	s.HandleBinary(silentOpusFrame())
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))

	msg := recv(t, out)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "audio decode failed")

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != Idle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, Idle, s.State())
}

func TestEmptyStopProducesEmptyFastTextWithoutInference(t *testing.T) {
	s, out := newTestSession(t, &fakeRecognizer{text: "should not be used"})

	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "start"})))
	require.NoError(t, s.HandleText(mustJSON(t, InboundMessage{Type: "stop"})))

	msg := recv(t, out)
	assert.Equal(t, "fast_text", msg.Type)
	assert.Equal(t, "", msg.Content)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
