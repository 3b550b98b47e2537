// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ghosttype/ghosttype/audio"
	"github.com/ghosttype/ghosttype/ghosterrors"
	"github.com/ghosttype/ghosttype/inference"
	"github.com/ghosttype/ghosttype/logging"
	"github.com/ghosttype/ghosttype/metrics"
)

// State is the connection's position in the Idle/Capturing/Finalizing
// machine (spec §4.7).
type State int

const (
	Idle State = iota
	Capturing
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Finalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Dependencies are the collaborators a Session needs, shared across
// every connection in the process.
type Dependencies struct {
	Recognizer inference.Recognizer
	Log        zerolog.Logger
	DumpWav    bool
	DumpWavDir string
}

// Sender delivers one outbound text frame to the connection. A
// Session never touches the transport directly, which keeps this
// package free of any websocket dependency and fully unit-testable.
type Sender func(OutboundMessage) error

// Session is one connection's worth of state-machine and buffer. It
// is safe for concurrent use by the owning read loop and the
// goroutine a stop dispatches to finalize a pipeline run.
type Session struct {
	deps Dependencies
	send Sender

	mu          sync.Mutex
	state       State
	traceID     string
	sampleRate  int
	context     map[string]any
	useCloudAPI bool
	packets     [][]byte
	packetCount int
	totalBytes  int
}

// New creates a Session in the Idle state.
func New(deps Dependencies, send Sender) *Session {
	metrics.SessionsStarted.Inc()
	return &Session{deps: deps, send: send, state: Idle, sampleRate: 48000}
}

// State reports the session's current state, for tests and metrics.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleText dispatches one inbound JSON control frame.
func (s *Session) HandleText(raw []byte) error {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		violation := ghosterrors.NewProtocolViolation("invalid json")
		return s.send(errorMessage(s.currentTraceID(), violation.Error()))
	}

	switch msg.Type {
	case "ping":
		return s.send(pongMessage())
	case "start":
		s.handleStart(msg)
		return nil
	case "stop":
		return s.handleStop(context.Background())
	default:
		violation := ghosterrors.NewProtocolViolation("unknown type: %s", msg.Type)
		return s.send(errorMessage(s.currentTraceID(), violation.Error()))
	}
}

// HandleBinary appends one raw Opus packet to the capture buffer. It
// is a no-op outside Capturing, per the inbound-message table in §4.7.
func (s *Session) HandleBinary(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Capturing {
		return
	}
	s.packets = append(s.packets, data)
	s.packetCount++
	s.totalBytes += len(data)
}

func (s *Session) currentTraceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceID
}

func (s *Session) handleStart(msg InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	traceID := strings.TrimSpace(msg.TraceID)
	if traceID == "" {
		traceID = generateTraceID()
	}
	s.traceID = traceID

	s.sampleRate = 48000
	if msg.SampleRate != nil {
		s.sampleRate = *msg.SampleRate
	}
	s.context = msg.Context
	s.useCloudAPI = msg.UseCloudAPI
	s.resetAudioLocked()
	s.state = Capturing
}

func (s *Session) resetAudioLocked() {
	s.packets = nil
	s.packetCount = 0
	s.totalBytes = 0
}

// handleStop rejects the request unless the session is Capturing —
// this single check covers both "stop before any start" and "a second
// stop arriving while the first is still Finalizing", so a second
// stop never launches a parallel pipeline run.
func (s *Session) handleStop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Capturing {
		traceID := s.traceID
		s.mu.Unlock()
		metrics.StopRequests.WithLabelValues("rejected").Inc()
		return s.send(errorMessage(traceID, "stop before start"))
	}

	traceID := s.traceID
	sampleRate := s.sampleRate
	packets := s.packets
	s.resetAudioLocked()
	s.state = Finalizing
	s.mu.Unlock()

	metrics.StopRequests.WithLabelValues("accepted").Inc()
	go s.runPipeline(ctx, traceID, packets, sampleRate)
	return nil
}

// runPipeline executes §4.1 through §4.6 and returns the session to
// Idle. Its result is delivered through send regardless of whether the
// connection that requested it is still open; a closed connection
// simply fails that send, which the transport layer discards.
func (s *Session) runPipeline(ctx context.Context, traceID string, packets [][]byte, sampleRate int) {
	defer s.finish()

	log := logging.WithTrace(s.deps.Log, traceID)

	var rusageStart, rusageEnd syscall.Rusage
	syscall.Getrusage(syscall.RUSAGE_SELF, &rusageStart)
	defer func() {
		syscall.Getrusage(syscall.RUSAGE_SELF, &rusageEnd)
		cpuSeconds := time.Duration(rusageEnd.Utime.Nano()-rusageStart.Utime.Nano()+rusageEnd.Stime.Nano()-rusageStart.Stime.Nano()).Seconds()
		if cpuSeconds > 0 {
			metrics.CPUTime.WithLabelValues("utterance").Observe(cpuSeconds)
		}
	}()

	decodeStart := time.Now()
	oggBytes, err := audio.MuxOpusPackets(packets, sampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("audio mux failed")
		_ = s.send(errorMessage(traceID, fmt.Sprintf("audio decode failed: %v", err)))
		return
	}

	pcm, err := audio.Decode(oggBytes, audio.TargetSampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("Audio decode failed")
		_ = s.send(errorMessage(traceID, fmt.Sprintf("audio decode failed: %v", err)))
		return
	}
	metrics.DecodeDuration.Observe(time.Since(decodeStart).Seconds())
	metrics.AudioDuration.Observe(float64(len(pcm.Samples)) / float64(pcm.SampleRate))

	if s.deps.DumpWav {
		if path, err := audio.WriteDump(s.deps.DumpWavDir, pcm, time.Now()); err != nil {
			log.Warn().Err(err).Msg("wav dump failed")
		} else {
			log.Debug().Str("path", path).Msg("wav dumped")
		}
	}

	if len(pcm.Samples) == 0 {
		_ = s.send(fastTextMessage(traceID, ""))
		return
	}

	inferStart := time.Now()
	log.Debug().Int("pcm_samples", len(pcm.Samples)).Msg("ASR inference started")
	text, err := s.deps.Recognizer.Transcribe(ctx, pcm.Samples, pcm.SampleRate)
	if err != nil {
		log.Warn().Err(err).Msg("asr failed")
		_ = s.send(errorMessage(traceID, fmt.Sprintf("asr failed: %v", err)))
		_ = s.send(fastTextMessage(traceID, fmt.Sprintf("[asr_error: %v]", err)))
		return
	}
	log.Debug().Str("text", text).Dur("inference_time", time.Since(inferStart)).Msg("ASR inference completed")

	_ = s.send(fastTextMessage(traceID, text))
}

// finish returns a Finalizing session to Idle. A start that arrived
// while the pipeline ran has already moved the session to Capturing for
// the next utterance, and that state is left alone.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Finalizing {
		s.state = Idle
	}
}
