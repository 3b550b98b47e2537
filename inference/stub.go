// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

import (
	"context"
	"fmt"
)

// StubEngine is a Recognizer that performs no inference; it reports
// the size and rate of what it received, for integration tests and
// for running the service without a model installed.
type StubEngine struct{}

// NewStubEngine returns a ready-to-use StubEngine.
func NewStubEngine() *StubEngine { return &StubEngine{} }

// Transcribe implements Recognizer.
func (s *StubEngine) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	return fmt.Sprintf("[pcm_bytes=%d sr=%d]", len(pcm)*2, sampleRate), nil
}

// Close implements Recognizer.
func (s *StubEngine) Close() error { return nil }
