// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package inference owns the ONNX Runtime session, backend selection,
// and input/output marshalling for both model variants (§4.5), behind
// a small Recognizer interface shared with a stub used in tests and
// model-less deployments.
package inference

import "context"

// Recognizer turns a mono s16 PCM buffer into text. One Recognizer is
// shared by every connection's session, so implementations must be safe
// for concurrent use; each connection runs at most one transcription at
// a time.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
	Close() error
}
