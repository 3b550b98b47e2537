// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exposes Prometheus counters and histograms for the
// per-session pipeline: decode, inference, and the backend currently
// selected for ASR.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghosttype_sessions_started_total",
		Help: "Total number of websocket sessions opened",
	})

	StopRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghosttype_stop_requests_total",
		Help: "Total number of stop requests, by outcome",
	}, []string{"outcome"})

	DecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghosttype_decode_duration_seconds",
		Help:    "Time spent muxing and decoding captured Opus audio",
		Buckets: prometheus.ExponentialBuckets(0.005, 2.0, 10),
	})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghosttype_inference_duration_seconds",
		Help:    "Time spent running the ASR model on one utterance",
		Buckets: prometheus.ExponentialBuckets(0.02, 2.0, 12),
	})

	AudioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghosttype_audio_duration_seconds",
		Help:    "Duration of the decoded PCM submitted for transcription",
		Buckets: prometheus.ExponentialBuckets(0.25, 2.0, 10),
	})

	CPUTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghosttype_cpu_time_seconds",
		Help:    "Process CPU time consumed per utterance",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 10),
	}, []string{"mode"})

	BackendInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghosttype_backend_in_use",
		Help: "1 for the execution provider currently selected, 0 otherwise",
	}, []string{"provider"})

	InferenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghosttype_inference_failures_total",
		Help: "Total number of utterances where ASR inference returned an error",
	})
)
