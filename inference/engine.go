// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package inference

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ghosttype/ghosttype/ctc"
	"github.com/ghosttype/ghosttype/feature"
	"github.com/ghosttype/ghosttype/ghosterrors"
	"github.com/ghosttype/ghosttype/metrics"
	"github.com/ghosttype/ghosttype/modelio"
)

// Config selects engine construction knobs, mirroring the original
// implementation's SenseVoiceConfig.
type Config struct {
	ExpectedSampleRate int
	DMLDeviceID        *int
	SharedLibraryPath  string
}

// waveformLayout is one candidate input rank for a WaveformDirect
// model: the runtime's actual expected rank is probed once and cached.
type waveformLayout int

const (
	layoutBatchByTime waveformLayout = iota
	layoutFlat
	layoutBatchByChannelByTime
)

// Engine owns one ONNX Runtime session and its derived Model Profile.
// It implements Recognizer.
type Engine struct {
	log     zerolog.Logger
	config  Config
	profile *modelio.Profile
	session *ortSession

	mu             sync.Mutex
	waveformLayout *waveformLayout // nil until the first successful probe
	activeProvider string
}

// NewEngine loads modelPath, builds its Model Profile, and picks an
// execution provider per spec §4.5: CUDA, then CoreML, then DirectML
// (excluded for ORT-quantized models), then CPU.
func NewEngine(log zerolog.Logger, modelPath string, config Config) (*Engine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, ghosterrors.NewBackendInit("model file not found: %s", modelPath)
	}

	if config.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(config.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, ghosterrors.NewBackendInit("initializing onnxruntime environment: %v", err)
		}
	}

	cpuOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, ghosterrors.NewBackendInit("creating session options: %v", err)
	}
	defer cpuOpts.Destroy()

	cpuSession, err := newOrtSession(modelPath, cpuOpts)
	if err != nil {
		return nil, ghosterrors.NewBackendInit("opening model for inspection: %v", err)
	}

	meta, err := cpuSession.CustomMetadata()
	if err != nil {
		cpuSession.Close()
		return nil, ghosterrors.NewBackendInit("reading model metadata: %v", err)
	}

	profile, err := modelio.Build(cpuSession, modelPath)
	if err != nil {
		cpuSession.Close()
		return nil, err
	}

	available, err := ort.GetAvailableProviders()
	if err != nil {
		log.Warn().Err(err).Msg("could not list available onnxruntime providers, assuming CPU only")
		available = []string{providerCPU}
	}
	wants := selectProviders(available, meta)

	session := cpuSession
	active := providerCPU
	if !(len(wants) == 1 && wants[0] == providerCPU) {
		if withProviders, ok := openWithProviders(log, modelPath, wants, config.DMLDeviceID); ok {
			cpuSession.Close()
			session = withProviders
			active = wants[0]
		} else {
			log.Warn().Strs("wanted", wants).Msg("falling back to CPU execution provider")
		}
	}

	metrics.BackendInUse.Reset()
	metrics.BackendInUse.WithLabelValues(active).Set(1)

	log.Info().Str("model", modelPath).Strs("providers", wants).Msg("asr engine ready")

	return &Engine{log: log, config: config, profile: profile, session: session, activeProvider: active}, nil
}

func openWithProviders(log zerolog.Logger, modelPath string, wants []string, dmlDeviceID *int) (*ortSession, bool) {
	hasDML := false
	for _, p := range wants {
		if p == providerDirectML {
			hasDML = true
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, false
	}
	defer opts.Destroy()

	if !hasDML {
		if err := appendProviders(opts, wants, 0); err != nil {
			return nil, false
		}
		s, err := newOrtSession(modelPath, opts)
		if err != nil {
			return nil, false
		}
		return s, true
	}

	var lastErr error
	for _, deviceID := range candidateDMLDeviceIDs(dmlDeviceID) {
		attemptOpts, err := ort.NewSessionOptions()
		if err != nil {
			lastErr = err
			continue
		}
		if err := appendProviders(attemptOpts, wants, deviceID); err != nil {
			attemptOpts.Destroy()
			lastErr = err
			continue
		}
		s, err := newOrtSession(modelPath, attemptOpts)
		attemptOpts.Destroy()
		if err != nil {
			lastErr = err
			continue
		}
		return s, true
	}

	if lastErr != nil {
		log.Warn().Err(lastErr).Msg("DirectML initialization failed, falling back to CPU")
	}
	return nil, false
}

func appendProviders(opts *ort.SessionOptions, wants []string, dmlDeviceID int) error {
	for _, p := range wants {
		switch p {
		case providerCUDA:
			if err := opts.AppendExecutionProviderCUDA(); err != nil {
				return err
			}
		case providerCoreML:
			if err := opts.AppendExecutionProviderCoreML(0); err != nil {
				return err
			}
		case providerDirectML:
			if err := opts.AppendExecutionProviderDirectML(dmlDeviceID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the underlying session.
func (e *Engine) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Close()
}

// Transcribe implements Recognizer.
func (e *Engine) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if e.config.ExpectedSampleRate != 0 && sampleRate != e.config.ExpectedSampleRate {
		return fmt.Sprintf("[unsupported sample_rate=%d; expected %d]", sampleRate, e.config.ExpectedSampleRate), nil
	}

	start := time.Now()
	var text string
	var err error
	if e.profile.Mode == modelio.CtcWithFeatures {
		text, err = e.transcribeCTC(pcm, sampleRate)
	} else {
		text, err = e.transcribeWaveform(pcm)
	}
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceFailures.Inc()
	}
	return text, err
}

func (e *Engine) transcribeCTC(pcm []int16, sampleRate int) (string, error) {
	mat, rows := feature.LogMelFbank(pcm, sampleRate, e.profile)
	if rows == 0 {
		return "", nil
	}

	xShape := ort.NewShape(1, int64(mat.Rows), int64(mat.Cols))
	xTensor, err := ort.NewTensor(xShape, mat.Data)
	if err != nil {
		return "", ghosterrors.NewInferenceFailure("building feature tensor: %v", err)
	}
	defer xTensor.Destroy()

	xLen, err := ort.NewTensor(ort.NewShape(1), []int32{int32(mat.Rows)})
	if err != nil {
		return "", ghosterrors.NewInferenceFailure("building length tensor: %v", err)
	}
	defer xLen.Destroy()

	lang, err := ort.NewTensor(ort.NewShape(1), []int32{int32(e.profile.LanguageID)})
	if err != nil {
		return "", ghosterrors.NewInferenceFailure("building language tensor: %v", err)
	}
	defer lang.Destroy()

	norm, err := ort.NewTensor(ort.NewShape(1), []int32{int32(e.profile.TextNormID)})
	if err != nil {
		return "", ghosterrors.NewInferenceFailure("building text_norm tensor: %v", err)
	}
	defer norm.Destroy()

	raw, err := e.session.run(map[string]ort.Value{
		"x": xTensor, "x_length": xLen, "language": lang, "text_norm": norm,
	})
	if err != nil {
		return "", ghosterrors.NewInferenceFailure("%v", err)
	}
	return ctc.Decode(raw, e.profile), nil
}

func (e *Engine) transcribeWaveform(pcm []int16) (string, error) {
	wave := S16ToNormalizedFloat32(pcm)

	base := map[string]ort.Value{}
	if e.profile.SampleCountInputName != "" {
		lenTensor, err := waveformLengthTensor(e.profile.SampleCountDType, len(wave))
		if err != nil {
			return "", ghosterrors.NewInferenceFailure("building sample-count tensor: %v", err)
		}
		defer lenTensor.Destroy()
		base[e.profile.SampleCountInputName] = lenTensor
	}

	e.mu.Lock()
	cached := e.waveformLayout
	e.mu.Unlock()

	layouts := []waveformLayout{layoutBatchByTime, layoutFlat, layoutBatchByChannelByTime}
	if cached != nil {
		layouts = []waveformLayout{*cached}
	}

	var lastErr error
	for _, layout := range layouts {
		waveTensor, err := waveformTensor(wave, layout)
		if err != nil {
			lastErr = err
			continue
		}
		inputs := map[string]ort.Value{e.profile.WaveformInputName: waveTensor}
		for k, v := range base {
			inputs[k] = v
		}

		raw, err := e.session.run(inputs)
		waveTensor.Destroy()
		if err != nil {
			lastErr = err
			continue
		}

		e.mu.Lock()
		l := layout
		e.waveformLayout = &l
		e.mu.Unlock()

		return ctc.Decode(raw, e.profile), nil
	}

	return "", ghosterrors.NewInferenceFailure("onnx inference failed for all waveform layouts: %v", lastErr)
}

func waveformLengthTensor(dtype string, n int) (ort.Value, error) {
	if dtype == "int64" {
		return ort.NewTensor(ort.NewShape(1), []int64{int64(n)})
	}
	return ort.NewTensor(ort.NewShape(1), []int32{int32(n)})
}

func waveformTensor(wave []float32, layout waveformLayout) (ort.Value, error) {
	n := int64(len(wave))
	switch layout {
	case layoutBatchByTime:
		return ort.NewTensor(ort.NewShape(1, n), wave)
	case layoutFlat:
		return ort.NewTensor(ort.NewShape(n), wave)
	case layoutBatchByChannelByTime:
		return ort.NewTensor(ort.NewShape(1, 1, n), wave)
	default:
		return nil, fmt.Errorf("unknown waveform layout %d", layout)
	}
}
