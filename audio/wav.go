// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DumpFileName builds the debug-capture file name
// ghosttype_YYYYMMDD_HHMMSS_ffffff.wav for timestamp t, per spec §6.
func DumpFileName(t time.Time) string {
	return fmt.Sprintf("ghosttype_%s_%06d.wav", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

// WriteDump writes pcm (mono s16le) as a WAV file named per
// DumpFileName under dir, returning the full path written.
func WriteDump(dir string, pcm PcmAudio, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}
	path := filepath.Join(dir, DumpFileName(t))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, pcm.SampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{SampleRate: pcm.SampleRate, NumChannels: 1},
		Data:   make([]int, len(pcm.Samples)),
	}
	for i, s := range pcm.Samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("writing WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("closing WAV encoder: %w", err)
	}
	return path, nil
}

// ReadWavFile decodes a mono or stereo PCM WAV file to PcmAudio,
// downmixing to mono if necessary. Used by cmd/fixturegen to turn
// recorded fixtures into decoder test input.
func ReadWavFile(filename string) (PcmAudio, error) {
	f, err := os.Open(filename)
	if err != nil {
		return PcmAudio{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return PcmAudio{}, fmt.Errorf("invalid WAV file: %s", filename)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PcmAudio{}, fmt.Errorf("reading PCM buffer: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	format := dec.Format()
	if format.NumChannels > 1 {
		samples = ConvertToMono(samples, format.NumChannels)
	}

	return PcmAudio{Samples: samples, SampleRate: format.SampleRate, Channels: 1}, nil
}
