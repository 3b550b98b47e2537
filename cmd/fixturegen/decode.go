// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Command fixturegen decodes WAV/FLAC/MP3/Vorbis fixture files to PCM
// and re-encodes them as a sequence of 20ms Opus frames, for use as
// session test input without hand-crafting Opus packet bytes.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanitaverna/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/ghosttype/ghosttype/audio"
)

// decodedPCM is native-rate mono s16 PCM plus its sample rate, ahead
// of any resample to an Opus-supported rate.
type decodedPCM struct {
	samples    []int16
	sampleRate int
}

// decodeFixture dispatches on file extension to the matching decoder.
func decodeFixture(path string) (decodedPCM, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		pcm, err := audio.ReadWavFile(path)
		if err != nil {
			return decodedPCM{}, err
		}
		return decodedPCM{samples: pcm.Samples, sampleRate: pcm.SampleRate}, nil
	case ".flac":
		return decodeFLAC(path)
	case ".mp3":
		return decodeMP3(path)
	case ".ogg":
		return decodeVorbis(path)
	case ".aac":
		return decodeAAC(path)
	default:
		return decodedPCM{}, fmt.Errorf("unsupported fixture extension: %s", path)
	}
}

// decodeAAC reports why raw AAC fixtures can't be converted: gaad
// parses ADTS headers but does not decode AAC to PCM.
func decodeAAC(path string) (decodedPCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return decodedPCM{}, err
	}
	info, err := audio.ProbeAAC(data)
	if err != nil {
		return decodedPCM{}, fmt.Errorf("reading AAC fixture: %w", err)
	}
	return decodedPCM{}, fmt.Errorf(
		"AAC fixture %s (%d Hz, %d ch, profile %s) cannot be decoded to PCM: no AAC decode library in the dependency set, only ADTS header parsing",
		path, info.SampleRate, info.Channels, info.Profile)
}

func decodeFLAC(path string) (decodedPCM, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return decodedPCM{}, fmt.Errorf("parsing FLAC file: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	if info == nil {
		return decodedPCM{}, fmt.Errorf("FLAC file has no StreamInfo")
	}

	var samples []int16
	maxValue := int32(1) << (info.BitsPerSample - 1)
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return decodedPCM{}, fmt.Errorf("parsing FLAC frame: %w", err)
		}
		nChannels := int(info.NChannels)
		blockSize := int(f.Header.BlockSize)
		for i := 0; i < blockSize; i++ {
			var sum int64
			for ch := 0; ch < nChannels && ch < len(f.Subframes); ch++ {
				if i < len(f.Subframes[ch].Samples) {
					sum += int64(f.Subframes[ch].Samples[i])
				}
			}
			avg := int32(sum / int64(nChannels))
			samples = append(samples, scaleToS16(avg, maxValue))
		}
	}
	return decodedPCM{samples: samples, sampleRate: int(info.SampleRate)}, nil
}

func scaleToS16(sample, maxValue int32) int16 {
	scaled := int64(sample) * 32768 / int64(maxValue)
	if scaled > 32767 {
		scaled = 32767
	}
	if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

func decodeMP3(path string) (decodedPCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return decodedPCM{}, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return decodedPCM{}, fmt.Errorf("creating MP3 decoder: %w", err)
	}

	var interleaved []int16
	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			for i := 0; i+1 < n; i += 2 {
				interleaved = append(interleaved, int16(buf[i])|int16(buf[i+1])<<8)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return decodedPCM{}, fmt.Errorf("reading MP3 stream: %w", err)
		}
	}

	mono := audio.ConvertToMono(interleaved, 2)
	return decodedPCM{samples: mono, sampleRate: dec.SampleRate()}, nil
}

func decodeVorbis(path string) (decodedPCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return decodedPCM{}, err
	}
	defer f.Close()

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return decodedPCM{}, fmt.Errorf("creating Vorbis decoder: %w", err)
	}

	var floatSamples []float32
	buf := make([]float32, 16384)
	for {
		n, err := dec.Read(buf)
		floatSamples = append(floatSamples, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return decodedPCM{}, fmt.Errorf("reading Vorbis stream: %w", err)
		}
	}

	interleaved := make([]int16, len(floatSamples))
	for i, s := range floatSamples {
		v := s * 32768
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		interleaved[i] = int16(v)
	}

	mono := audio.ConvertToMono(interleaved, dec.Channels())
	return decodedPCM{samples: mono, sampleRate: dec.SampleRate()}, nil
}
