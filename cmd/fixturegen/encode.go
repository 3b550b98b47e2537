// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"

	"github.com/thesyncim/gopus"

	"github.com/ghosttype/ghosttype/audio"
)

// fixtureOpusRate is the rate fixturegen always encodes at. The
// encoder's frame-size table is expressed in 48kHz-domain samples
// (spec §9's own 20ms/48kHz assumption), so fixtures are produced at
// 48000 Hz rather than threading every Opus-supported rate through it.
const fixtureOpusRate = 48000

// encodeOpusFrames re-encodes pcm (mono, any native rate) into a
// sequence of 20ms Opus packets at fixtureOpusRate.
func encodeOpusFrames(pcm decodedPCM) ([][]byte, error) {
	resampled := audio.Resample(pcm.samples, pcm.sampleRate, fixtureOpusRate)

	enc, err := gopus.NewEncoder(fixtureOpusRate, 1, gopus.ApplicationVoIP)
	if err != nil {
		return nil, fmt.Errorf("creating Opus encoder: %w", err)
	}

	frameSamples := fixtureOpusRate / 50
	var packets [][]byte
	for start := 0; start < len(resampled); start += frameSamples {
		end := start + frameSamples
		frame := make([]int16, frameSamples)
		if end > len(resampled) {
			copy(frame, resampled[start:])
		} else {
			copy(frame, resampled[start:end])
		}

		pkt, err := enc.EncodeInt16Slice(frame)
		if err != nil {
			return nil, fmt.Errorf("encoding frame: %w", err)
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
