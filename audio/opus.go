// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"github.com/ghosttype/ghosttype/ghosterrors"
)

// Decode demuxes Ogg-Opus bytes, decodes every packet, downmixes to
// mono, and resamples to targetRate, per spec §4.2. Empty input yields
// an empty PCM buffer rather than an error.
func Decode(oggOpus []byte, targetRate int) (PcmAudio, error) {
	if len(oggOpus) == 0 {
		return PcmAudio{Samples: nil, SampleRate: targetRate, Channels: 1}, nil
	}

	info, packets, err := DemuxOggOpus(oggOpus)
	if err != nil {
		return PcmAudio{}, err
	}
	if info.Channels <= 0 {
		info.Channels = 1
	}
	if info.SampleRate <= 0 {
		info.SampleRate = 48000
	}

	dec, err := newPacketDecoder(info.SampleRate, info.Channels)
	if err != nil {
		return PcmAudio{}, ghosterrors.NewDecodeFailure("%v", err)
	}

	maxSamplesPerChannel := info.SampleRate / 50 * 6 // generous ceiling across Opus frame sizes
	var interleaved []int16
	for _, pkt := range packets {
		frame, err := dec.DecodeFrame(pkt, maxSamplesPerChannel)
		if err != nil {
			return PcmAudio{}, ghosterrors.NewDecodeFailure("%v", err)
		}
		interleaved = append(interleaved, frame...)
	}

	// Drop the encoder pre-skip, as declared in the OpusHead.
	dropFrames := info.PreSkip * info.Channels
	if dropFrames > len(interleaved) {
		dropFrames = len(interleaved)
	}
	interleaved = interleaved[dropFrames:]

	mono := ConvertToMono(interleaved, info.Channels)
	resampled := Resample(mono, info.SampleRate, targetRate)

	return PcmAudio{Samples: resampled, SampleRate: targetRate, Channels: 1}, nil
}
