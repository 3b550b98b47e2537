//go:build !cgo

// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"github.com/thesyncim/gopus"
)

// packetDecoder decodes one Opus packet at a time into interleaved s16
// PCM. Non-cgo builds use the pure-Go decoder so the service still
// runs without a C toolchain, unlike the teacher's hard CGO
// requirement here.
type packetDecoder struct {
	dec      *gopus.Decoder
	channels int
}

func newPacketDecoder(sampleRate, channels int) (*packetDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &packetDecoder{dec: dec, channels: channels}, nil
}

// DecodeFrame decodes pkt (nil for packet loss concealment) into up to
// maxSamplesPerChannel samples per channel.
func (p *packetDecoder) DecodeFrame(pkt []byte, maxSamplesPerChannel int) ([]int16, error) {
	pcm := make([]float32, maxSamplesPerChannel*p.channels)
	n, err := p.dec.Decode(pkt, pcm)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n*p.channels)
	for i := range out {
		out[i] = floatToS16(pcm[i])
	}
	return out, nil
}

func floatToS16(f float32) int16 {
	v := f * 32768.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
