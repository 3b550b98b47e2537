//go:build cgo

// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"github.com/hraban/opus"
)

// packetDecoder decodes one Opus packet at a time into interleaved s16
// PCM. cgo builds use the libopus cgo binding for full codec fidelity.
type packetDecoder struct {
	dec      *opus.Decoder
	channels int
}

func newPacketDecoder(sampleRate, channels int) (*packetDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &packetDecoder{dec: dec, channels: channels}, nil
}

// DecodeFrame decodes pkt (nil for packet loss concealment) into up to
// maxSamplesPerChannel samples per channel.
func (p *packetDecoder) DecodeFrame(pkt []byte, maxSamplesPerChannel int) ([]int16, error) {
	out := make([]int16, maxSamplesPerChannel*p.channels)
	n, err := p.dec.Decode(pkt, out)
	if err != nil {
		return nil, err
	}
	return out[:n*p.channels], nil
}
