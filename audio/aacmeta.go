// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"fmt"

	"github.com/Comcast/gaad"
)

// AACStreamInfo is the subset of an ADTS header fixture generation
// needs to report a useful error: gaad parses ADTS frames but does not
// decode AAC to PCM, so raw AAC fixtures cannot be converted here.
type AACStreamInfo struct {
	SampleRate int
	Channels   int
	Profile    string
}

// ProbeAAC parses the ADTS header of an AAC bitstream without
// attempting to decode audio samples.
func ProbeAAC(data []byte) (AACStreamInfo, error) {
	adts, err := gaad.ParseADTS(data)
	if err != nil {
		return AACStreamInfo{}, fmt.Errorf("parsing ADTS header: %w", err)
	}

	channels := int(adts.ChannelConfiguration)
	if channels == 0 {
		channels = 1
	}

	profile := "AAC"
	if int(adts.Profile) < len(gaad.AACProfileType) {
		profile = gaad.AACProfileType[adts.Profile]
	}

	return AACStreamInfo{
		SampleRate: int(adts.SamplingFrequency),
		Channels:   channels,
		Profile:    profile,
	}, nil
}
