// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"encoding/binary"

	"github.com/ghosttype/ghosttype/ghosterrors"
)

// OggPage is one parsed Ogg page.
type OggPage struct {
	HeaderType uint8
	Granule    uint64
	Sequence   uint32
	Packets    [][]byte
}

// OpusStreamInfo is the content of a parsed OpusHead page.
type OpusStreamInfo struct {
	Channels   int
	PreSkip    int
	SampleRate int
}

// DemuxOggOpus parses an Ogg-Opus byte stream into its OpusHead info
// and the ordered list of raw Opus packets it carries, verifying the
// CRC of every page.
func DemuxOggOpus(data []byte) (OpusStreamInfo, [][]byte, error) {
	if len(data) == 0 {
		return OpusStreamInfo{}, nil, nil
	}

	var info OpusStreamInfo
	var packets [][]byte
	sawHead := false

	offset := 0
	for offset < len(data) {
		page, next, err := parseOggPage(data, offset)
		if err != nil {
			return OpusStreamInfo{}, nil, ghosterrors.NewDecodeFailure("%v", err)
		}
		offset = next

		for _, pkt := range page.Packets {
			if !sawHead {
				parsed, err := parseOpusHead(pkt)
				if err != nil {
					return OpusStreamInfo{}, nil, ghosterrors.NewDecodeFailure("%v", err)
				}
				info = parsed
				sawHead = true
				continue
			}
			if isOpusTags(pkt) {
				continue
			}
			packets = append(packets, pkt)
		}
	}

	if !sawHead {
		return OpusStreamInfo{}, nil, ghosterrors.NewDecodeFailure("missing OpusHead page")
	}
	return info, packets, nil
}

func parseOggPage(data []byte, offset int) (OggPage, int, error) {
	if offset+27 > len(data) || string(data[offset:offset+4]) != pageHeaderSignature {
		return OggPage{}, 0, ghosterrors.NewDecodeFailure("malformed Ogg page signature")
	}

	headerType := data[offset+5]
	granule := binary.LittleEndian.Uint64(data[offset+6 : offset+14])
	seq := binary.LittleEndian.Uint32(data[offset+18 : offset+22])
	crcField := binary.LittleEndian.Uint32(data[offset+22 : offset+26])
	numSegments := int(data[offset+26])

	segTableStart := offset + 27
	segTableEnd := segTableStart + numSegments
	if segTableEnd > len(data) {
		return OggPage{}, 0, ghosterrors.NewDecodeFailure("truncated segment table")
	}
	segTable := data[segTableStart:segTableEnd]

	payloadStart := segTableEnd
	totalPayload := 0
	for _, s := range segTable {
		totalPayload += int(s)
	}
	if payloadStart+totalPayload > len(data) {
		return OggPage{}, 0, ghosterrors.NewDecodeFailure("truncated page payload")
	}
	pageEnd := payloadStart + totalPayload

	pageBytes := make([]byte, pageEnd-offset)
	copy(pageBytes, data[offset:pageEnd])
	binary.LittleEndian.PutUint32(pageBytes[22:26], 0)
	if computed := oggCRC(pageBytes); computed != crcField {
		return OggPage{}, 0, ghosterrors.NewDecodeFailure("CRC mismatch in Ogg page")
	}

	var packets [][]byte
	pos := payloadStart
	segStart := pos
	runLen := 0
	for _, s := range segTable {
		runLen += int(s)
		pos += int(s)
		if s < maxSegmentSize {
			pkt := make([]byte, runLen)
			copy(pkt, data[segStart:segStart+runLen])
			packets = append(packets, pkt)
			segStart = pos
			runLen = 0
		}
	}

	return OggPage{HeaderType: headerType, Granule: granule, Sequence: seq, Packets: packets}, pageEnd, nil
}

func parseOpusHead(pkt []byte) (OpusStreamInfo, error) {
	if len(pkt) < 19 || string(pkt[0:8]) != idPageSignature {
		return OpusStreamInfo{}, ghosterrors.NewDecodeFailure("expected OpusHead, got something else")
	}
	return OpusStreamInfo{
		Channels:   int(pkt[9]),
		PreSkip:    int(binary.LittleEndian.Uint16(pkt[10:12])),
		SampleRate: int(binary.LittleEndian.Uint32(pkt[12:16])),
	}, nil
}

func isOpusTags(pkt []byte) bool {
	return len(pkt) >= 8 && string(pkt[0:8]) == commentPageSignature
}
