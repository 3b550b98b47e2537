// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/ghosttype/ghosttype/ghosterrors"
)

const (
	pageHeaderSignature           = "OggS"
	idPageSignature                = "OpusHead"
	commentPageSignature           = "OpusTags"
	pageHeaderTypeContinuationOfStream = 0x00
	pageHeaderTypeBeginningOfStream    = 0x02
	pageHeaderTypeEndOfStream          = 0x04
	maxSegmentsPerPage                 = 255
	maxSegmentSize                      = 255
)

// oggCRCTable is the standard Ogg CRC-32 table: polynomial
// 0x04C11DB7, non-reflected, built byte-at-a-time like the reference
// implementation and the pack's own pion oggwriter/oggreader examples.
var oggCRCTable = buildOggCRCTable()

func buildOggCRCTable() [256]uint32 {
	var table [256]uint32
	const poly = uint32(0x04C11DB7)
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

// MuxOpusPackets wraps packets (each one 20ms Opus frame) into a
// complete single-logical-stream Ogg container at nominal sample rate
// rate, per spec §4.1.
func MuxOpusPackets(packets [][]byte, rate int) ([]byte, error) {
	if !IsSupportedOpusRate(rate) {
		return nil, ghosterrors.NewInvalidInput("unsupported sample rate: %d", rate)
	}
	frameSamples := rate / 50
	if frameSamples*50 != rate {
		return nil, ghosterrors.NewInvalidInput("unsupported sample rate: %d", rate)
	}
	granuleStep := uint64(frameSamples) * uint64(48000/rate)

	var buf bytes.Buffer

	if err := writePage(&buf, pageHeaderTypeBeginningOfStream, 0, 0, [][]byte{buildOpusHead(rate)}); err != nil {
		return nil, err
	}
	if err := writePage(&buf, pageHeaderTypeContinuationOfStream, 0, 1, [][]byte{buildOpusTags()}); err != nil {
		return nil, err
	}

	var cumulative uint64
	seq := uint32(2)
	for i, pkt := range packets {
		if len(pkt) > maxSegmentsPerPage*maxSegmentSize {
			return nil, ghosterrors.NewInvalidInput("packet %d too large for a single Ogg page (%d bytes)", i, len(pkt))
		}
		cumulative += granuleStep
		granule := int64(cumulative) - OpusPreSkip
		if granule < 0 {
			granule = 0
		}
		headerType := uint8(pageHeaderTypeContinuationOfStream)
		if i == len(packets)-1 {
			headerType = pageHeaderTypeEndOfStream
		}
		if err := writePage(&buf, headerType, uint64(granule), seq, [][]byte{pkt}); err != nil {
			return nil, err
		}
		seq++
	}

	return buf.Bytes(), nil
}

func buildOpusHead(rate int) []byte {
	head := make([]byte, 19)
	copy(head[0:8], idPageSignature)
	head[8] = 1 // version
	head[9] = 1 // channel count
	binary.LittleEndian.PutUint16(head[10:12], uint16(OpusPreSkip))
	binary.LittleEndian.PutUint32(head[12:16], uint32(rate))
	binary.LittleEndian.PutUint16(head[16:18], 0) // output gain
	head[18] = 0                                   // channel mapping family
	return head
}

func buildOpusTags() []byte {
	vendor := "GhostType"
	buf := make([]byte, 0, 8+4+len(vendor)+4)
	buf = append(buf, commentPageSignature...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(vendor)))
	buf = append(buf, lenBuf...)
	buf = append(buf, vendor...)
	binary.LittleEndian.PutUint32(lenBuf, 0) // zero user comments
	buf = append(buf, lenBuf...)
	return buf
}

// writePage writes a single Ogg page containing exactly the given
// packets, each its own lacing run (groups of 255 plus a final value
// in [0,254]), followed by a CRC computed with the checksum field
// zeroed.
func writePage(w *bytes.Buffer, headerType uint8, granule uint64, seq uint32, packets [][]byte) error {
	var segmentTable []byte
	var payload bytes.Buffer
	for _, pkt := range packets {
		n := len(pkt)
		for n >= maxSegmentSize {
			segmentTable = append(segmentTable, maxSegmentSize)
			n -= maxSegmentSize
		}
		segmentTable = append(segmentTable, byte(n))
		payload.Write(pkt)
	}
	if len(segmentTable) > maxSegmentsPerPage {
		return ghosterrors.NewInvalidInput("packet requires more than %d lacing segments", maxSegmentsPerPage)
	}

	header := make([]byte, 27+len(segmentTable))
	copy(header[0:4], pageHeaderSignature)
	header[4] = 0 // stream structure version
	header[5] = headerType
	binary.LittleEndian.PutUint64(header[6:14], granule)
	binary.LittleEndian.PutUint32(header[14:18], 0) // serial number, single logical stream
	binary.LittleEndian.PutUint32(header[18:22], seq)
	binary.LittleEndian.PutUint32(header[22:26], 0) // CRC placeholder
	header[26] = byte(len(segmentTable))
	copy(header[27:], segmentTable)

	page := make([]byte, 0, len(header)+payload.Len())
	page = append(page, header...)
	page = append(page, payload.Bytes()...)

	crc := oggCRC(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)

	_, err := w.Write(page)
	return err
}
