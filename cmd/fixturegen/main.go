// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
)

func main() {
	input := flag.String("in", "", "input fixture file (.wav, .flac, .mp3, .ogg)")
	output := flag.String("out", "", "output file: a length-prefixed sequence of Opus packets")
	flag.Parse()

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: fixturegen -in <fixture> -out <packets.bin>")
		os.Exit(2)
	}

	pcm, err := decodeFixture(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode failed: %v\n", err)
		os.Exit(1)
	}

	packets, err := encodeOpusFrames(pcm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		os.Exit(1)
	}

	if err := writePacketFile(*output, packets); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d Opus packets to %s\n", len(packets), *output)
}

// writePacketFile serializes packets as a sequence of
// little-endian uint32-length-prefixed byte blobs, one per packet.
func writePacketFile(path string, packets [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, pkt := range packets {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(pkt)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := f.Write(pkt); err != nil {
			return err
		}
	}
	return nil
}
