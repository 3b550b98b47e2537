// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package modelio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTokenLinesOneTokenPerLine(t *testing.T) {
	out := parseTokenLines([]string{"<blank>", "a", "b"})
	assert.Equal(t, []string{"<blank>", "a", "b"}, out)
}

func TestParseTokenLinesPairFormSparseIDs(t *testing.T) {
	out := parseTokenLines([]string{"<blank> 0", "hello 3"})
	assert.Equal(t, []string{"<blank>", "", "", "hello"}, out)
}

func TestParseTokenLinesRoundTripsThroughSerializeTokenPairs(t *testing.T) {
	vocab := []string{"<blank>", "", "hello", "world"}
	serialized := SerializeTokenPairs(vocab)

	lines := []string{}
	start := 0
	for i, r := range serialized {
		if r == '\n' {
			if i > start {
				lines = append(lines, serialized[start:i])
			}
			start = i + 1
		}
	}

	recovered := parseTokenLines(lines)
	assert.Equal(t, vocab, recovered)
}

func TestDecodeTokenListValueJSONArray(t *testing.T) {
	out, err := decodeTokenListValue(`["<blank>", "a", "b"]`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"<blank>", "a", "b"}, out)
}

func TestDecodeTokenListValueNewlineSeparated(t *testing.T) {
	out, err := decodeTokenListValue("<blank>\na\nb")
	assert.NoError(t, err)
	assert.Equal(t, []string{"<blank>", "a", "b"}, out)
}
