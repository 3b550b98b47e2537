// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package modelio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var metadataVocabKeys = []string{"token_list", "tokens", "vocab", "char_list"}

// loadVocabulary fills p.Vocabulary following the order in spec §4.4:
// model metadata first, then sibling files, then none.
func loadVocabulary(p *Profile, meta map[string]string, modelPath string) error {
	for _, key := range metadataVocabKeys {
		if raw, ok := meta[key]; ok && strings.TrimSpace(raw) != "" {
			tokens, err := decodeTokenListValue(raw)
			if err != nil {
				return fmt.Errorf("parsing metadata vocabulary key %q: %w", key, err)
			}
			p.Vocabulary = tokens
			p.HasVocabulary = true
			return nil
		}
	}

	stem := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))
	dir := filepath.Dir(modelPath)
	candidates := []string{
		filepath.Join(dir, stem+".tokens.txt"),
		filepath.Join(dir, stem+".txt"),
		filepath.Join(dir, "tokens.txt"),
		filepath.Join(dir, "token_list.txt"),
		filepath.Join(dir, "vocab.txt"),
	}
	for _, path := range candidates {
		tokens, ok, err := parseTokenFile(path)
		if err != nil {
			return fmt.Errorf("parsing vocabulary file %s: %w", path, err)
		}
		if ok {
			p.Vocabulary = tokens
			p.HasVocabulary = true
			return nil
		}
	}

	p.Vocabulary = nil
	p.HasVocabulary = false
	return nil
}

// parseTokenFile reads a vocabulary file that is either one token per
// line, or "<token> <id>" pairs. Pair form produces a dense array sized
// to max_id+1 with unspecified indices left as "".
func parseTokenFile(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	if len(lines) == 0 {
		return nil, false, nil
	}

	return parseTokenLines(lines), true, nil
}

// parseTokenLines is the left inverse of SerializeTokenPairs (spec §8
// round-trip property 7).
func parseTokenLines(lines []string) []string {
	isPairForm := false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			if _, err := strconv.Atoi(fields[1]); err == nil {
				isPairForm = true
			}
		}
		break
	}

	if !isPairForm {
		tokens := make([]string, len(lines))
		copy(tokens, lines)
		return tokens
	}

	maxID := -1
	type pair struct {
		tok string
		id  int
	}
	pairs := make([]pair, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		pairs = append(pairs, pair{tok: fields[0], id: id})
		if id > maxID {
			maxID = id
		}
	}

	out := make([]string, maxID+1)
	for _, p := range pairs {
		out[p.id] = p.tok
	}
	return out
}

// SerializeTokenPairs writes vocabulary as "<tok> <i>" lines, the
// inverse operation parseTokenLines recovers from.
func SerializeTokenPairs(vocabulary []string) string {
	var b strings.Builder
	for i, tok := range vocabulary {
		if tok == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %d\n", tok, i)
	}
	return b.String()
}
