// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package ctc turns raw ONNX output tensors into text: blank/repeat
// collapsing, detokenization, and the fallback previews used when a
// model has no vocabulary, per spec §4.6.
package ctc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ghosttype/ghosttype/modelio"
)

const maxPreviewIDs = 64

// IntOutput is one integer-dtype ONNX output tensor.
type IntOutput struct {
	Shape []int64
	Data  []int64
}

// FloatOutput is one float-dtype ONNX output tensor.
type FloatOutput struct {
	Shape []int64
	Data  []float32
}

// RawOutputs is the ONNX-independent view of a model's outputs that
// Decode works from. Strings is populated only by runtimes exposing
// string-typed output tensors; the onnxruntime_go binding this module
// uses does not, so inference.Engine never fills it, but the field and
// the short-circuit it drives are kept for runtimes that do.
type RawOutputs struct {
	Strings      []string
	IntOutputs   []IntOutput
	FloatOutputs []FloatOutput
}

// Decode implements the original _decode_outputs/_decode_token_ids
// pipeline: a textual output short-circuits everything else; otherwise
// token ids are extracted (argmax for float logits), leading frames
// are dropped, blanks/repeats collapsed, and the result is
// detokenized against the vocabulary — or, absent one, rendered as a
// bracketed id preview.
func Decode(outputs RawOutputs, profile *modelio.Profile) string {
	for _, s := range outputs.Strings {
		if s != "" {
			return s
		}
	}

	ids, ok := extractTokenIDs(outputs, profile.DropLeadingFrames)
	if !ok {
		return "[asr_output_unhandled]"
	}

	if !profile.HasVocabulary {
		return previewIDs(ids)
	}
	return detokenize(ids, profile)
}

func extractTokenIDs(outputs RawOutputs, dropFirst int) ([]int64, bool) {
	for _, out := range outputs.IntOutputs {
		switch len(out.Shape) {
		case 2:
			if out.Shape[0] < 1 {
				continue
			}
			cols := int(out.Shape[1])
			if cols > len(out.Data) {
				cols = len(out.Data)
			}
			return dropLeading(append([]int64(nil), out.Data[:cols]...), dropFirst), true
		case 1:
			return dropLeading(append([]int64(nil), out.Data...), dropFirst), true
		}
	}

	for _, out := range outputs.FloatOutputs {
		if len(out.Shape) != 3 || out.Shape[0] < 1 {
			continue
		}
		timeSteps := int(out.Shape[1])
		vocab := int(out.Shape[2])
		ids := make([]int64, timeSteps)
		for t := 0; t < timeSteps; t++ {
			base := t * vocab
			best, bestVal := 0, out.Data[base]
			for v := 1; v < vocab; v++ {
				if out.Data[base+v] > bestVal {
					bestVal = out.Data[base+v]
					best = v
				}
			}
			ids[t] = int64(best)
		}
		return dropLeading(ids, dropFirst), true
	}

	return nil, false
}

func dropLeading(ids []int64, n int) []int64 {
	if n <= 0 {
		return ids
	}
	if n >= len(ids) {
		return nil
	}
	return ids[n:]
}

// detokenize collapses repeats/blanks (blank id from profile.CtcBlankID),
// skips special tokens, joins, and normalizes the sub-word glue
// character (U+2581) and literal "<space>" markers into spaces.
func detokenize(ids []int64, profile *modelio.Profile) string {
	blank := int64(profile.CtcBlankID)
	var tokens []string
	var prev *int64

	for _, id := range ids {
		if id == blank {
			v := id
			prev = &v
			continue
		}
		if prev != nil && id == *prev {
			continue
		}
		v := id
		prev = &v

		if id < 0 || int(id) >= len(profile.Vocabulary) {
			continue
		}
		tok := profile.Vocabulary[id]
		if profile.SpecialTokens[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}

	text := strings.Join(tokens, "")
	text = strings.ReplaceAll(text, "▁", " ")
	text = strings.ReplaceAll(text, "<space>", " ")
	return strings.Join(strings.Fields(text), " ")
}

func previewIDs(ids []int64) string {
	n := len(ids)
	shown := ids
	suffix := ""
	if n > maxPreviewIDs {
		shown = ids[:maxPreviewIDs]
		suffix = "..."
	}

	parts := make([]string, len(shown))
	for i, id := range shown {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("[token_ids=[%s]%s]", strings.Join(parts, ", "), suffix)
}
