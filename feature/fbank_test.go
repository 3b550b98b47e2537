// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghosttype/ghosttype/modelio"
)

func ctcProfile(t *testing.T) *modelio.Profile {
	t.Helper()
	negMean := make([]float32, 7*80)
	invStd := make([]float32, 7*80)
	for i := range invStd {
		invStd[i] = 1
	}
	return &modelio.Profile{
		Mode:          modelio.CtcWithFeatures,
		FeatureDim:    7 * 80,
		NMels:         80,
		LfrWindow:     7,
		LfrShift:      6,
		CmvnNegMean:   negMean,
		CmvnInvStddev: invStd,
	}
}

func TestLogMelFbankEmptyPCMYieldsZeroRowMatrix(t *testing.T) {
	profile := ctcProfile(t)
	m, rows := LogMelFbank(nil, 16000, profile)
	assert.Equal(t, 0, rows)
	assert.Equal(t, 0, m.Rows)
	assert.Equal(t, profile.FeatureDim, m.Cols)
}

func TestLogMelFbankOutputRowsMatchCeilOverLfrShift(t *testing.T) {
	profile := ctcProfile(t)
	sampleRate := 16000
	// One second of silence: 16000 samples -> 99 25ms/10ms frames
	// (98 full frames plus one zero-padded tail frame).
	pcm := make([]int16, sampleRate)

	m, rows := LogMelFbank(pcm, sampleRate, profile)

	frameLength := sampleRate * frameMs / 1000
	frameShift := sampleRate * shiftMs / 1000
	numFrames := (len(pcm)-frameLength)/frameShift + 1
	if (numFrames-1)*frameShift+frameLength < len(pcm) {
		numFrames++
	}
	expectedRows := (numFrames + profile.LfrShift - 1) / profile.LfrShift

	assert.Equal(t, expectedRows, rows)
	assert.Equal(t, expectedRows, m.Rows)
	assert.Equal(t, profile.FeatureDim, m.Cols)
}

func TestFeatureDimDivisibleByLfrWindow(t *testing.T) {
	profile := ctcProfile(t)
	assert.Zero(t, profile.FeatureDim%profile.LfrWindow)
}

func TestMelFilterbankRowsSpanFullSpectrum(t *testing.T) {
	filters := melFilterbank(80, nFFT, 16000)
	require.Len(t, filters, 80)
	for _, f := range filters {
		assert.Len(t, f, nFFT/2+1)
	}
}

func TestMelFilterbankDegenerateRowsAreAllZero(t *testing.T) {
	filters := melFilterbank(80, nFFT, 16000)
	require.Len(t, filters, 80)

	zero := make([]float64, nFFT/2+1)
	for _, m := range []int{0, 2, 3} {
		assert.Equal(t, zero, filters[m], "mel bin %d has left==center or center==right and must contribute zero", m)
	}
}

func TestApplyLFRPadsFinalWindowByRepeatingLastRow(t *testing.T) {
	x := newMatrix(3, 2)
	x.Set(0, 0, 1)
	x.Set(0, 1, 1)
	x.Set(1, 0, 2)
	x.Set(1, 1, 2)
	x.Set(2, 0, 3)
	x.Set(2, 1, 3)

	out := applyLFR(x, 4, 3)

	require.Equal(t, 1, out.Rows)
	// window covers rows 0..3, but only 0..2 exist, so row 3 repeats row 2.
	assert.Equal(t, []float32{1, 1, 2, 2, 3, 3, 3, 3}, out.Row(0))
}

func TestApplyCMVNAppliesNegMeanAndInvStddev(t *testing.T) {
	x := newMatrix(1, 2)
	x.Set(0, 0, 5)
	x.Set(0, 1, 10)

	out := applyCMVN(x, []float32{-1, -2}, []float32{2, 0.5})

	assert.InDelta(t, float32(8), out.At(0, 0), 1e-6)
	assert.InDelta(t, float32(4), out.At(0, 1), 1e-6)
}

func TestS16ToUnscaledFloat32DoesNotScale(t *testing.T) {
	out := S16ToUnscaledFloat32([]int16{32767, -32768, 0})
	assert.Equal(t, []float32{32767, -32768, 0}, out)
}
