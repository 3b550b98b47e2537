// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package feature implements the log-mel filterbank front-end used by
// the CTC model variant: framing, windowing, FFT, mel filterbank,
// log-compression, LFR stacking, and CMVN, per spec §4.3.
package feature

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/ghosttype/ghosttype/modelio"
)

const (
	nFFT       = 512
	logFloor   = 1e-10
	frameMs    = 25
	shiftMs    = 10
)

// Matrix is a row-major T x feature_dim matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float32
}

func newMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

func (m Matrix) At(r, c int) float32    { return m.Data[r*m.Cols+c] }
func (m Matrix) Set(r, c int, v float32) { m.Data[r*m.Cols+c] = v }
func (m Matrix) Row(r int) []float32    { return m.Data[r*m.Cols : (r+1)*m.Cols] }

// S16ToUnscaledFloat32 casts s16 samples to float32 with no scaling.
// This is the convention the CTC model's CMVN vectors were fit on —
// see spec §9 open questions; never divide by 32768 here.
func S16ToUnscaledFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return out
}

// LogMelFbank runs the full §4.3 pipeline: framing through CMVN,
// returning the feature_dim-wide LFR-stacked, CMVN-normalized matrix
// and its row count T'.
func LogMelFbank(pcm []int16, sampleRate int, profile *modelio.Profile) (Matrix, int) {
	if len(pcm) == 0 {
		return newMatrix(0, profile.FeatureDim), 0
	}

	samples := S16ToUnscaledFloat32(pcm)
	frameLength := int(math.Round(float64(sampleRate) * frameMs / 1000))
	frameShift := int(math.Round(float64(sampleRate) * shiftMs / 1000))

	frames := frameWaveform(samples, frameLength, frameShift)
	window := hammingWindow(frameLength)
	fft := fourier.NewFFT(nFFT)
	filterbank := melFilterbank(profile.NMels, nFFT, sampleRate)

	logMel := newMatrix(len(frames), profile.NMels)
	for t, frame := range frames {
		windowed := make([]float64, nFFT)
		for i := 0; i < len(frame) && i < frameLength; i++ {
			windowed[i] = float64(frame[i]) * window[i]
		}
		coeffs := fft.Coefficients(nil, windowed)
		power := make([]float64, len(coeffs))
		for i, c := range coeffs {
			power[i] = real(c)*real(c) + imag(c)*imag(c)
		}
		for m := 0; m < profile.NMels; m++ {
			var energy float64
			for k, w := range filterbank[m] {
				energy += power[k] * w
			}
			if energy < logFloor {
				energy = logFloor
			}
			logMel.Set(t, m, float32(math.Log(energy)))
		}
	}

	lfr := applyLFR(logMel, profile.LfrWindow, profile.LfrShift)
	return applyCMVN(lfr, profile.CmvnNegMean, profile.CmvnInvStddev), lfr.Rows
}

// frameWaveform splits samples into overlapping frames of frameLength,
// stepping by frameShift, zero-padding the final frame so it always
// has frameLength samples.
func frameWaveform(samples []float32, frameLength, frameShift int) [][]float32 {
	if len(samples) == 0 {
		return nil
	}
	numFrames := (len(samples)-frameLength)/frameShift + 1
	if numFrames < 1 {
		numFrames = 1
	}
	// Include a final partial frame if there are leftover samples.
	if (numFrames-1)*frameShift+frameLength < len(samples) {
		numFrames++
	}

	frames := make([][]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * frameShift
		frame := make([]float32, frameLength)
		for j := 0; j < frameLength; j++ {
			if start+j < len(samples) {
				frame[j] = samples[start+j]
			}
		}
		frames[i] = frame
	}
	return frames
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 1127 * math.Log1p(hz/700)
}

// melFilterbank returns nMels triangular filters over the power
// spectrum of n_fft/2+1 bins, HTK-mel spaced between 0 and
// sampleRate/2.
func melFilterbank(nMels, nfft, sampleRate int) [][]float64 {
	nFreq := nfft/2 + 1
	fMin, fMax := 0.0, float64(sampleRate)/2
	melMin, melMax := hzToMel(fMin), hzToMel(fMax)

	melPoints := make([]float64, nMels+2)
	for i := range melPoints {
		melPoints[i] = melMin + (melMax-melMin)*float64(i)/float64(nMels+1)
	}

	binEdge := func(mel float64) int {
		hz := 700 * (math.Exp(mel/1127) - 1)
		edge := int(math.Floor(float64(nfft+1) * hz / float64(sampleRate)))
		if edge < 0 {
			edge = 0
		}
		if edge > nFreq-1 {
			edge = nFreq - 1
		}
		return edge
	}

	bins := make([]int, nMels+2)
	for i, m := range melPoints {
		bins[i] = binEdge(m)
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filter := make([]float64, nFreq)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		if center == left || right == center {
			filters[m] = filter
			continue
		}
		for k := left; k < center; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		filters[m] = filter
	}
	return filters
}

// applyLFR stacks windows of m rows stepping by n, padding the final
// partial window by repeating its last row.
func applyLFR(x Matrix, m, n int) Matrix {
	if x.Rows == 0 {
		return newMatrix(0, x.Cols*m)
	}
	outRows := (x.Rows + n - 1) / n
	out := newMatrix(outRows, x.Cols*m)

	for t := 0; t < outRows; t++ {
		start := t * n
		for i := 0; i < m; i++ {
			srcRow := start + i
			if srcRow >= x.Rows {
				srcRow = x.Rows - 1
			}
			copy(out.Row(t)[i*x.Cols:(i+1)*x.Cols], x.Row(srcRow))
		}
	}
	return out
}

func applyCMVN(x Matrix, negMean, invStddev []float32) Matrix {
	out := newMatrix(x.Rows, x.Cols)
	for t := 0; t < x.Rows; t++ {
		for c := 0; c < x.Cols; c++ {
			out.Set(t, c, (x.At(t, c)+negMean[c])*invStddev[c])
		}
	}
	return out
}
