// Copyright 2026 go-seq2seq Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package smoothing implements a label-smoothed KL-divergence loss.
//
// Instead of a one-hot target distribution, the loss compares model
// log-probabilities against a smoothed distribution that places
// 1-smoothing on the true label and spreads the remaining mass uniformly
// over every other vocabulary entry except a fixed set of ignored
// indices (padding tokens and the like), which receive exactly zero.
package smoothing

import (
	"fmt"
	stdmath "math"

	"github.com/ajroetker/go-highway/hwy"

	seq2seq "github.com/ajroetker/go-seq2seq"
)

// LabelSmoothing holds the precomputed smoothed-distribution template for
// one (smoothing, vocabSize, ignored set) configuration. It is immutable
// after New and safe for concurrent use; every call that needs a mutable
// distribution works on a fresh copy of the template.
type LabelSmoothing[T hwy.Floats] struct {
	confidence     T
	smoothingValue T
	logConfidence  T
	logSmoothing   T
	vocabSize      int
	ignored        map[int]struct{}
	template       []T // length vocabSize, read-only after New
}

// New builds a LabelSmoothing loss.
//
// smoothing must lie in (0, 1); confidence is 1-smoothing. The residual
// smoothing mass is divided over vocabSize - 1 - |ignored| entries, so
// the ignored set must leave at least one non-target entry to smooth
// over. Duplicate ignore indices are deduplicated; an out-of-range index
// is a configuration error.
func New[T hwy.Floats](smoothing float64, vocabSize int, ignoreIndices []int) (*LabelSmoothing[T], error) {
	if smoothing <= 0 || smoothing >= 1 {
		return nil, fmt.Errorf("%w: smoothing %v, want in (0, 1)", seq2seq.ErrConfig, smoothing)
	}
	if vocabSize < 2 {
		return nil, fmt.Errorf("%w: vocab size %d, want >= 2", seq2seq.ErrConfig, vocabSize)
	}
	ignored := make(map[int]struct{}, len(ignoreIndices))
	for _, idx := range ignoreIndices {
		if idx < 0 || idx >= vocabSize {
			return nil, fmt.Errorf("%w: ignore index %d out of range [0, %d)",
				seq2seq.ErrConfig, idx, vocabSize)
		}
		ignored[idx] = struct{}{}
	}
	denom := vocabSize - 1 - len(ignored)
	if denom <= 0 {
		return nil, fmt.Errorf("%w: %d ignored indices leave no entries to smooth over (vocab size %d)",
			seq2seq.ErrConfig, len(ignored), vocabSize)
	}

	confidence := 1 - smoothing
	smoothingValue := smoothing / float64(denom)
	template := make([]T, vocabSize)
	for i := range template {
		template[i] = T(smoothingValue)
	}
	for idx := range ignored {
		template[idx] = 0
	}

	return &LabelSmoothing[T]{
		confidence:     T(confidence),
		smoothingValue: T(smoothingValue),
		logConfidence:  T(stdmath.Log(confidence)),
		logSmoothing:   T(stdmath.Log(smoothingValue)),
		vocabSize:      vocabSize,
		ignored:        ignored,
		template:       template,
	}, nil
}

// Confidence returns the probability assigned to the true label.
func (ls *LabelSmoothing[T]) Confidence() T { return ls.confidence }

// SmoothingValue returns the probability assigned to each non-ignored,
// non-target vocabulary entry.
func (ls *LabelSmoothing[T]) SmoothingValue() T { return ls.smoothingValue }

// VocabSize returns the vocabulary size the loss was built for.
func (ls *LabelSmoothing[T]) VocabSize() int { return ls.vocabSize }

// TrueDistribution builds the smoothed target distribution for every
// target, one vocabSize-length row per entry, flattened row-major into
// a fresh slice of length len(targets)*vocabSize.
//
// Each row starts as a copy of the template and then receives confidence
// at the target index. The write is unconditional: targeting an ignored
// index silently yields a row that no longer sums to 1. Callers must
// never target an ignored index.
func (ls *LabelSmoothing[T]) TrueDistribution(targets []int) ([]T, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: empty target batch", seq2seq.ErrInvalidInput)
	}
	out := make([]T, len(targets)*ls.vocabSize)
	for i, tgt := range targets {
		if tgt < 0 || tgt >= ls.vocabSize {
			return nil, fmt.Errorf("%w: target %d at index %d out of range [0, %d)",
				seq2seq.ErrInvalidInput, tgt, i, ls.vocabSize)
		}
		row := out[i*ls.vocabSize : (i+1)*ls.vocabSize]
		copy(row, ls.template)
		row[tgt] = ls.confidence
	}
	return out, nil
}

// Loss computes the label-smoothed loss for every position.
//
//   - logProb:  [n, vocabSize] model log-probabilities, flattened
//     row-major (n is the product of the caller's leading dimensions,
//     e.g. batchSize or batchSize*seqLen)
//   - targets:  n true-label indices
//
// The per-position loss is the KL divergence between the smoothed target
// distribution p and the model distribution q, summed (not averaged)
// over the vocabulary axis:
//
//	loss[i] = sum_v p[v] * (log(p[v]) - logProb[i][v])
//
// with 0*log(0) terms contributing 0. logProb entries must be finite.
// Returns a slice of n losses.
func (ls *LabelSmoothing[T]) Loss(logProb []T, targets []int) ([]T, error) {
	n := len(targets)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty target batch", seq2seq.ErrInvalidInput)
	}
	if len(logProb) != n*ls.vocabSize {
		return nil, fmt.Errorf("%w: log-prob length %d, want %d (n=%d vocab=%d)",
			seq2seq.ErrInvalidInput, len(logProb), n*ls.vocabSize, n, ls.vocabSize)
	}
	trueDist, err := ls.TrueDistribution(targets)
	if err != nil {
		return nil, err
	}

	losses := make([]T, n)
	for i, tgt := range targets {
		row := trueDist[i*ls.vocabSize : (i+1)*ls.vocabSize]
		lp := logProb[i*ls.vocabSize : (i+1)*ls.vocabSize]

		// sum_v p[v]*log(p[v]) has only two distinct non-zero terms: the
		// confidence entry and the uniform smoothing entries.
		nSmooth := ls.vocabSize - len(ls.ignored) - 1
		if _, ok := ls.ignored[tgt]; ok {
			// The scatter overwrote a zero entry, so no smoothing entry
			// was displaced.
			nSmooth = ls.vocabSize - len(ls.ignored)
		}
		ent := ls.confidence*ls.logConfidence +
			T(nSmooth)*ls.smoothingValue*ls.logSmoothing

		losses[i] = ent - dot(row, lp)
	}
	return losses, nil
}

// dot computes sum_i a[i]*b[i] with vector accumulation and a scalar
// tail.
func dot[T hwy.Floats](a, b []T) T {
	lanes := hwy.MaxLanes[T]()
	acc := hwy.Zero[T]()
	i := 0
	for ; i+lanes <= len(a); i += lanes {
		acc = hwy.MulAdd(hwy.Load(a[i:]), hwy.Load(b[i:]), acc)
	}
	sum := hwy.ReduceSum(acc)
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}
