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

// Package attention implements masked batched dot-product attention over
// encoder states.
//
// Each batch element attends with a single query vector over its
// sequence of encoder positions. Padding positions are suppressed by
// writing -Inf into the raw scores before the softmax, which zeroes
// their weight without distorting the distribution over the remaining
// positions.
package attention

import (
	"fmt"
	stdmath "math"

	"github.com/ajroetker/go-highway/hwy"
	"golang.org/x/sync/errgroup"

	seq2seq "github.com/ajroetker/go-seq2seq"
	"github.com/ajroetker/go-seq2seq/mask"
)

// DotProduct computes batched dot-product attention.
//
//   - query:   [batchSize, hiddenSize] (one query vector per batch element)
//   - keys:    [batchSize, seqLen, hiddenSize] (linear-projected encodings
//     used as attention keys)
//   - values:  [batchSize, seqLen, valueDim] (raw encodings combined into
//     the context vector)
//   - m:       optional padding mask, nil for no masking. Polarity is
//     padding-has-value: a 1 at (b, t) suppresses position t of batch
//     element b. Shape must be (batchSize, seqLen).
//
// Returns the context vectors ctx [batchSize, valueDim] and the attention
// weights [batchSize, seqLen]. Weight rows sum to 1 over unmasked
// positions; masked positions hold exactly 0.
//
// Every row must keep at least one unmasked position: a fully-masked row
// is a softmax over all -Inf scores and fails with ErrNumeric.
func DotProduct[T hwy.Floats](
	query, keys, values []T, m *mask.Mask,
	batchSize, seqLen, hiddenSize, valueDim int,
) (ctx, weights []T, err error) {
	if err := checkShapes(len(query), len(keys), len(values), m,
		batchSize, seqLen, hiddenSize, valueDim); err != nil {
		return nil, nil, err
	}

	ctx = make([]T, batchSize*valueDim)
	weights = make([]T, batchSize*seqLen)
	for b := range batchSize {
		if err := attendOne(query, keys, values, m, ctx, weights,
			b, seqLen, hiddenSize, valueDim); err != nil {
			return nil, nil, err
		}
	}
	return ctx, weights, nil
}

// DotProductParallel is DotProduct with the batch dimension fanned out
// across goroutines. Batch elements are independent and write to
// disjoint regions of the output buffers; if any element fails, the
// first error is returned once all elements have finished.
func DotProductParallel[T hwy.Floats](
	query, keys, values []T, m *mask.Mask,
	batchSize, seqLen, hiddenSize, valueDim int,
) (ctx, weights []T, err error) {
	if err := checkShapes(len(query), len(keys), len(values), m,
		batchSize, seqLen, hiddenSize, valueDim); err != nil {
		return nil, nil, err
	}

	ctx = make([]T, batchSize*valueDim)
	weights = make([]T, batchSize*seqLen)
	var g errgroup.Group
	for b := range batchSize {
		g.Go(func() error {
			return attendOne(query, keys, values, m, ctx, weights,
				b, seqLen, hiddenSize, valueDim)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ctx, weights, nil
}

// attendOne runs the full attention pipeline for batch element b:
// scores, masking, softmax, and the weighted sum over values. The
// weights row doubles as the score scratch buffer.
func attendOne[T hwy.Floats](
	query, keys, values []T, m *mask.Mask,
	ctx, weights []T,
	b, seqLen, hiddenSize, valueDim int,
) error {
	lanes := hwy.MaxLanes[T]()
	q := query[b*hiddenSize : (b+1)*hiddenSize]
	scores := weights[b*seqLen : (b+1)*seqLen]

	// Step 1: scores[t] = q . keys[b,t,:], a matrix-vector product
	// against the key block of this batch element. 4x unroll across
	// seqLen shares each query vector load across 4 key rows.
	kBase := b * seqLen * hiddenSize
	t := 0
	for ; t+4 <= seqLen; t += 4 {
		acc0 := hwy.Zero[T]()
		acc1 := hwy.Zero[T]()
		acc2 := hwy.Zero[T]()
		acc3 := hwy.Zero[T]()
		kOff0 := kBase + t*hiddenSize
		kOff1 := kBase + (t+1)*hiddenSize
		kOff2 := kBase + (t+2)*hiddenSize
		kOff3 := kBase + (t+3)*hiddenSize
		p := 0
		for ; p+lanes <= hiddenSize; p += lanes {
			vQ := hwy.Load(q[p:])
			acc0 = hwy.MulAdd(vQ, hwy.Load(keys[kOff0+p:]), acc0)
			acc1 = hwy.MulAdd(vQ, hwy.Load(keys[kOff1+p:]), acc1)
			acc2 = hwy.MulAdd(vQ, hwy.Load(keys[kOff2+p:]), acc2)
			acc3 = hwy.MulAdd(vQ, hwy.Load(keys[kOff3+p:]), acc3)
		}
		s0 := hwy.ReduceSum(acc0)
		s1 := hwy.ReduceSum(acc1)
		s2 := hwy.ReduceSum(acc2)
		s3 := hwy.ReduceSum(acc3)
		for ; p < hiddenSize; p++ {
			qp := q[p]
			s0 += qp * keys[kOff0+p]
			s1 += qp * keys[kOff1+p]
			s2 += qp * keys[kOff2+p]
			s3 += qp * keys[kOff3+p]
		}
		scores[t] = s0
		scores[t+1] = s1
		scores[t+2] = s2
		scores[t+3] = s3
	}
	for ; t < seqLen; t++ {
		kOff := kBase + t*hiddenSize
		acc := hwy.Zero[T]()
		p := 0
		for ; p+lanes <= hiddenSize; p += lanes {
			acc = hwy.MulAdd(hwy.Load(q[p:]), hwy.Load(keys[kOff+p:]), acc)
		}
		sum := hwy.ReduceSum(acc)
		for ; p < hiddenSize; p++ {
			sum += q[p] * keys[kOff+p]
		}
		scores[t] = sum
	}

	// Step 2: suppress masked positions before normalization.
	if m != nil {
		negInf := T(stdmath.Inf(-1))
		row := m.Row(b)
		for t := range seqLen {
			if row[t] != 0 {
				scores[t] = negInf
			}
		}
	}

	// Step 3: row softmax.
	if err := softmaxInPlace(scores); err != nil {
		return fmt.Errorf("batch element %d: %w", b, err)
	}

	// Step 4: ctx[b,:] = sum_t scores[t] * values[b,t,:], accumulated in
	// vector-register strips across valueDim.
	vBase := b * seqLen * valueDim
	out := ctx[b*valueDim : (b+1)*valueDim]
	d := 0
	for ; d+lanes <= valueDim; d += lanes {
		acc := hwy.Zero[T]()
		for t := range seqLen {
			vS := hwy.Set(scores[t])
			acc = hwy.MulAdd(vS, hwy.Load(values[vBase+t*valueDim+d:]), acc)
		}
		hwy.Store(acc, out[d:])
	}
	for ; d < valueDim; d++ {
		var sum T
		for t := range seqLen {
			sum += scores[t] * values[vBase+t*valueDim+d]
		}
		out[d] = sum
	}
	return nil
}

// softmaxInPlace normalizes row with a max-subtracted softmax.
//
// The exponential pass is scalar: masked entries are exactly -Inf and
// must come out as exactly 0, which stdmath.Exp guarantees and the
// vectorized polynomial exp does not. The normalization pass is
// vectorized.
func softmaxInPlace[T hwy.Floats](row []T) error {
	maxVal := row[0]
	for _, s := range row[1:] {
		if s > maxVal {
			maxVal = s
		}
	}
	// A fully-masked row has no finite score and would normalize to NaN.
	if stdmath.IsInf(float64(maxVal), -1) {
		return fmt.Errorf("%w: softmax over fully-masked row", seq2seq.ErrNumeric)
	}

	var expSum T
	for t, s := range row {
		val := T(stdmath.Exp(float64(s - maxVal)))
		row[t] = val
		expSum += val
	}

	lanes := hwy.MaxLanes[T]()
	invSum := T(1.0) / expSum
	vInvSum := hwy.Set(invSum)
	t := 0
	for ; t+lanes <= len(row); t += lanes {
		hwy.Store(hwy.Mul(hwy.Load(row[t:]), vInvSum), row[t:])
	}
	for ; t < len(row); t++ {
		row[t] = row[t] * invSum
	}
	return nil
}

// checkShapes validates the dimension arguments against the slice
// lengths and the optional mask.
func checkShapes(
	queryLen, keysLen, valuesLen int, m *mask.Mask,
	batchSize, seqLen, hiddenSize, valueDim int,
) error {
	if batchSize <= 0 || seqLen <= 0 || hiddenSize <= 0 || valueDim <= 0 {
		return fmt.Errorf("%w: dims batch=%d seq=%d hidden=%d value=%d, want all > 0",
			seq2seq.ErrInvalidInput, batchSize, seqLen, hiddenSize, valueDim)
	}
	if queryLen != batchSize*hiddenSize {
		return fmt.Errorf("%w: query length %d, want %d (batch=%d hidden=%d)",
			seq2seq.ErrInvalidInput, queryLen, batchSize*hiddenSize, batchSize, hiddenSize)
	}
	if keysLen != batchSize*seqLen*hiddenSize {
		return fmt.Errorf("%w: keys length %d, want %d (batch=%d seq=%d hidden=%d)",
			seq2seq.ErrInvalidInput, keysLen, batchSize*seqLen*hiddenSize, batchSize, seqLen, hiddenSize)
	}
	if valuesLen != batchSize*seqLen*valueDim {
		return fmt.Errorf("%w: values length %d, want %d (batch=%d seq=%d value=%d)",
			seq2seq.ErrInvalidInput, valuesLen, batchSize*seqLen*valueDim, batchSize, seqLen, valueDim)
	}
	if m != nil {
		if m.Rows != batchSize || m.Cols != seqLen {
			return fmt.Errorf("%w: mask shape (%d, %d), want (%d, %d)",
				seq2seq.ErrInvalidInput, m.Rows, m.Cols, batchSize, seqLen)
		}
		if len(m.Data) != batchSize*seqLen {
			return fmt.Errorf("%w: mask data length %d, want %d",
				seq2seq.ErrInvalidInput, len(m.Data), batchSize*seqLen)
		}
	}
	return nil
}
