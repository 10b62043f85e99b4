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

// Package mask builds padding masks for right-padded batches of
// variable-length sequences.
//
// Two constructors with fixed, named polarities are provided instead of
// one constructor with an inversion flag: PaddingMask (1 marks padding,
// the polarity the attention engine consumes) and ValidMask (1 marks
// valid positions, the polarity most encoder front-ends emit).
package mask

import (
	"fmt"

	seq2seq "github.com/ajroetker/go-seq2seq"
)

// Mask flags valid versus padding positions in a right-padded batch.
//
// Data is row-major with Rows equal to the batch size and Cols equal to
// the longest sequence length in the batch. A Mask is never mutated
// after construction.
type Mask struct {
	Data []uint8
	Rows int
	Cols int
}

// PaddingMask builds a mask where 1 marks padding positions: row i holds
// 0 at positions [0, lengths[i]) and 1 at [lengths[i], max(lengths)).
//
// This is the polarity expected by attention.DotProduct, where 1 means
// "suppress this position".
func PaddingMask(lengths []int) (*Mask, error) {
	m, err := zeroMask(lengths)
	if err != nil {
		return nil, err
	}
	for i, n := range lengths {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		for j := n; j < m.Cols; j++ {
			row[j] = 1
		}
	}
	return m, nil
}

// ValidMask builds a mask where 1 marks valid positions: row i holds 1
// at positions [0, lengths[i]) and 0 at [lengths[i], max(lengths)).
func ValidMask(lengths []int) (*Mask, error) {
	m, err := zeroMask(lengths)
	if err != nil {
		return nil, err
	}
	for i, n := range lengths {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		for j := range n {
			row[j] = 1
		}
	}
	return m, nil
}

// At reports the mask byte at row i, column j.
func (m *Mask) At(i, j int) uint8 {
	return m.Data[i*m.Cols+j]
}

// Row returns row i of the mask. The returned slice aliases the mask's
// backing array and must not be modified.
func (m *Mask) Row(i int) []uint8 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// zeroMask validates lengths and allocates an all-zero mask sized
// (len(lengths), max(lengths)).
func zeroMask(lengths []int) (*Mask, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("%w: empty length batch", seq2seq.ErrInvalidInput)
	}
	maxLen := 0
	for i, n := range lengths {
		if n <= 0 {
			return nil, fmt.Errorf("%w: sequence length %d at index %d, want > 0",
				seq2seq.ErrInvalidInput, n, i)
		}
		if n > maxLen {
			maxLen = n
		}
	}
	return &Mask{
		Data: make([]uint8, len(lengths)*maxLen),
		Rows: len(lengths),
		Cols: maxLen,
	}, nil
}
