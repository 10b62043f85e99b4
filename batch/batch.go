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

// Package batch prepares batches of token-id sequences for the numeric
// core: right-padding to a rectangle, time-major transposition, and
// boundary-symbol insertion. Vocabulary mapping happens upstream; these
// functions operate on already-mapped ids.
package batch

import (
	"fmt"

	seq2seq "github.com/ajroetker/go-seq2seq"
)

// Lengths returns the length of every sequence in the batch, in batch
// order. These are the per-example lengths consumed by mask.PaddingMask
// and mask.ValidMask.
func Lengths(seqs [][]int) ([]int, error) {
	if err := check(seqs); err != nil {
		return nil, err
	}
	lengths := make([]int, len(seqs))
	for i, s := range seqs {
		lengths[i] = len(s)
	}
	return lengths, nil
}

// Pad right-pads every sequence with pad up to the longest length in the
// batch, returning a fresh rectangular (batchSize, maxLen) batch.
func Pad(seqs [][]int, pad int) ([][]int, error) {
	if err := check(seqs); err != nil {
		return nil, err
	}
	maxLen := maxLength(seqs)
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, maxLen)
		copy(row, s)
		for j := len(s); j < maxLen; j++ {
			row[j] = pad
		}
		out[i] = row
	}
	return out, nil
}

// Transpose converts a batch of sequences into time-major layout: the
// result has maxLen rows of batchSize ids, with row t holding the t-th
// token of every sequence and pad where a sequence has ended.
//
// Time-major layout is what a step-by-step decoder consumes: each row is
// one timestep across the whole batch.
func Transpose(seqs [][]int, pad int) ([][]int, error) {
	if err := check(seqs); err != nil {
		return nil, err
	}
	maxLen := maxLength(seqs)
	out := make([][]int, maxLen)
	for t := range maxLen {
		row := make([]int, len(seqs))
		for k, s := range seqs {
			if t < len(s) {
				row[k] = s[t]
			} else {
				row[k] = pad
			}
		}
		out[t] = row
	}
	return out, nil
}

// WithBoundaries returns a copy of the batch with bos prepended and eos
// appended to every sequence.
func WithBoundaries(seqs [][]int, bos, eos int) [][]int {
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, 0, len(s)+2)
		row = append(row, bos)
		row = append(row, s...)
		row = append(row, eos)
		out[i] = row
	}
	return out
}

func check(seqs [][]int) error {
	if len(seqs) == 0 {
		return fmt.Errorf("%w: empty batch", seq2seq.ErrInvalidInput)
	}
	for i, s := range seqs {
		if len(s) == 0 {
			return fmt.Errorf("%w: empty sequence at index %d", seq2seq.ErrInvalidInput, i)
		}
	}
	return nil
}

func maxLength(seqs [][]int) int {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	return maxLen
}
