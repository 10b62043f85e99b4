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

// Package seq2seq provides numeric building blocks for sequence-to-sequence
// models operating on variable-length batches.
//
// The building blocks are split across focused subpackages:
//
//   - mask: padding masks built from per-example sequence lengths
//   - attention: masked batched dot-product attention over encoder states
//   - smoothing: label-smoothed KL-divergence loss
//   - batch: right-padding and time-major transposition of id batches
//   - initializer: uniform / Glorot / Kaiming parameter initializers
//
// All tensor arguments are flat row-major slices of a float type
// constrained by hwy.Floats, with dimensions passed explicitly. The
// components are pure functions (or immutable after construction) and are
// safe for concurrent use on independent batches.
package seq2seq

import "errors"

// Sentinel errors for the failure modes shared by all subpackages.
// Detection sites wrap these with fmt.Errorf and %w; callers match with
// errors.Is. None of these conditions are retried or recovered
// internally: a malformed batch is a programming error in the caller,
// not a transient condition.
var (
	// ErrInvalidInput reports a malformed argument: an empty batch, a
	// non-positive sequence length, a slice whose length disagrees with
	// the stated dimensions, or mismatched leading dimensions between a
	// log-probability tensor and its targets.
	ErrInvalidInput = errors.New("seq2seq: invalid input")

	// ErrConfig reports a construction-time invariant violation, such as
	// a label-smoothing setup whose ignored-index set leaves no
	// vocabulary entries to smooth over.
	ErrConfig = errors.New("seq2seq: invalid configuration")

	// ErrNumeric reports an arithmetic failure, such as an attention row
	// with every position masked (a softmax over all -Inf scores).
	ErrNumeric = errors.New("seq2seq: numeric error")
)
