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

package smoothing

import (
	"errors"
	stdmath "math"
	"testing"

	seq2seq "github.com/ajroetker/go-seq2seq"
)

// vocab 5, smoothing 0.4, ignored {0}, target 2:
// [0, 0.1333, 0.6, 0.1333, 0.1333]
func TestTrueDistributionExample(t *testing.T) {
	ls, err := New[float64](0.4, 5, []int{0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dist, err := ls.TrueDistribution([]int{2})
	if err != nil {
		t.Fatalf("TrueDistribution: %v", err)
	}

	want := []float64{0, 0.4 / 3, 0.6, 0.4 / 3, 0.4 / 3}
	const tol = 1e-12
	for i, w := range want {
		if diff := stdmath.Abs(dist[i] - w); diff > tol {
			t.Errorf("dist[%d] = %v, want %v", i, dist[i], w)
		}
	}
}

// For every configuration: rows sum to 1, ignored entries are exactly 0,
// the target entry holds confidence, every other entry holds the
// smoothing value, and smoothingValue*(V-1-|I|) + confidence == 1.
func TestTrueDistributionProperties(t *testing.T) {
	tests := []struct {
		name      string
		smoothing float64
		vocabSize int
		ignored   []int
		targets   []int
	}{
		{"no_ignored", 0.1, 8, nil, []int{0, 3, 7}},
		{"one_ignored", 0.4, 5, []int{0}, []int{2, 4, 1}},
		{"several_ignored", 0.25, 12, []int{0, 1, 11}, []int{5, 2, 9, 10}},
		{"duplicate_ignored", 0.3, 6, []int{1, 1, 4}, []int{0, 5}},
		{"tiny_vocab", 0.5, 2, nil, []int{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, err := New[float64](tt.smoothing, tt.vocabSize, tt.ignored)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			ignored := make(map[int]bool)
			for _, idx := range tt.ignored {
				ignored[idx] = true
			}

			const tol = 1e-12
			excluded := float64(tt.vocabSize - 1 - len(ignoredSet(tt.ignored)))
			mass := float64(ls.SmoothingValue())*excluded + float64(ls.Confidence())
			if diff := stdmath.Abs(mass - 1); diff > tol {
				t.Errorf("smoothingValue*(V-1-|I|) + confidence = %v, want 1", mass)
			}

			dist, err := ls.TrueDistribution(tt.targets)
			if err != nil {
				t.Fatalf("TrueDistribution: %v", err)
			}
			for i, tgt := range tt.targets {
				row := dist[i*tt.vocabSize : (i+1)*tt.vocabSize]
				var sum float64
				for v, p := range row {
					sum += p
					switch {
					case v == tgt:
						if p != float64(ls.Confidence()) {
							t.Errorf("row %d: dist[%d] = %v, want confidence %v", i, v, p, ls.Confidence())
						}
					case ignored[v]:
						if p != 0 {
							t.Errorf("row %d: ignored dist[%d] = %v, want 0", i, v, p)
						}
					default:
						if p != float64(ls.SmoothingValue()) {
							t.Errorf("row %d: dist[%d] = %v, want smoothing value %v", i, v, p, ls.SmoothingValue())
						}
					}
				}
				if diff := stdmath.Abs(sum - 1); diff > tol {
					t.Errorf("row %d: sums to %v, want 1", i, sum)
				}
			}
		})
	}
}

// Targeting an ignored index is a caller-contract violation that the
// scatter does not guard: the row receives confidence at the ignored
// index and stops summing to 1. The behavior is pinned here so a change
// shows up.
func TestTrueDistributionIgnoredTarget(t *testing.T) {
	ls, err := New[float64](0.4, 5, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	dist, err := ls.TrueDistribution([]int{0})
	if err != nil {
		t.Fatalf("TrueDistribution: %v", err)
	}
	if dist[0] != float64(ls.Confidence()) {
		t.Errorf("dist[0] = %v, want unconditional confidence %v", dist[0], ls.Confidence())
	}
	var sum float64
	for _, p := range dist {
		sum += p
	}
	want := float64(ls.Confidence()) + 4*float64(ls.SmoothingValue())
	if diff := stdmath.Abs(sum - want); diff > 1e-12 {
		t.Errorf("sum = %v, want %v (> 1 by construction)", sum, want)
	}
}

func TestNewConfigErrors(t *testing.T) {
	tests := []struct {
		name      string
		smoothing float64
		vocabSize int
		ignored   []int
	}{
		{"smoothing_zero", 0, 5, nil},
		{"smoothing_one", 1, 5, nil},
		{"smoothing_negative", -0.1, 5, nil},
		{"vocab_too_small", 0.1, 1, nil},
		{"ignored_exhausts_vocab", 0.1, 3, []int{0, 1}},
		{"ignore_out_of_range", 0.1, 5, []int{5}},
		{"ignore_negative", 0.1, 5, []int{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New[float64](tt.smoothing, tt.vocabSize, tt.ignored); !errors.Is(err, seq2seq.ErrConfig) {
				t.Errorf("New(%v, %d, %v) error = %v, want ErrConfig",
					tt.smoothing, tt.vocabSize, tt.ignored, err)
			}
		})
	}
}

// Loss against a scalar float64 reference of
// sum_v p[v]*(log p[v] - logProb[v]).
func TestLossAgainstReference(t *testing.T) {
	const vocabSize = 7
	ls, err := New[float64](0.2, vocabSize, []int{0, 6})
	if err != nil {
		t.Fatal(err)
	}

	targets := []int{3, 1, 5, 2}
	// Log-probabilities of a valid model distribution per row.
	logProb := make([]float64, len(targets)*vocabSize)
	for i := range logProb {
		logProb[i] = float64(i%vocabSize)*0.3 - 1.1
	}
	for i := range targets {
		row := logProb[i*vocabSize : (i+1)*vocabSize]
		copy(row, logSoftmax64(row))
	}

	losses, err := ls.Loss(logProb, targets)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}

	dist, err := ls.TrueDistribution(targets)
	if err != nil {
		t.Fatal(err)
	}
	const tol = 1e-12
	for i := range targets {
		var want float64
		for v := range vocabSize {
			p := dist[i*vocabSize+v]
			if p == 0 {
				continue
			}
			want += p * (stdmath.Log(p) - logProb[i*vocabSize+v])
		}
		if diff := stdmath.Abs(losses[i] - want); diff > tol {
			t.Errorf("losses[%d] = %v, want %v", i, losses[i], want)
		}
		// KL divergence against a valid model distribution is
		// non-negative up to rounding.
		if losses[i] < -tol {
			t.Errorf("losses[%d] = %v, want >= 0", i, losses[i])
		}
	}
}

func TestLossFloat32(t *testing.T) {
	const vocabSize = 5
	ls, err := New[float32](0.4, vocabSize, []int{0})
	if err != nil {
		t.Fatal(err)
	}

	// Uniform model: logProb[v] = log(1/V) everywhere, so
	// loss = sum p*log p + log V.
	targets := []int{2}
	logProb := make([]float32, vocabSize)
	for i := range logProb {
		logProb[i] = float32(stdmath.Log(1.0 / vocabSize))
	}

	losses, err := ls.Loss(logProb, targets)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}

	sv := 0.4 / 3
	want := 0.6*stdmath.Log(0.6) + 3*sv*stdmath.Log(sv) + stdmath.Log(vocabSize)
	if diff := stdmath.Abs(float64(losses[0]) - want); diff > 1e-5 {
		t.Errorf("losses[0] = %v, want %v", losses[0], want)
	}
}

// The shared template must survive calls untouched: per-call scatter
// writes go to fresh copies.
func TestTemplateImmutable(t *testing.T) {
	ls, err := New[float64](0.4, 5, []int{0})
	if err != nil {
		t.Fatal(err)
	}

	first, err := ls.TrueDistribution([]int{2})
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]float64(nil), first...)

	// Mutate the returned slice, run a loss, and rebuild.
	for i := range first {
		first[i] = -99
	}
	logProb := make([]float64, 5)
	if _, err := ls.Loss(logProb, []int{4}); err != nil {
		t.Fatal(err)
	}

	second, err := ls.TrueDistribution([]int{2})
	if err != nil {
		t.Fatal(err)
	}
	for i := range second {
		if second[i] != snapshot[i] {
			t.Errorf("dist[%d] = %v after unrelated calls, want %v", i, second[i], snapshot[i])
		}
	}
}

func TestLossInvalidInput(t *testing.T) {
	ls, err := New[float64](0.1, 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		logProb []float64
		targets []int
	}{
		{"empty_targets", make([]float64, 4), nil},
		{"length_mismatch", make([]float64, 7), []int{1, 2}},
		{"target_out_of_range", make([]float64, 4), []int{4}},
		{"target_negative", make([]float64, 4), []int{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ls.Loss(tt.logProb, tt.targets); !errors.Is(err, seq2seq.ErrInvalidInput) {
				t.Errorf("Loss error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func ignoredSet(indices []int) map[int]struct{} {
	set := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		set[idx] = struct{}{}
	}
	return set
}

// logSoftmax64 is a scalar reference log-softmax.
func logSoftmax64(x []float64) []float64 {
	maxVal := stdmath.Inf(-1)
	for _, v := range x {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for _, v := range x {
		sum += stdmath.Exp(v - maxVal)
	}
	lse := maxVal + stdmath.Log(sum)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - lse
	}
	return out
}
