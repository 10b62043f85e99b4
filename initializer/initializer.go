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

// Package initializer fills flat row-major parameter matrices with
// samples from standard neural-network initialization schemes.
package initializer

import (
	"fmt"
	stdmath "math"

	"github.com/ajroetker/go-highway/hwy"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	seq2seq "github.com/ajroetker/go-seq2seq"
)

// Uniform fills param with samples from U[lower, upper). A nil src uses
// the global source.
func Uniform[T hwy.Floats](param []T, lower, upper float64, src rand.Source) error {
	if upper <= lower {
		return fmt.Errorf("%w: uniform bounds [%v, %v), want lower < upper",
			seq2seq.ErrInvalidInput, lower, upper)
	}
	dist := distuv.Uniform{Min: lower, Max: upper, Src: src}
	fill(param, dist.Rand)
	return nil
}

// GlorotNormal fills a rows x cols parameter matrix with samples from
// N(0, 2/(fanIn+fanOut)), i.e. standard deviation sqrt(2/(rows+cols)).
func GlorotNormal[T hwy.Floats](param []T, rows, cols int, src rand.Source) error {
	if err := checkMatrix(len(param), rows, cols); err != nil {
		return err
	}
	sigma := stdmath.Sqrt(2 / float64(rows+cols))
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	fill(param, dist.Rand)
	return nil
}

// KaimingNormal fills a rows x cols parameter matrix with samples from
// N(0, 2/fanIn). For a row-major (out, in) weight matrix the fan-in is
// cols.
func KaimingNormal[T hwy.Floats](param []T, rows, cols int, src rand.Source) error {
	if err := checkMatrix(len(param), rows, cols); err != nil {
		return err
	}
	sigma := stdmath.Sqrt(2 / float64(cols))
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	fill(param, dist.Rand)
	return nil
}

func fill[T hwy.Floats](param []T, sample func() float64) {
	for i := range param {
		param[i] = T(sample())
	}
}

func checkMatrix(n, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: matrix shape (%d, %d), want positive dims",
			seq2seq.ErrInvalidInput, rows, cols)
	}
	if rows*cols != n {
		return fmt.Errorf("%w: parameter length %d, want %d (rows=%d cols=%d)",
			seq2seq.ErrInvalidInput, n, rows*cols, rows, cols)
	}
	return nil
}
