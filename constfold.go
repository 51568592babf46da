/*
 * Copyright 2022 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package constfold

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/PhoenixSun17/CompilerOptimization/internal/bytecode"
	"github.com/PhoenixSun17/CompilerOptimization/internal/fold"
	"github.com/PhoenixSun17/CompilerOptimization/internal/opts"
)

type (
	// Pool is the constant pool shared by the methods of a class.
	Pool = bytecode.Pool

	// Handler is one entry of the exception table of a method.
	Handler = bytecode.Handler

	// Stats counts the rewrites applied to a method.
	Stats = fold.Stats
)

// Method is the code of one method, as found in its Code attribute.
type Method struct {
	Name       string
	Descriptor string
	Static     bool
	Code       []byte
	MaxStack   uint16
	MaxLocals  uint16
	Exceptions []Handler
}

// NewPool creates an empty constant pool.
func NewPool() *Pool {
	return bytecode.NewPool()
}

// Optimize folds the constant computations of m. Constants that need a pool
// entry are added to pool.
//
// On error, m is returned as it is and the pool may have gained unused
// entries. Methods using subroutines (jsr / ret) are rejected with an
// UnsupportedOperandError.
func Optimize(m Method, pool *Pool, options ...Option) (Method, Stats, error) {
	return optimize(m, pool, makeOptions(options))
}

// OptimizeAll optimizes every method in ms. A method that cannot be optimized
// is kept unchanged, and the error for each of them is combined into the
// returned error.
func OptimizeAll(ms []Method, pool *Pool, options ...Option) ([]Method, Stats, error) {
	var st Stats
	var errs error
	var ret = make([]Method, len(ms))
	var opt = makeOptions(options)

	/* optimize every method */
	for i, m := range ms {
		nm, mst, err := optimize(m, pool, opt)
		ret[i] = nm

		/* accumulate the statistics */
		st.Rounds += mst.Rounds
		st.Folded += mst.Folded
		st.Propagated += mst.Propagated
		st.Cleaned += mst.Cleaned
		st.Retargeted += mst.Retargeted

		/* keep going on errors */
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", m.Name, m.Descriptor, err))
		}
	}

	/* all done */
	return ret, st, errs
}

func makeOptions(options []Option) opts.Options {
	ret := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&ret)
	}
	return ret
}

func optimize(m Method, pool *Pool, o opts.Options) (Method, Stats, error) {
	log := o.Log().With(zap.String("method", m.Name+m.Descriptor))
	o.Logger = log

	/* arguments are never constant */
	args, err := bytecode.ArgSlots(m.Descriptor, m.Static)
	if err != nil {
		return m, Stats{}, err
	}

	/* build the instruction stream */
	s, err := bytecode.Decode(m.Code, pool, m.Exceptions)
	if err != nil {
		log.Debug("method not decoded", zap.Error(err))
		return m, Stats{}, err
	}

	/* run all the passes */
	st, err := fold.Driver{Options: o}.Run(s, args)
	if err != nil {
		log.Debug("method left unchanged", zap.Error(err))
		return m, st, err
	}

	/* nothing to rewrite */
	if st.Total() == 0 {
		return m, st, nil
	}

	/* lay out the new code */
	code, tab, err := bytecode.Encode(s, pool)
	if err != nil {
		log.Debug("method not encoded", zap.Error(err))
		return m, st, err
	}

	/* folding never grows the stack or adds locals, so the limits still hold */
	m.Code = code
	m.Exceptions = tab
	return m, st, nil
}
