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

	"go.uber.org/zap"

	"github.com/PhoenixSun17/CompilerOptimization/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxRounds sets the maximum number of folding and propagation rounds
// applied to a method.
//
// Set this option to "0" disables this limit, which means iterating until
// nothing changes.
//
// The default value of this option is "64".
func WithMaxRounds(rounds int) Option {
	if rounds < 0 {
		panic(fmt.Sprintf("constfold: invalid max rounds: %d", rounds))
	} else {
		return func(o *opts.Options) { o.MaxRounds = rounds }
	}
}

// WithDynamicFolding selects the propagation strategy. When enabled, variables
// assigned more than once are propagated along straight-line code as well,
// otherwise only variables assigned a single literal are.
//
// The default value of this option is "true".
func WithDynamicFolding(enabled bool) Option {
	return func(o *opts.Options) { o.DynamicFolding = enabled }
}

// WithBranchFolding enables the evaluation of conditional branches over
// constant operands, which removes the arm that never executes.
//
// The default value of this option is "true".
func WithBranchFolding(enabled bool) Option {
	return func(o *opts.Options) { o.BranchFolding = enabled }
}

// WithLogger sets the logger receiving the per-method decisions, at debug
// level. A nil logger discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *opts.Options) { o.Logger = log }
}

// SetMaxRounds sets the default maximum number of rounds for all methods from
// now on.
//
// This value can also be configured with the `CFOLD_MAX_ROUNDS` environment
// variable.
//
// Returns the old opts.MaxRounds value.
func SetMaxRounds(rounds int) int {
	rounds, opts.MaxRounds = opts.MaxRounds, rounds
	return rounds
}
