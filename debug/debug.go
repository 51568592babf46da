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

package debug

import (
	"sync/atomic"

	"github.com/PhoenixSun17/CompilerOptimization/internal/fold"
)

// A Stats records statistics about the optimizer since the process started.
type Stats struct {
	Methods  int
	Rewrites int
	Aborts   int
}

// GetStats returns statistics of the optimizer.
func GetStats() Stats {
	return Stats{
		Methods:  int(atomic.LoadUint64(&fold.MethodCount)),
		Rewrites: int(atomic.LoadUint64(&fold.RewriteCount)),
		Aborts:   int(atomic.LoadUint64(&fold.AbortCount)),
	}
}
