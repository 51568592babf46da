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

package opts

import (
	"go.uber.org/zap"
)

type Options struct {
	MaxRounds      int
	DynamicFolding bool
	BranchFolding  bool
	Logger         *zap.Logger
}

// CanIterate reports whether another folding round is allowed after n rounds.
func (self *Options) CanIterate(n int) bool {
	return self.MaxRounds > n || self.MaxRounds == 0
}

// Log returns the configured logger, never nil.
func (self *Options) Log() *zap.Logger {
	if self.Logger == nil {
		return zap.NewNop()
	} else {
		return self.Logger
	}
}

func GetDefaultOptions() Options {
	return Options{
		MaxRounds:      MaxRounds,
		DynamicFolding: DynamicFolding,
		BranchFolding:  BranchFolding,
		Logger:         defaultLogger(),
	}
}

func defaultLogger() *zap.Logger {
	if !Debug {
		return zap.NewNop()
	} else if log, err := zap.NewDevelopment(); err != nil {
		panic("constfold: cannot create the debug logger: " + err.Error())
	} else {
		return log.Named("constfold")
	}
}
