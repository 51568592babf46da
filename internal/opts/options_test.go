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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptions_ParseOrDefault(t *testing.T) {
	t.Setenv("CFOLD_TEST_INT", "")
	require.Equal(t, 12, parseOrDefault("CFOLD_TEST_INT", 12, 1))
	t.Setenv("CFOLD_TEST_INT", "0x10")
	require.Equal(t, 16, parseOrDefault("CFOLD_TEST_INT", 12, 1))
	t.Setenv("CFOLD_TEST_INT", "0")
	require.Panics(t, func() { parseOrDefault("CFOLD_TEST_INT", 12, 1) })
	t.Setenv("CFOLD_TEST_INT", "abc")
	require.Panics(t, func() { parseOrDefault("CFOLD_TEST_INT", 12, 1) })
}

func TestOptions_ParseBoolOrDefault(t *testing.T) {
	t.Setenv("CFOLD_TEST_BOOL", "")
	require.True(t, parseBoolOrDefault("CFOLD_TEST_BOOL", true))
	t.Setenv("CFOLD_TEST_BOOL", "0")
	require.False(t, parseBoolOrDefault("CFOLD_TEST_BOOL", true))
	t.Setenv("CFOLD_TEST_BOOL", "maybe")
	require.Panics(t, func() { parseBoolOrDefault("CFOLD_TEST_BOOL", true) })
}

func TestOptions_CanIterate(t *testing.T) {
	o := GetDefaultOptions()
	o.MaxRounds = 2
	require.True(t, o.CanIterate(1))
	require.False(t, o.CanIterate(2))
	o.MaxRounds = 0
	require.True(t, o.CanIterate(1000))
	require.NotNil(t, (&Options{}).Log())
}
