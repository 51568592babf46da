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

package bytecode

import (
    `strings`

    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// ArgSlots returns the number of local slots taken by the parameters of a
// method descriptor, including the receiver of instance methods.
func ArgSlots(desc string, static bool) (int, error) {
    n := 0
    i := 1

    /* instance methods receive `this` in slot 0 */
    if !static {
        n++
    }

    /* must be a method descriptor */
    if !strings.HasPrefix(desc, "(") {
        return 0, ir.NewStructuralError("descriptor", "invalid method descriptor: " + desc)
    }

    /* scan every parameter */
    for i < len(desc) && desc[i] != ')' {
        switch desc[i] {
            case 'J', 'D': {
                n += 2
                i++
            }
            case 'B', 'C', 'F', 'I', 'S', 'Z': {
                n++
                i++
            }
            case 'L': {
                if j := strings.IndexByte(desc[i:], ';'); j < 0 {
                    return 0, ir.NewStructuralError("descriptor", "unterminated class name: " + desc)
                } else {
                    n++
                    i += j + 1
                }
            }
            case '[': {
                if j, err := skipArray(desc, i); err != nil {
                    return 0, err
                } else {
                    n++
                    i = j
                }
            }
            default: {
                return 0, ir.NewStructuralError("descriptor", "invalid method descriptor: " + desc)
            }
        }
    }

    /* must have a closing parenthesis */
    if i >= len(desc) {
        return 0, ir.NewStructuralError("descriptor", "unterminated parameter list: " + desc)
    } else {
        return n, nil
    }
}

func skipArray(desc string, i int) (int, error) {
    for i < len(desc) && desc[i] == '[' {
        i++
    }

    /* the element type */
    switch {
        case i >= len(desc)   : return 0, ir.NewStructuralError("descriptor", "unterminated array type: " + desc)
        case desc[i] != 'L'   : return i + 1, nil
    }

    /* arrays of objects */
    if j := strings.IndexByte(desc[i:], ';'); j < 0 {
        return 0, ir.NewStructuralError("descriptor", "unterminated class name: " + desc)
    } else {
        return i + j + 1, nil
    }
}
