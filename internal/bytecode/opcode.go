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
    `github.com/PhoenixSun17/CompilerOptimization/internal/ir`
)

// Handler is one entry of the exception table of a Code attribute.
type Handler struct {
    StartPC   uint16
    EndPC     uint16
    HandlerPC uint16
    CatchType uint16
}

var _NumKinds = [...]ir.Kind {
    ir.K_int,
    ir.K_long,
    ir.K_float,
    ir.K_double,
}

var _SlotKinds = [...]ir.Kind {
    ir.K_int,
    ir.K_long,
    ir.K_float,
    ir.K_double,
    ir.K_ref,
}

var _ArithOps = [...]ir.AluOp {
    ir.A_add,
    ir.A_sub,
    ir.A_mul,
    ir.A_div,
    ir.A_rem,
    ir.A_neg,
}

var _BitOps = [...]ir.AluOp {
    ir.A_shl,
    ir.A_shr,
    ir.A_ushr,
    ir.A_and,
    ir.A_or,
    ir.A_xor,
}

type _Conversion struct {
    from ir.Kind
    to   ir.Kind
}

var _Conversions = [...]_Conversion {
    ir.I2L - ir.I2L : { ir.K_int    , ir.K_long   },
    ir.I2F - ir.I2L : { ir.K_int    , ir.K_float  },
    ir.I2D - ir.I2L : { ir.K_int    , ir.K_double },
    ir.L2I - ir.I2L : { ir.K_long   , ir.K_int    },
    ir.L2F - ir.I2L : { ir.K_long   , ir.K_float  },
    ir.L2D - ir.I2L : { ir.K_long   , ir.K_double },
    ir.F2I - ir.I2L : { ir.K_float  , ir.K_int    },
    ir.F2L - ir.I2L : { ir.K_float  , ir.K_long   },
    ir.F2D - ir.I2L : { ir.K_float  , ir.K_double },
    ir.D2I - ir.I2L : { ir.K_double , ir.K_int    },
    ir.D2L - ir.I2L : { ir.K_double , ir.K_long   },
    ir.D2F - ir.I2L : { ir.K_double , ir.K_float  },
    ir.I2B - ir.I2L : { ir.K_int    , ir.K_byte   },
    ir.I2C - ir.I2L : { ir.K_int    , ir.K_char   },
    ir.I2S - ir.I2L : { ir.K_int    , ir.K_short  },
}

// _OperandSize is the number of operand bytes following each opcode, for the
// instructions that are kept opaque. Switches and wide have variable sizes.
var _OperandSize = [256]int8 {
    ir.BIPUSH          : 1,
    ir.SIPUSH          : 2,
    ir.LDC             : 1,
    ir.LDC_W           : 2,
    ir.LDC2_W          : 2,
    ir.ILOAD           : 1,
    ir.LLOAD           : 1,
    ir.FLOAD           : 1,
    ir.DLOAD           : 1,
    ir.ALOAD           : 1,
    ir.ISTORE          : 1,
    ir.LSTORE          : 1,
    ir.FSTORE          : 1,
    ir.DSTORE          : 1,
    ir.ASTORE          : 1,
    ir.IINC            : 2,
    ir.IFEQ            : 2,
    ir.IFNE            : 2,
    ir.IFLT            : 2,
    ir.IFGE            : 2,
    ir.IFGT            : 2,
    ir.IFLE            : 2,
    ir.IF_ICMPEQ       : 2,
    ir.IF_ICMPNE       : 2,
    ir.IF_ICMPLT       : 2,
    ir.IF_ICMPGE       : 2,
    ir.IF_ICMPGT       : 2,
    ir.IF_ICMPLE       : 2,
    ir.IF_ACMPEQ       : 2,
    ir.IF_ACMPNE       : 2,
    ir.GOTO            : 2,
    ir.JSR             : 2,
    ir.RET             : 1,
    ir.TABLESWITCH     : -1,
    ir.LOOKUPSWITCH    : -1,
    ir.GETSTATIC       : 2,
    ir.PUTSTATIC       : 2,
    ir.GETFIELD        : 2,
    ir.PUTFIELD        : 2,
    ir.INVOKEVIRTUAL   : 2,
    ir.INVOKESPECIAL   : 2,
    ir.INVOKESTATIC    : 2,
    ir.INVOKEINTERFACE : 4,
    ir.INVOKEDYNAMIC   : 4,
    ir.NEW             : 2,
    ir.NEWARRAY        : 1,
    ir.ANEWARRAY       : 2,
    ir.CHECKCAST       : 2,
    ir.INSTANCEOF      : 2,
    ir.WIDE            : -1,
    ir.MULTIANEWARRAY  : 3,
    ir.IFNULL          : 2,
    ir.IFNONNULL       : 2,
    ir.GOTO_W          : 4,
    ir.JSR_W           : 4,
}

func kindIndex(kinds []ir.Kind, k ir.Kind) int {
    for i, v := range kinds {
        if v == k {
            return i
        }
    }
    return -1
}
