package arm64

import "github.com/wazevo-rt/wazevo/internal/engine/wazevo/backend/regalloc"

// Real registers, numbered in AArch64 encoding order within each class, offset by one since
// regalloc.RealRegInvalid is zero. xzr and sp both encode to 31, but are kept as distinct
// RealReg values here since they play unrelated semantic roles.
const (
	x0 regalloc.RealReg = 1 + iota
	x1
	x2
	x3
	x4
	x5
	x6
	x7
	x8
	x9
	x10
	x11
	x12
	x13
	x14
	x15
	x16
	x17
	x18
	x19
	x20
	x21
	x22
	x23
	x24
	x25
	x26
	x27
	x28
	x29
	x30
	xzr
	sp

	v0
	v1
	v2
	v3
	v4
	v5
	v6
	v7
	v8
	v9
	v10
	v11
	v12
	v13
	v14
	v15
	v16
	v17
	v18
	v19
	v20
	v21
	v22
	v23
	v24
	v25
	v26
	v27
	v28
	v29
	v30
	v31
)

var (
	x0VReg   = regalloc.FromRealReg(x0, regalloc.RegTypeInt)
	x1VReg   = regalloc.FromRealReg(x1, regalloc.RegTypeInt)
	x2VReg   = regalloc.FromRealReg(x2, regalloc.RegTypeInt)
	x3VReg   = regalloc.FromRealReg(x3, regalloc.RegTypeInt)
	x4VReg   = regalloc.FromRealReg(x4, regalloc.RegTypeInt)
	x5VReg   = regalloc.FromRealReg(x5, regalloc.RegTypeInt)
	x6VReg   = regalloc.FromRealReg(x6, regalloc.RegTypeInt)
	x7VReg   = regalloc.FromRealReg(x7, regalloc.RegTypeInt)
	x8VReg   = regalloc.FromRealReg(x8, regalloc.RegTypeInt)
	x9VReg   = regalloc.FromRealReg(x9, regalloc.RegTypeInt)
	x10VReg  = regalloc.FromRealReg(x10, regalloc.RegTypeInt)
	x11VReg  = regalloc.FromRealReg(x11, regalloc.RegTypeInt)
	x12VReg  = regalloc.FromRealReg(x12, regalloc.RegTypeInt)
	x13VReg  = regalloc.FromRealReg(x13, regalloc.RegTypeInt)
	x14VReg  = regalloc.FromRealReg(x14, regalloc.RegTypeInt)
	x15VReg  = regalloc.FromRealReg(x15, regalloc.RegTypeInt)
	x16VReg  = regalloc.FromRealReg(x16, regalloc.RegTypeInt)
	x17VReg  = regalloc.FromRealReg(x17, regalloc.RegTypeInt)
	x18VReg  = regalloc.FromRealReg(x18, regalloc.RegTypeInt)
	x19VReg  = regalloc.FromRealReg(x19, regalloc.RegTypeInt)
	x20VReg  = regalloc.FromRealReg(x20, regalloc.RegTypeInt)
	x21VReg  = regalloc.FromRealReg(x21, regalloc.RegTypeInt)
	x22VReg  = regalloc.FromRealReg(x22, regalloc.RegTypeInt)
	x23VReg  = regalloc.FromRealReg(x23, regalloc.RegTypeInt)
	x24VReg  = regalloc.FromRealReg(x24, regalloc.RegTypeInt)
	x25VReg  = regalloc.FromRealReg(x25, regalloc.RegTypeInt)
	x26VReg  = regalloc.FromRealReg(x26, regalloc.RegTypeInt)
	x27VReg  = regalloc.FromRealReg(x27, regalloc.RegTypeInt)
	x28VReg  = regalloc.FromRealReg(x28, regalloc.RegTypeInt)
	x29VReg  = regalloc.FromRealReg(x29, regalloc.RegTypeInt)
	x30VReg  = regalloc.FromRealReg(x30, regalloc.RegTypeInt)
	xzrVReg = regalloc.FromRealReg(xzr, regalloc.RegTypeInt)
	spVReg  = regalloc.FromRealReg(sp, regalloc.RegTypeInt)
	// fpVReg is the frame pointer, an alias for x29 per AAPCS64.
	fpVReg = x29VReg
	// lrVReg is the link register, an alias for x30 per AAPCS64.
	lrVReg = x30VReg
	// tmpRegVReg is reserved as a scratch register for instruction sequences the backend
	// synthesizes (e.g. materializing large immediates), and is never allocated by regalloc.
	tmpRegVReg = x27VReg

	v0VReg  = regalloc.FromRealReg(v0, regalloc.RegTypeFloat)
	v1VReg  = regalloc.FromRealReg(v1, regalloc.RegTypeFloat)
	v2VReg  = regalloc.FromRealReg(v2, regalloc.RegTypeFloat)
	v3VReg  = regalloc.FromRealReg(v3, regalloc.RegTypeFloat)
	v4VReg  = regalloc.FromRealReg(v4, regalloc.RegTypeFloat)
	v5VReg  = regalloc.FromRealReg(v5, regalloc.RegTypeFloat)
	v6VReg  = regalloc.FromRealReg(v6, regalloc.RegTypeFloat)
	v7VReg  = regalloc.FromRealReg(v7, regalloc.RegTypeFloat)
	v8VReg  = regalloc.FromRealReg(v8, regalloc.RegTypeFloat)
	v9VReg  = regalloc.FromRealReg(v9, regalloc.RegTypeFloat)
	v10VReg = regalloc.FromRealReg(v10, regalloc.RegTypeFloat)
	v11VReg = regalloc.FromRealReg(v11, regalloc.RegTypeFloat)
	v12VReg = regalloc.FromRealReg(v12, regalloc.RegTypeFloat)
	v13VReg = regalloc.FromRealReg(v13, regalloc.RegTypeFloat)
	v14VReg = regalloc.FromRealReg(v14, regalloc.RegTypeFloat)
	v15VReg = regalloc.FromRealReg(v15, regalloc.RegTypeFloat)
	v16VReg = regalloc.FromRealReg(v16, regalloc.RegTypeFloat)
	v17VReg = regalloc.FromRealReg(v17, regalloc.RegTypeFloat)
	v18VReg = regalloc.FromRealReg(v18, regalloc.RegTypeFloat)
	v19VReg = regalloc.FromRealReg(v19, regalloc.RegTypeFloat)
	v20VReg = regalloc.FromRealReg(v20, regalloc.RegTypeFloat)
	v21VReg = regalloc.FromRealReg(v21, regalloc.RegTypeFloat)
	v22VReg = regalloc.FromRealReg(v22, regalloc.RegTypeFloat)
	v23VReg = regalloc.FromRealReg(v23, regalloc.RegTypeFloat)
	v24VReg = regalloc.FromRealReg(v24, regalloc.RegTypeFloat)
	v25VReg = regalloc.FromRealReg(v25, regalloc.RegTypeFloat)
	v26VReg = regalloc.FromRealReg(v26, regalloc.RegTypeFloat)
	v27VReg = regalloc.FromRealReg(v27, regalloc.RegTypeFloat)
	v28VReg = regalloc.FromRealReg(v28, regalloc.RegTypeFloat)
	v29VReg = regalloc.FromRealReg(v29, regalloc.RegTypeFloat)
	v30VReg = regalloc.FromRealReg(v30, regalloc.RegTypeFloat)
	v31VReg = regalloc.FromRealReg(v31, regalloc.RegTypeFloat)
)

// regNumberInEncoding is the 5-bit register number used in the AArch64 instruction encoding,
// indexed by our RealReg numbering.
var regNumberInEncoding = [...]uint32{
	x0: 0, x1: 1, x2: 2, x3: 3, x4: 4, x5: 5, x6: 6, x7: 7,
	x8: 8, x9: 9, x10: 10, x11: 11, x12: 12, x13: 13, x14: 14, x15: 15,
	x16: 16, x17: 17, x18: 18, x19: 19, x20: 20, x21: 21, x22: 22, x23: 23,
	x24: 24, x25: 25, x26: 26, x27: 27, x28: 28, x29: 29, x30: 30,
	xzr: 31, sp: 31,
	v0: 0, v1: 1, v2: 2, v3: 3, v4: 4, v5: 5, v6: 6, v7: 7,
	v8: 8, v9: 9, v10: 10, v11: 11, v12: 12, v13: 13, v14: 14, v15: 15,
	v16: 16, v17: 17, v18: 18, v19: 19, v20: 20, v21: 21, v22: 22, v23: 23,
	v24: 24, v25: 25, v26: 26, v27: 27, v28: 28, v29: 29, v30: 30, v31: 31,
}

var regNames = [...]string{
	x0: "x0", x1: "x1", x2: "x2", x3: "x3", x4: "x4", x5: "x5", x6: "x6", x7: "x7",
	x8: "x8", x9: "x9", x10: "x10", x11: "x11", x12: "x12", x13: "x13", x14: "x14", x15: "x15",
	x16: "x16", x17: "x17", x18: "x18", x19: "x19", x20: "x20", x21: "x21", x22: "x22", x23: "x23",
	x24: "x24", x25: "x25", x26: "x26", x27: "x27", x28: "x28", x29: "x29", x30: "x30",
	xzr: "xzr", sp: "sp",
	v0: "v0", v1: "v1", v2: "v2", v3: "v3", v4: "v4", v5: "v5", v6: "v6", v7: "v7",
	v8: "v8", v9: "v9", v10: "v10", v11: "v11", v12: "v12", v13: "v13", v14: "v14", v15: "v15",
	v16: "v16", v17: "v17", v18: "v18", v19: "v19", v20: "v20", v21: "v21", v22: "v22", v23: "v23",
	v24: "v24", v25: "v25", v26: "v26", v27: "v27", v28: "v28", v29: "v29", v30: "v30", v31: "v31",
}

// intArgResultRegs and floatArgResultRegs are the AAPCS64 argument/result registers: x0-x7 for
// integer/pointer values, v0-v7 for floating point and vector values.
var (
	intArgResultRegs   = []regalloc.RealReg{x0, x1, x2, x3, x4, x5, x6, x7}
	floatArgResultRegs = []regalloc.RealReg{v0, v1, v2, v3, v4, v5, v6, v7}
)

var regInfo = &regalloc.RegisterInfo{
	AllocatableRegisters: [regalloc.NumRegType][]regalloc.RealReg{
		regalloc.RegTypeInt: {
			x8, x9, x10, x11, x12, x13, x14, x15,
			x18, x19, x20, x21, x22, x23, x24, x25, x26, x28,
			x0, x1, x2, x3, x4, x5, x6, x7,
		},
		regalloc.RegTypeFloat: {
			v8, v9, v10, v11, v12, v13, v14, v15,
			v18, v19, v20, v21, v22, v23, v24, v25, v26, v27, v28, v29, v30, v31,
			v0, v1, v2, v3, v4, v5, v6, v7, v16, v17,
		},
	},
	CalleeSavedRegisters: regalloc.NewRegSet(
		x18, x19, x20, x21, x22, x23, x24, x25, x26, x28,
		v18, v19, v20, v21, v22, v23, v24, v25, v26, v27, v28, v29, v30, v31,
	),
	CallerSavedRegisters: regalloc.NewRegSet(
		x0, x1, x2, x3, x4, x5, x6, x7, x8, x9, x10, x11, x12, x13, x14, x15, x16, x17,
		v0, v1, v2, v3, v4, v5, v6, v7, v16, v17,
	),
	RealRegToVReg: []regalloc.VReg{
		x0: x0VReg, x1: x1VReg, x2: x2VReg, x3: x3VReg, x4: x4VReg, x5: x5VReg, x6: x6VReg, x7: x7VReg,
		x8: x8VReg, x9: x9VReg, x10: x10VReg, x11: x11VReg, x12: x12VReg, x13: x13VReg, x14: x14VReg, x15: x15VReg,
		x16: x16VReg, x17: x17VReg, x18: x18VReg, x19: x19VReg, x20: x20VReg, x21: x21VReg, x22: x22VReg, x23: x23VReg,
		x24: x24VReg, x25: x25VReg, x26: x26VReg, x27: x27VReg, x28: x28VReg, x29: x29VReg, x30: x30VReg,
		xzr: xzrVReg, sp: spVReg,
		v0: v0VReg, v1: v1VReg, v2: v2VReg, v3: v3VReg, v4: v4VReg, v5: v5VReg, v6: v6VReg, v7: v7VReg,
		v8: v8VReg, v9: v9VReg, v10: v10VReg, v11: v11VReg, v12: v12VReg, v13: v13VReg, v14: v14VReg, v15: v15VReg,
		v16: v16VReg, v17: v17VReg, v18: v18VReg, v19: v19VReg, v20: v20VReg, v21: v21VReg, v22: v22VReg, v23: v23VReg,
		v24: v24VReg, v25: v25VReg, v26: v26VReg, v27: v27VReg, v28: v28VReg, v29: v29VReg, v30: v30VReg, v31: v31VReg,
	},
	RealRegName: func(r regalloc.RealReg) string { return regNames[r] },
	RealRegType: func(r regalloc.RealReg) regalloc.RegType {
		if r < v0 {
			return regalloc.RegTypeInt
		}
		return regalloc.RegTypeFloat
	},
}

// ArgsResultsRegs implements backend.Machine.
func (m *machine) ArgsResultsRegs() (argResultInts, argResultFloats []regalloc.RealReg) {
	return intArgResultRegs, floatArgResultRegs
}
