package wasm

import (
	"fmt"

	"github.com/wazevo-rt/wazevo/api"
)

// Opcode is the binary encoding of a WebAssembly instruction, as defined by the core
// specification. Most single-byte opcodes live here; the OpcodeMisc and OpcodeVec prefix
// bytes introduce a further byte (or LEB128 index) looked up in OpcodeMisc*/OpcodeVec*.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-instr
type Opcode = byte

const (
	OpcodeUnreachable Opcode = 0x00
	OpcodeNop         Opcode = 0x01
	OpcodeBlock       Opcode = 0x02
	OpcodeLoop        Opcode = 0x03
	OpcodeIf          Opcode = 0x04
	OpcodeElse        Opcode = 0x05
	OpcodeEnd         Opcode = 0x0b
	OpcodeBr          Opcode = 0x0c
	OpcodeBrIf        Opcode = 0x0d
	OpcodeBrTable     Opcode = 0x0e
	OpcodeReturn      Opcode = 0x0f
	OpcodeCall        Opcode = 0x10
	OpcodeCallIndirect Opcode = 0x11

	OpcodeDrop        Opcode = 0x1a
	OpcodeSelect      Opcode = 0x1b
	OpcodeTypedSelect Opcode = 0x1c

	OpcodeLocalGet  Opcode = 0x20
	OpcodeLocalSet  Opcode = 0x21
	OpcodeLocalTee  Opcode = 0x22
	OpcodeGlobalGet Opcode = 0x23
	OpcodeGlobalSet Opcode = 0x24

	OpcodeI32Load    Opcode = 0x28
	OpcodeI64Load    Opcode = 0x29
	OpcodeF32Load    Opcode = 0x2a
	OpcodeF64Load    Opcode = 0x2b
	OpcodeI32Load8S  Opcode = 0x2c
	OpcodeI32Load8U  Opcode = 0x2d
	OpcodeI32Load16S Opcode = 0x2e
	OpcodeI32Load16U Opcode = 0x2f
	OpcodeI64Load8S  Opcode = 0x30
	OpcodeI64Load8U  Opcode = 0x31
	OpcodeI64Load16S Opcode = 0x32
	OpcodeI64Load16U Opcode = 0x33
	OpcodeI64Load32S Opcode = 0x34
	OpcodeI64Load32U Opcode = 0x35
	OpcodeI32Store   Opcode = 0x36
	OpcodeI64Store   Opcode = 0x37
	OpcodeF32Store   Opcode = 0x38
	OpcodeF64Store   Opcode = 0x39
	OpcodeI32Store8  Opcode = 0x3a
	OpcodeI32Store16 Opcode = 0x3b
	OpcodeI64Store8  Opcode = 0x3c
	OpcodeI64Store16 Opcode = 0x3d
	OpcodeI64Store32 Opcode = 0x3e
	OpcodeMemorySize Opcode = 0x3f
	OpcodeMemoryGrow Opcode = 0x40

	OpcodeI32Const Opcode = 0x41
	OpcodeI64Const Opcode = 0x42
	OpcodeF32Const Opcode = 0x43
	OpcodeF64Const Opcode = 0x44

	OpcodeI32Eqz Opcode = 0x45
	OpcodeI32Eq  Opcode = 0x46
	OpcodeI32Ne  Opcode = 0x47
	OpcodeI32LtS Opcode = 0x48
	OpcodeI32LtU Opcode = 0x49
	OpcodeI32GtS Opcode = 0x4a
	OpcodeI32GtU Opcode = 0x4b
	OpcodeI32LeS Opcode = 0x4c
	OpcodeI32LeU Opcode = 0x4d
	OpcodeI32GeS Opcode = 0x4e
	OpcodeI32GeU Opcode = 0x4f

	OpcodeI64Eqz Opcode = 0x50
	OpcodeI64Eq  Opcode = 0x51
	OpcodeI64Ne  Opcode = 0x52
	OpcodeI64LtS Opcode = 0x53
	OpcodeI64LtU Opcode = 0x54
	OpcodeI64GtS Opcode = 0x55
	OpcodeI64GtU Opcode = 0x56
	OpcodeI64LeS Opcode = 0x57
	OpcodeI64LeU Opcode = 0x58
	OpcodeI64GeS Opcode = 0x59
	OpcodeI64GeU Opcode = 0x5a

	OpcodeF32Eq Opcode = 0x5b
	OpcodeF32Ne Opcode = 0x5c
	OpcodeF32Lt Opcode = 0x5d
	OpcodeF32Gt Opcode = 0x5e
	OpcodeF32Le Opcode = 0x5f
	OpcodeF32Ge Opcode = 0x60

	OpcodeF64Eq Opcode = 0x61
	OpcodeF64Ne Opcode = 0x62
	OpcodeF64Lt Opcode = 0x63
	OpcodeF64Gt Opcode = 0x64
	OpcodeF64Le Opcode = 0x65
	OpcodeF64Ge Opcode = 0x66

	OpcodeI32Clz    Opcode = 0x67
	OpcodeI32Ctz    Opcode = 0x68
	OpcodeI32Popcnt Opcode = 0x69
	OpcodeI32Add    Opcode = 0x6a
	OpcodeI32Sub    Opcode = 0x6b
	OpcodeI32Mul    Opcode = 0x6c
	OpcodeI32DivS   Opcode = 0x6d
	OpcodeI32DivU   Opcode = 0x6e
	OpcodeI32RemS   Opcode = 0x6f
	OpcodeI32RemU   Opcode = 0x70
	OpcodeI32And    Opcode = 0x71
	OpcodeI32Or     Opcode = 0x72
	OpcodeI32Xor    Opcode = 0x73
	OpcodeI32Shl    Opcode = 0x74
	OpcodeI32ShrS   Opcode = 0x75
	OpcodeI32ShrU   Opcode = 0x76
	OpcodeI32Rotl   Opcode = 0x77
	OpcodeI32Rotr   Opcode = 0x78

	OpcodeI64Clz    Opcode = 0x79
	OpcodeI64Ctz    Opcode = 0x7a
	OpcodeI64Popcnt Opcode = 0x7b
	OpcodeI64Add    Opcode = 0x7c
	OpcodeI64Sub    Opcode = 0x7d
	OpcodeI64Mul    Opcode = 0x7e
	OpcodeI64DivS   Opcode = 0x7f
	OpcodeI64DivU   Opcode = 0x80
	OpcodeI64RemS   Opcode = 0x81
	OpcodeI64RemU   Opcode = 0x82
	OpcodeI64And    Opcode = 0x83
	OpcodeI64Or     Opcode = 0x84
	OpcodeI64Xor    Opcode = 0x85
	OpcodeI64Shl    Opcode = 0x86
	OpcodeI64ShrS   Opcode = 0x87
	OpcodeI64ShrU   Opcode = 0x88
	OpcodeI64Rotl   Opcode = 0x89
	OpcodeI64Rotr   Opcode = 0x8a

	OpcodeF32Abs      Opcode = 0x8b
	OpcodeF32Neg      Opcode = 0x8c
	OpcodeF32Ceil     Opcode = 0x8d
	OpcodeF32Floor    Opcode = 0x8e
	OpcodeF32Trunc    Opcode = 0x8f
	OpcodeF32Nearest  Opcode = 0x90
	OpcodeF32Sqrt     Opcode = 0x91
	OpcodeF32Add      Opcode = 0x92
	OpcodeF32Sub      Opcode = 0x93
	OpcodeF32Mul      Opcode = 0x94
	OpcodeF32Div      Opcode = 0x95
	OpcodeF32Min      Opcode = 0x96
	OpcodeF32Max      Opcode = 0x97
	OpcodeF32Copysign Opcode = 0x98

	OpcodeF64Abs      Opcode = 0x99
	OpcodeF64Neg      Opcode = 0x9a
	OpcodeF64Ceil     Opcode = 0x9b
	OpcodeF64Floor    Opcode = 0x9c
	OpcodeF64Trunc    Opcode = 0x9d
	OpcodeF64Nearest  Opcode = 0x9e
	OpcodeF64Sqrt     Opcode = 0x9f
	OpcodeF64Add      Opcode = 0xa0
	OpcodeF64Sub      Opcode = 0xa1
	OpcodeF64Mul      Opcode = 0xa2
	OpcodeF64Div      Opcode = 0xa3
	OpcodeF64Min      Opcode = 0xa4
	OpcodeF64Max      Opcode = 0xa5
	OpcodeF64Copysign Opcode = 0xa6

	OpcodeI32WrapI64        Opcode = 0xa7
	OpcodeI32TruncF32S      Opcode = 0xa8
	OpcodeI32TruncF32U      Opcode = 0xa9
	OpcodeI32TruncF64S      Opcode = 0xaa
	OpcodeI32TruncF64U      Opcode = 0xab
	OpcodeI64ExtendI32S     Opcode = 0xac
	OpcodeI64ExtendI32U     Opcode = 0xad
	OpcodeI64TruncF32S      Opcode = 0xae
	OpcodeI64TruncF32U      Opcode = 0xaf
	OpcodeI64TruncF64S      Opcode = 0xb0
	OpcodeI64TruncF64U      Opcode = 0xb1
	OpcodeF32ConvertI32S    Opcode = 0xb2
	OpcodeF32ConvertI32U    Opcode = 0xb3
	OpcodeF32ConvertI64S    Opcode = 0xb4
	OpcodeF32ConvertI64U    Opcode = 0xb5
	OpcodeF32DemoteF64      Opcode = 0xb6
	OpcodeF64ConvertI32S    Opcode = 0xb7
	OpcodeF64ConvertI32U    Opcode = 0xb8
	OpcodeF64ConvertI64S    Opcode = 0xb9
	OpcodeF64ConvertI64U    Opcode = 0xba
	OpcodeF64PromoteF32     Opcode = 0xbb
	OpcodeI32ReinterpretF32 Opcode = 0xbc
	OpcodeI64ReinterpretF64 Opcode = 0xbd
	OpcodeF32ReinterpretI32 Opcode = 0xbe
	OpcodeF64ReinterpretI64 Opcode = 0xbf

	OpcodeI32Extend8S  Opcode = 0xc0
	OpcodeI32Extend16S Opcode = 0xc1
	OpcodeI64Extend8S  Opcode = 0xc2
	OpcodeI64Extend16S Opcode = 0xc3
	OpcodeI64Extend32S Opcode = 0xc4

	// OpcodeRefNull, OpcodeRefIsNull, OpcodeRefFunc belong to the reference-types proposal.
	OpcodeRefNull   Opcode = 0xd0
	OpcodeRefIsNull Opcode = 0xd1
	OpcodeRefFunc   Opcode = 0xd2

	// OpcodeMiscPrefix introduces a further LEB128-encoded sub-opcode, see OpcodeMisc.
	OpcodeMiscPrefix Opcode = 0xfc
	// OpcodeVecPrefix introduces a further LEB128-encoded sub-opcode, see OpcodeVec.
	OpcodeVecPrefix Opcode = 0xfd
)

// OpcodeMisc is the sub-opcode following an OpcodeMiscPrefix byte, covering the
// saturating-truncation and bulk-memory proposals.
type OpcodeMisc = byte

const (
	OpcodeMiscI32TruncSatF32S OpcodeMisc = 0x00
	OpcodeMiscI32TruncSatF32U OpcodeMisc = 0x01
	OpcodeMiscI32TruncSatF64S OpcodeMisc = 0x02
	OpcodeMiscI32TruncSatF64U OpcodeMisc = 0x03
	OpcodeMiscI64TruncSatF32S OpcodeMisc = 0x04
	OpcodeMiscI64TruncSatF32U OpcodeMisc = 0x05
	OpcodeMiscI64TruncSatF64S OpcodeMisc = 0x06
	OpcodeMiscI64TruncSatF64U OpcodeMisc = 0x07

	OpcodeMiscMemoryInit OpcodeMisc = 0x08
	OpcodeMiscDataDrop   OpcodeMisc = 0x09
	OpcodeMiscMemoryCopy OpcodeMisc = 0x0a
	OpcodeMiscMemoryFill OpcodeMisc = 0x0b
	OpcodeMiscTableInit  OpcodeMisc = 0x0c
	OpcodeMiscElemDrop   OpcodeMisc = 0x0d
	OpcodeMiscTableCopy  OpcodeMisc = 0x0e
	OpcodeMiscTableGrow  OpcodeMisc = 0x0f
	OpcodeMiscTableSize  OpcodeMisc = 0x10
	OpcodeMiscTableFill  OpcodeMisc = 0x11
)

// OpcodeVec is the sub-opcode following an OpcodeVecPrefix byte, covering the 128-bit SIMD
// proposal. Only the subset implemented by the backend is named here; the remainder decode
// and fail compilation with an explicit "unsupported SIMD opcode" error.
type OpcodeVec = byte

const (
	OpcodeVecV128Const OpcodeVec = 0x0c

	OpcodeVecI8x16Abs      OpcodeVec = 0x60
	OpcodeVecI8x16Neg      OpcodeVec = 0x61
	OpcodeVecI8x16Popcnt   OpcodeVec = 0x62
	OpcodeVecI8x16Add      OpcodeVec = 0x6e
	OpcodeVecI8x16AddSatS  OpcodeVec = 0x6f
	OpcodeVecI8x16AddSatU  OpcodeVec = 0x70
	OpcodeVecI8x16Sub      OpcodeVec = 0x71
	OpcodeVecI8x16SubSatS  OpcodeVec = 0x72
	OpcodeVecI8x16SubSatU  OpcodeVec = 0x73
	OpcodeVecI8x16MinS     OpcodeVec = 0x76
	OpcodeVecI8x16MinU     OpcodeVec = 0x77
	OpcodeVecI8x16MaxS     OpcodeVec = 0x78
	OpcodeVecI8x16MaxU     OpcodeVec = 0x79
	OpcodeVecI8x16AvgrU    OpcodeVec = 0x7b

	OpcodeVecI16x8Abs     OpcodeVec = 0x80
	OpcodeVecI16x8Neg     OpcodeVec = 0x81
	OpcodeVecI16x8Add     OpcodeVec = 0x8e
	OpcodeVecI16x8AddSatS OpcodeVec = 0x8f
	OpcodeVecI16x8AddSatU OpcodeVec = 0x90
	OpcodeVecI16x8Sub     OpcodeVec = 0x91
	OpcodeVecI16x8SubSatS OpcodeVec = 0x92
	OpcodeVecI16x8SubSatU OpcodeVec = 0x93
	OpcodeVecI16x8Mul     OpcodeVec = 0x95
	OpcodeVecI16x8MinS    OpcodeVec = 0x96
	OpcodeVecI16x8MinU    OpcodeVec = 0x97
	OpcodeVecI16x8MaxS    OpcodeVec = 0x98
	OpcodeVecI16x8MaxU    OpcodeVec = 0x99
	OpcodeVecI16x8AvgrU   OpcodeVec = 0x9b

	OpcodeVecI32x4Abs  OpcodeVec = 0xa0
	OpcodeVecI32x4Neg  OpcodeVec = 0xa1
	OpcodeVecI32x4Add  OpcodeVec = 0xae
	OpcodeVecI32x4Sub  OpcodeVec = 0xb1
	OpcodeVecI32x4Mul  OpcodeVec = 0xb5
	OpcodeVecI32x4MinS OpcodeVec = 0xb6
	OpcodeVecI32x4MinU OpcodeVec = 0xb7
	OpcodeVecI32x4MaxS OpcodeVec = 0xb8
	OpcodeVecI32x4MaxU OpcodeVec = 0xb9

	OpcodeVecI64x2Abs OpcodeVec = 0xc0
	OpcodeVecI64x2Neg OpcodeVec = 0xc1
	OpcodeVecI64x2Add OpcodeVec = 0xce
	OpcodeVecI64x2Sub OpcodeVec = 0xd1
	OpcodeVecI64x2Mul OpcodeVec = 0xd5
)

// emptyBlockType is shared for the common case of a block with no parameters or results, to
// avoid an allocation per structured control-flow instruction.
var emptyBlockType = &FunctionType{string: "-"}

// singleValueBlockTypes caches the *FunctionType for each one-result, no-param shorthand
// blocktype encoding (the common case of "if (result i32) ... end" style blocks).
var singleValueBlockTypes = map[ValueType]*FunctionType{
	ValueTypeI32:       {Results: []ValueType{ValueTypeI32}},
	ValueTypeI64:       {Results: []ValueType{ValueTypeI64}},
	ValueTypeF32:       {Results: []ValueType{ValueTypeF32}},
	ValueTypeF64:       {Results: []ValueType{ValueTypeF64}},
	ValueTypeV128:      {Results: []ValueType{ValueTypeV128}},
	ValueTypeFuncref:   {Results: []ValueType{ValueTypeFuncref}},
	ValueTypeExternref: {Results: []ValueType{ValueTypeExternref}},
}

func init() {
	for _, t := range singleValueBlockTypes {
		t.EnsureCompiled()
	}
}

// blockTypeReader is the minimal surface DecodeBlockType needs from a *bytes.Reader, broken
// out so the function isn't bound to the bytes package directly.
type blockTypeReader interface {
	ReadByte() (byte, error)
	UnreadByte() error
}

// DecodeBlockType reads the LEB128-signed blocktype immediate from r, resolving a type-index
// encoding against types. enabledFeatures gates the multi-value shorthand (a type index
// implies params, which is only legal with CoreFeatureMultiValue).
func DecodeBlockType(types []FunctionType, r blockTypeReader, enabledFeatures api.CoreFeatures) (*FunctionType, uint64, error) {
	raw, err := r.ReadByte()
	if err != nil {
		return nil, 0, err
	}

	switch raw {
	case 0x40: // empty block type
		return emptyBlockType, 1, nil
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128,
		ValueTypeFuncref, ValueTypeExternref:
		return singleValueBlockTypes[raw], 1, nil
	}

	// Otherwise this is a SLEB128-encoded index into the type section: unread and re-decode
	// the whole immediate as a signed varint.
	if err := r.UnreadByte(); err != nil {
		return nil, 0, err
	}
	idx, n, err := decodeSLEB128AsTypeIndex(r)
	if err != nil {
		return nil, 0, err
	}
	if int(idx) >= len(types) {
		return nil, 0, fmt.Errorf("invalid blocktype type index: %d", idx)
	}
	t := &types[idx]
	if len(t.Params) > 0 && !api.CoreFeatureMultiValue.IsEnabled(enabledFeatures) {
		return nil, 0, fmt.Errorf("block with function type requires feature %q", "multi-value")
	}
	return t, n, nil
}

func decodeSLEB128AsTypeIndex(r blockTypeReader) (int32, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			break
		}
	}
	return int32(result), n, nil
}

// InstructionName returns the textual mnemonic of a top-level (non-prefixed) Opcode, used
// for diagnostics and disassembly.
func InstructionName(oc Opcode) string {
	if n, ok := instructionNames[oc]; ok {
		return n
	}
	return "unknown"
}

// VectorInstructionName returns the textual mnemonic of an OpcodeVec sub-opcode.
func VectorInstructionName(oc OpcodeVec) string {
	if n, ok := vectorInstructionNames[oc]; ok {
		return n
	}
	return "unknown"
}

var instructionNames = map[Opcode]string{
	OpcodeUnreachable: "unreachable", OpcodeNop: "nop", OpcodeBlock: "block", OpcodeLoop: "loop",
	OpcodeIf: "if", OpcodeElse: "else", OpcodeEnd: "end", OpcodeBr: "br", OpcodeBrIf: "br_if",
	OpcodeBrTable: "br_table", OpcodeReturn: "return", OpcodeCall: "call", OpcodeCallIndirect: "call_indirect",
	OpcodeDrop: "drop", OpcodeSelect: "select", OpcodeTypedSelect: "select",
	OpcodeLocalGet: "local.get", OpcodeLocalSet: "local.set", OpcodeLocalTee: "local.tee",
	OpcodeGlobalGet: "global.get", OpcodeGlobalSet: "global.set",
	OpcodeI32Load: "i32.load", OpcodeI64Load: "i64.load", OpcodeF32Load: "f32.load", OpcodeF64Load: "f64.load",
	OpcodeI32Store: "i32.store", OpcodeI64Store: "i64.store", OpcodeF32Store: "f32.store", OpcodeF64Store: "f64.store",
	OpcodeMemorySize: "memory.size", OpcodeMemoryGrow: "memory.grow",
	OpcodeI32Const: "i32.const", OpcodeI64Const: "i64.const", OpcodeF32Const: "f32.const", OpcodeF64Const: "f64.const",
	OpcodeI32Add: "i32.add", OpcodeI32Sub: "i32.sub", OpcodeI32Mul: "i32.mul",
	OpcodeI64Add: "i64.add", OpcodeI64Sub: "i64.sub", OpcodeI64Mul: "i64.mul",
	OpcodeRefNull: "ref.null", OpcodeRefIsNull: "ref.is_null", OpcodeRefFunc: "ref.func",
	OpcodeMiscPrefix: "misc", OpcodeVecPrefix: "vec",
}

var vectorInstructionNames = map[OpcodeVec]string{
	OpcodeVecV128Const: "v128.const",
	OpcodeVecI8x16Abs: "i8x16.abs", OpcodeVecI8x16Neg: "i8x16.neg", OpcodeVecI8x16Add: "i8x16.add",
	OpcodeVecI16x8Abs: "i16x8.abs", OpcodeVecI16x8Neg: "i16x8.neg", OpcodeVecI16x8Add: "i16x8.add",
	OpcodeVecI32x4Abs: "i32x4.abs", OpcodeVecI32x4Neg: "i32x4.neg", OpcodeVecI32x4Add: "i32x4.add",
	OpcodeVecI64x2Abs: "i64x2.abs", OpcodeVecI64x2Neg: "i64x2.neg", OpcodeVecI64x2Add: "i64x2.add",
}
