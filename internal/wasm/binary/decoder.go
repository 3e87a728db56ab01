// Package binary decodes the WebAssembly binary format (the "Binary Format" chapter of the
// core specification) into the wasm.Module representation used by the rest of the runtime.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-format%E2%91%A0
package binary

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/wazevo-rt/wazevo/internal/leb128"
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion = uint32(1)

const (
	sectionIDCustom = iota
	sectionIDType
	sectionIDImport
	sectionIDFunction
	sectionIDTable
	sectionIDMemory
	sectionIDGlobal
	sectionIDExport
	sectionIDStart
	sectionIDElement
	sectionIDCode
	sectionIDData
	sectionIDDataCount
)

// DecodeModule decodes a WebAssembly binary into a *wasm.Module, ready for validation and
// compilation by a wasm.Engine.
func DecodeModule(binary []byte) (*wasm.Module, error) {
	r := bytes.NewReader(binary)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != wasmMagic {
		return nil, fmt.Errorf("invalid magic number")
	}
	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, fmt.Errorf("invalid version: %w", err)
	}
	if binary[4:8][0] != 1 || version[1] != 0 || version[2] != 0 || version[3] != 0 {
		return nil, fmt.Errorf("unsupported binary version")
	}

	m := &wasm.Module{}

	var lastNonCustomSectionID byte = 0
	for {
		sectionID, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}

		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read section %d size: %w", sectionID, err)
		}

		sectionContent := make([]byte, size)
		if _, err := io.ReadFull(r, sectionContent); err != nil {
			return nil, fmt.Errorf("read section %d content: %w", sectionID, err)
		}
		sr := bytes.NewReader(sectionContent)

		if sectionID != sectionIDCustom {
			if sectionID <= lastNonCustomSectionID && sectionID != sectionIDCustom {
				return nil, fmt.Errorf("section %d out of order", sectionID)
			}
			lastNonCustomSectionID = sectionID
		}

		switch sectionID {
		case sectionIDCustom:
			if err := decodeCustomSection(sr, m); err != nil {
				return nil, err
			}
		case sectionIDType:
			if m.TypeSection, err = decodeTypeSection(sr); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case sectionIDImport:
			if m.ImportSection, err = decodeImportSection(sr); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case sectionIDFunction:
			if m.FunctionSection, err = decodeFunctionSection(sr); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case sectionIDTable:
			if m.TableSection, err = decodeTableSection(sr); err != nil {
				return nil, fmt.Errorf("table section: %w", err)
			}
		case sectionIDMemory:
			if m.MemorySection, err = decodeMemorySection(sr); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case sectionIDGlobal:
			if m.GlobalSection, err = decodeGlobalSection(sr); err != nil {
				return nil, fmt.Errorf("global section: %w", err)
			}
		case sectionIDExport:
			if m.ExportSection, err = decodeExportSection(sr); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		case sectionIDStart:
			idx, _, err := leb128.DecodeUint32(sr)
			if err != nil {
				return nil, fmt.Errorf("start section: %w", err)
			}
			m.StartSection = &idx
		case sectionIDElement:
			if m.ElementSection, err = decodeElementSection(sr); err != nil {
				return nil, fmt.Errorf("element section: %w", err)
			}
		case sectionIDCode:
			if m.CodeSection, err = decodeCodeSection(sr); err != nil {
				return nil, fmt.Errorf("code section: %w", err)
			}
		case sectionIDData:
			if m.DataSection, err = decodeDataSection(sr); err != nil {
				return nil, fmt.Errorf("data section: %w", err)
			}
		case sectionIDDataCount:
			cnt, _, err := leb128.DecodeUint32(sr)
			if err != nil {
				return nil, fmt.Errorf("data count section: %w", err)
			}
			m.DataCountSection = &cnt
		default:
			return nil, fmt.Errorf("invalid section id: %d", sectionID)
		}
	}

	for i := range m.ImportSection {
		switch m.ImportSection[i].Type {
		case wasm.ExternTypeFunc:
			m.ImportFunctionCount++
		case wasm.ExternTypeGlobal:
			m.ImportGlobalCount++
		case wasm.ExternTypeMemory:
			m.ImportMemoryCount++
		case wasm.ExternTypeTable:
			m.ImportTableCount++
		}
	}

	m.ID = sha256.Sum256(binary)
	return m, nil
}

func decodeValueType(r *bytes.Reader) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, nil
}

func decodeLimits(r *bytes.Reader) (min, max uint32, isMaxEncoded bool, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return
	}
	if min, _, err = leb128.DecodeUint32(r); err != nil {
		return
	}
	if flag == 1 {
		isMaxEncoded = true
		if max, _, err = leb128.DecodeUint32(r); err != nil {
			return
		}
	}
	return
}

func decodeTypeSection(r *bytes.Reader) ([]wasm.FunctionType, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.FunctionType, count)
	for i := range ret {
		form, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("invalid function type form: %#x", form)
		}
		pc, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		params := make([]wasm.ValueType, pc)
		for j := range params {
			if params[j], err = decodeValueType(r); err != nil {
				return nil, err
			}
		}
		rc, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		results := make([]wasm.ValueType, rc)
		for j := range results {
			if results[j], err = decodeValueType(r); err != nil {
				return nil, err
			}
		}
		ret[i] = wasm.FunctionType{Params: params, Results: results}
		ret[i].EnsureCompiled()
	}
	return ret, nil
}

func decodeName(r *bytes.Reader) (string, error) {
	size, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func decodeImportSection(r *bytes.Reader) ([]wasm.Import, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Import, count)
	for i := range ret {
		imp := &ret[i]
		if imp.Module, err = decodeName(r); err != nil {
			return nil, err
		}
		if imp.Name, err = decodeName(r); err != nil {
			return nil, err
		}
		if imp.Type, err = r.ReadByte(); err != nil {
			return nil, err
		}
		switch imp.Type {
		case wasm.ExternTypeFunc:
			if imp.DescFunc, _, err = leb128.DecodeUint32(r); err != nil {
				return nil, err
			}
		case wasm.ExternTypeTable:
			if _, err = r.ReadByte(); err != nil { // reftype
				return nil, err
			}
			min, max, ok, err := decodeLimits(r)
			if err != nil {
				return nil, err
			}
			imp.DescTable = wasm.Table{Min: &min}
			if ok {
				imp.DescTable.Max = &max
			}
		case wasm.ExternTypeMemory:
			min, max, ok, err := decodeLimits(r)
			if err != nil {
				return nil, err
			}
			imp.DescMem = wasm.Memory{Min: min, Cap: min, Max: max, IsMaxEncoded: ok}
		case wasm.ExternTypeGlobal:
			vt, err := decodeValueType(r)
			if err != nil {
				return nil, err
			}
			mutFlag, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			imp.DescGlobal = wasm.GlobalType{ValType: vt, Mutable: mutFlag == 1}
		default:
			return nil, fmt.Errorf("invalid import type: %#x", imp.Type)
		}
	}
	return ret, nil
}

func decodeFunctionSection(r *bytes.Reader) ([]wasm.Index, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Index, count)
	for i := range ret {
		if ret[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeTableSection(r *bytes.Reader) ([]wasm.Table, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Table, count)
	for i := range ret {
		t := &ret[i]
		if t.Type, err = r.ReadByte(); err != nil {
			return nil, err
		}
		min, max, ok, err := decodeLimits(r)
		if err != nil {
			return nil, err
		}
		minCopy := min
		t.Min = &minCopy
		if ok {
			maxCopy := max
			t.Max = &maxCopy
		}
	}
	return ret, nil
}

func decodeMemorySection(r *bytes.Reader) (*wasm.Memory, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if count > 1 {
		return nil, fmt.Errorf("at most one memory is allowed")
	}
	min, max, ok, err := decodeLimits(r)
	if err != nil {
		return nil, err
	}
	return &wasm.Memory{Min: min, Cap: min, Max: max, IsMaxEncoded: ok}, nil
}

func decodeConstantExpression(r *bytes.Reader) (wasm.ConstantExpression, error) {
	op, err := r.ReadByte()
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	var data []byte
	switch op {
	case wasm.OpcodeI32Const:
		v, n, err := leb128.DecodeInt32(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = leb128.EncodeInt32(v)
		_ = n
	case wasm.OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = leb128.EncodeInt64(v)
	case wasm.OpcodeF32Const:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = buf[:]
	case wasm.OpcodeF64Const:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = buf[:]
	case wasm.OpcodeGlobalGet:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = leb128.EncodeUint32(idx)
	case wasm.OpcodeRefNull:
		if _, err := r.ReadByte(); err != nil { // reftype
			return wasm.ConstantExpression{}, err
		}
	case wasm.OpcodeRefFunc:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstantExpression{}, err
		}
		data = leb128.EncodeUint32(idx)
	default:
		return wasm.ConstantExpression{}, fmt.Errorf("invalid constant expression opcode: %#x", op)
	}
	end, err := r.ReadByte()
	if err != nil {
		return wasm.ConstantExpression{}, err
	}
	if end != wasm.OpcodeEnd {
		return wasm.ConstantExpression{}, fmt.Errorf("constant expression not terminated by end")
	}
	return wasm.ConstantExpression{Opcode: op, Data: data}, nil
}

func decodeGlobalSection(r *bytes.Reader) ([]wasm.Global, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Global, count)
	for i := range ret {
		g := &ret[i]
		if g.Type, err = decodeValueType(r); err != nil {
			return nil, err
		}
		mutFlag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		g.Mutable = mutFlag == 1
		if g.Init, err = decodeConstantExpression(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeExportSection(r *bytes.Reader) ([]wasm.Export, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Export, count)
	for i := range ret {
		e := &ret[i]
		if e.Name, err = decodeName(r); err != nil {
			return nil, err
		}
		if e.Type, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if e.Index, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeElementSection(r *bytes.Reader) ([]wasm.ElementSegment, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.ElementSegment, count)
	for i := range ret {
		seg := &ret[i]
		flag, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		seg.Type = wasm.RefTypeFuncref
		switch flag {
		case 0: // active, table 0, funcref, vec(funcidx)
			if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
				return nil, err
			}
			if seg.Init, err = decodeIndexVec(r); err != nil {
				return nil, err
			}
		case 1: // passive, vec(funcidx)
			seg.Mode = wasm.ElementModePassive
			if _, err = r.ReadByte(); err != nil { // elemkind
				return nil, err
			}
			if seg.Init, err = decodeIndexVec(r); err != nil {
				return nil, err
			}
		case 2: // active, explicit table, vec(funcidx)
			if seg.TableIndex, _, err = leb128.DecodeUint32(r); err != nil {
				return nil, err
			}
			if seg.OffsetExpr, err = decodeConstantExpression(r); err != nil {
				return nil, err
			}
			if _, err = r.ReadByte(); err != nil { // elemkind
				return nil, err
			}
			if seg.Init, err = decodeIndexVec(r); err != nil {
				return nil, err
			}
		case 3: // declarative, vec(funcidx)
			seg.Mode = wasm.ElementModeDeclarative
			if _, err = r.ReadByte(); err != nil { // elemkind
				return nil, err
			}
			if seg.Init, err = decodeIndexVec(r); err != nil {
				return nil, err
			}
		case 4, 5, 6, 7:
			return nil, fmt.Errorf("element segment expr-init encoding (flag %d) not supported", flag)
		default:
			return nil, fmt.Errorf("invalid element segment flag: %d", flag)
		}
	}
	return ret, nil
}

func decodeIndexVec(r *bytes.Reader) ([]wasm.Index, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Index, count)
	for i := range ret {
		if ret[i], _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeCodeSection(r *bytes.Reader) ([]wasm.Code, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.Code, count)
	for i := range ret {
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		br := bytes.NewReader(body)

		localGroupCount, _, err := leb128.DecodeUint32(br)
		if err != nil {
			return nil, err
		}
		var localTypes []wasm.ValueType
		for g := uint32(0); g < localGroupCount; g++ {
			n, _, err := leb128.DecodeUint32(br)
			if err != nil {
				return nil, err
			}
			vt, err := decodeValueType(br)
			if err != nil {
				return nil, err
			}
			for k := uint32(0); k < n; k++ {
				localTypes = append(localTypes, vt)
			}
		}
		remaining := make([]byte, br.Len())
		if _, err := io.ReadFull(br, remaining); err != nil {
			return nil, err
		}
		ret[i] = wasm.Code{LocalTypes: localTypes, Body: remaining}
	}
	return ret, nil
}

func decodeDataSection(r *bytes.Reader) ([]wasm.DataSegment, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.DataSegment, count)
	for i := range ret {
		d := &ret[i]
		flag, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		switch flag {
		case 0:
			if d.OffsetExpression, err = decodeConstantExpression(r); err != nil {
				return nil, err
			}
		case 1:
			d.IsPassive = true
		case 2:
			if _, _, err = leb128.DecodeUint32(r); err != nil { // memory index, always 0 for now
				return nil, err
			}
			if d.OffsetExpression, err = decodeConstantExpression(r); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("invalid data segment flag: %d", flag)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		d.Init = make([]byte, size)
		if _, err := io.ReadFull(r, d.Init); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeCustomSection(r *bytes.Reader, m *wasm.Module) error {
	name, err := decodeName(r)
	if err != nil {
		return err
	}
	if name != "name" {
		return nil // unrecognized custom sections are preserved by neither teacher nor this decoder
	}
	ns := &wasm.NameSection{}
	for {
		subsectionID, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("name section: %w", err)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("name section: %w", err)
		}
		content := make([]byte, size)
		if _, err := io.ReadFull(r, content); err != nil {
			return fmt.Errorf("name section: %w", err)
		}
		sr := bytes.NewReader(content)
		switch subsectionID {
		case 0:
			if ns.ModuleName, err = decodeName(sr); err != nil {
				return err
			}
		case 1:
			if ns.FunctionNames, err = decodeNameMap(sr); err != nil {
				return err
			}
		case 2:
			if ns.LocalNames, err = decodeIndirectNameMap(sr); err != nil {
				return err
			}
		}
	}
	m.NameSection = ns
	return nil
}

func decodeNameMap(r *bytes.Reader) (wasm.NameMap, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make(wasm.NameMap, count)
	for i := range ret {
		if ret[i].Index, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
		if ret[i].Name, err = decodeName(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeIndirectNameMap(r *bytes.Reader) ([]wasm.NameMapPerFunction, error) {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.NameMapPerFunction, count)
	for i := range ret {
		if ret[i].Index, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, err
		}
		if ret[i].NameMap, err = decodeNameMap(r); err != nil {
			return nil, err
		}
	}
	return ret, nil
}
