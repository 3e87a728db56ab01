package wazevo

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/wazevo-rt/wazevo/api"
	"github.com/wazevo-rt/wazevo/internal/leb128"
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Linker resolves a Module's imports, either against host functions/globals/memories it was
// given directly, or against the exports of another Instance, and instantiates the result.
// Mirrors the shape of wasmtime's Linker: one Linker can instantiate many Modules, accumulating
// definitions across calls.
type Linker struct {
	store *Store

	hostFuncs  map[string][]hostFuncEntry
	hostIndex  map[string]map[string]int
	hostGlobal map[string]map[string]*wasm.GlobalInstance
	hostMemory map[string]map[string]*Memory
	instances  map[string]*Instance

	builtHost map[string]*Instance
}

type hostFuncEntry struct {
	name string
	fn   *Func
}

// NewLinker returns a Linker that instantiates modules against s.
func NewLinker(s *Store) *Linker {
	return &Linker{
		store:      s,
		hostFuncs:  map[string][]hostFuncEntry{},
		hostIndex:  map[string]map[string]int{},
		hostGlobal: map[string]map[string]*wasm.GlobalInstance{},
		hostMemory: map[string]map[string]*Memory{},
		instances:  map[string]*Instance{},
		builtHost:  map[string]*Instance{},
	}
}

// DefineFunc registers fn as the import moduleName.name.
func (l *Linker) DefineFunc(moduleName, name string, fn *Func) *Linker {
	idx := len(l.hostFuncs[moduleName])
	l.hostFuncs[moduleName] = append(l.hostFuncs[moduleName], hostFuncEntry{name: name, fn: fn})
	if l.hostIndex[moduleName] == nil {
		l.hostIndex[moduleName] = map[string]int{}
	}
	l.hostIndex[moduleName][name] = idx
	delete(l.builtHost, moduleName) // invalidate any already-built host module for this name
	return l
}

// DefineGlobal registers a host-owned global as the import moduleName.name.
func (l *Linker) DefineGlobal(moduleName, name string, valType api.ValueType, mutable bool, initial uint64) *Linker {
	if l.hostGlobal[moduleName] == nil {
		l.hostGlobal[moduleName] = map[string]*wasm.GlobalInstance{}
	}
	l.hostGlobal[moduleName][name] = &wasm.GlobalInstance{Type: wasm.GlobalType{ValType: valType, Mutable: mutable}, Val: initial}
	return l
}

// DefineMemory registers mem as the import moduleName.name.
func (l *Linker) DefineMemory(moduleName, name string, mem *Memory) *Linker {
	if l.hostMemory[moduleName] == nil {
		l.hostMemory[moduleName] = map[string]*Memory{}
	}
	l.hostMemory[moduleName][name] = mem
	return l
}

// DefineInstance makes every export of inst available as an import under moduleName, the same
// way a previously-instantiated module's exports satisfy another module's imports.
func (l *Linker) DefineInstance(moduleName string, inst *Instance) *Linker {
	l.instances[moduleName] = inst
	return l
}

// Instantiate resolves m's imports against everything this Linker has been given and
// instantiates it as a new Instance.
func (l *Linker) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	if ctx == nil {
		ctx = l.store.ctx
	}
	src := m.module

	inst := &wasm.ModuleInstance{ModuleName: m.Name(), Source: src, TypeIDs: m.typeIDs}
	inst.Exports = make(map[string]wasm.Export, len(src.ExportSection))
	for _, e := range src.ExportSection {
		inst.Exports[e.Name] = e
	}

	var importedFuncEngines []wasm.ModuleEngine
	var importedFuncIndexes []wasm.Index
	var importedMemoryEngine wasm.ModuleEngine
	var pendingGlobalRefs []pendingRef

	for i := range src.ImportSection {
		imp := &src.ImportSection[i]
		switch imp.Type {
		case wasm.ExternTypeFunc:
			eng, idx, err := l.resolveFunc(imp.Module, imp.Name)
			if err != nil {
				return nil, err
			}
			importedFuncEngines = append(importedFuncEngines, eng)
			importedFuncIndexes = append(importedFuncIndexes, idx)
		case wasm.ExternTypeGlobal:
			g, err := l.resolveGlobal(imp.Module, imp.Name)
			if err != nil {
				return nil, err
			}
			inst.Globals = append(inst.Globals, g)
		case wasm.ExternTypeMemory:
			mem, memEng, err := l.resolveMemory(imp.Module, imp.Name)
			if err != nil {
				return nil, err
			}
			inst.MemoryInstance = mem.inst
			importedMemoryEngine = memEng
		case wasm.ExternTypeTable:
			return nil, fmt.Errorf("import %s.%s: table imports are not supported", imp.Module, imp.Name)
		}
	}

	for i := range src.GlobalSection {
		g := &src.GlobalSection[i]
		res, err := evalConstExpr(g.Init, inst.Globals)
		if err != nil {
			return nil, fmt.Errorf("global %d initializer: %w", i, err)
		}
		gi := &wasm.GlobalInstance{Type: wasm.GlobalType{ValType: g.Type, Mutable: g.Mutable}, Val: res.val}
		if res.pendingFuncIndex != nil {
			pendingGlobalRefs = append(pendingGlobalRefs, pendingRef{global: gi, funcIndex: *res.pendingFuncIndex})
		}
		inst.Globals = append(inst.Globals, gi)
	}

	for i := range src.TableSection {
		t := &src.TableSection[i]
		var min uint32
		if t.Min != nil {
			min = *t.Min
		}
		var max *uint32
		if t.Max != nil {
			m := *t.Max
			max = &m
		}
		inst.Tables = append(inst.Tables, &wasm.TableInstance{
			References: make([]wasm.Reference, min),
			Min:        min, Max: max, Type: t.Type,
		})
	}

	if inst.MemoryInstance == nil && src.MemorySection != nil {
		inst.MemoryInstance = src.BuildMemoryInstance(l.memorySizer())
	}

	eng, err := l.store.engine.NewModuleEngine(src, inst)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}
	inst.Engine = eng

	for i, importedEng := range importedFuncEngines {
		eng.ResolveImportedFunction(wasm.Index(i), importedFuncIndexes[i], importedEng)
	}
	if importedMemoryEngine != nil {
		eng.ResolveImportedMemory(importedMemoryEngine)
	}

	for _, p := range pendingGlobalRefs {
		p.global.Val = uint64(eng.FunctionInstanceReference(p.funcIndex))
	}

	for i := range src.ElementSection {
		seg := &src.ElementSection[i]
		if seg.Mode != wasm.ElementModeActive {
			continue
		}
		offRes, err := evalConstExpr(seg.OffsetExpr, inst.Globals)
		if err != nil {
			return nil, fmt.Errorf("element segment %d offset: %w", i, err)
		}
		table := inst.Tables[seg.TableIndex]
		off := uint32(offRes.val)
		for j, funcIdx := range seg.Init {
			table.References[off+uint32(j)] = eng.FunctionInstanceReference(funcIdx)
		}
	}

	eng.DoneInstantiation()

	if src.StartSection != nil {
		fn := eng.NewFunction(*src.StartSection)
		if _, err := fn.Call(ctx); err != nil {
			return nil, fmt.Errorf("start function: %w", err)
		}
	}

	return &Instance{store: l.store, name: inst.ModuleName, module: src, inst: inst, typeIDs: m.typeIDs}, nil
}

func (l *Linker) memorySizer() api.MemorySizer {
	maxPages := l.store.config.MemoryMaxPages
	return func(minPages uint32, declaredMax *uint32) (min, capacity, max uint32) {
		max = maxPages
		if declaredMax != nil && *declaredMax < max {
			max = *declaredMax
		}
		return minPages, minPages, max
	}
}

func (l *Linker) resolveFunc(moduleName, name string) (wasm.ModuleEngine, wasm.Index, error) {
	if inst, ok := l.instances[moduleName]; ok {
		if idx, ok := inst.inst.ExportedFunctionIndex(name); ok {
			return inst.inst.Engine, idx, nil
		}
	}
	if _, ok := l.hostFuncs[moduleName]; ok {
		host, err := l.hostInstance(moduleName)
		if err != nil {
			return nil, 0, err
		}
		if idx, ok := host.inst.ExportedFunctionIndex(name); ok {
			return host.inst.Engine, idx, nil
		}
	}
	return nil, 0, fmt.Errorf("unresolved import: function %s.%s", moduleName, name)
}

func (l *Linker) resolveGlobal(moduleName, name string) (*wasm.GlobalInstance, error) {
	if inst, ok := l.instances[moduleName]; ok {
		if exp, ok := inst.inst.Exports[name]; ok && exp.Type == wasm.ExternTypeGlobal {
			return inst.inst.Globals[exp.Index], nil
		}
	}
	if g, ok := l.hostGlobal[moduleName][name]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("unresolved import: global %s.%s", moduleName, name)
}

// resolveMemory returns the memory plus the ModuleEngine that owns it, when the memory was
// imported from another Instance. Host-defined memories (DefineMemory) have no owning
// ModuleEngine; the engine is nil in that case, and the importing module's compiled code
// accesses the shared buffer directly rather than through ResolveImportedMemory.
func (l *Linker) resolveMemory(moduleName, name string) (*Memory, wasm.ModuleEngine, error) {
	if inst, ok := l.instances[moduleName]; ok {
		if m := inst.ExportedMemory(name); m != nil {
			return m.(*Memory), inst.inst.Engine, nil
		}
	}
	if m, ok := l.hostMemory[moduleName][name]; ok {
		return m, nil, nil
	}
	return nil, nil, fmt.Errorf("unresolved import: memory %s.%s", moduleName, name)
}

// hostInstance lazily compiles the funcs registered under moduleName into a single host module,
// so they can be referenced through the same ModuleEngine seam a real Instance's imports use.
func (l *Linker) hostInstance(moduleName string) (*Instance, error) {
	if inst, ok := l.builtHost[moduleName]; ok {
		return inst, nil
	}

	entries := l.hostFuncs[moduleName]
	m := &wasm.Module{IsHostModule: true}
	typeOf := map[string]wasm.Index{}
	for _, e := range entries {
		ft := wasm.FunctionType{Params: e.fn.params, Results: e.fn.results}
		ft.EnsureCompiled()
		key := ft.String()
		typeIdx, ok := typeOf[key]
		if !ok {
			typeIdx = wasm.Index(len(m.TypeSection))
			m.TypeSection = append(m.TypeSection, ft)
			typeOf[key] = typeIdx
		}
		m.FunctionSection = append(m.FunctionSection, typeIdx)
		m.CodeSection = append(m.CodeSection, wasm.Code{GoFunc: e.fn.goFunc})
		m.ExportSection = append(m.ExportSection, wasm.Export{
			Type: wasm.ExternTypeFunc, Name: e.name, Index: wasm.Index(len(m.CodeSection) - 1),
		})
	}

	typeIDs := l.store.internTypeIDs(m)
	if err := l.store.engine.CompileModule(l.store.ctx, m, false); err != nil {
		return nil, fmt.Errorf("compile host module %q: %w", moduleName, err)
	}

	inst := &wasm.ModuleInstance{ModuleName: moduleName, Source: m, TypeIDs: typeIDs}
	inst.Exports = make(map[string]wasm.Export, len(m.ExportSection))
	for _, e := range m.ExportSection {
		inst.Exports[e.Name] = e
	}
	eng, err := l.store.engine.NewModuleEngine(m, inst)
	if err != nil {
		return nil, fmt.Errorf("instantiate host module %q: %w", moduleName, err)
	}
	inst.Engine = eng
	eng.DoneInstantiation()

	wrapped := &Instance{store: l.store, name: moduleName, module: m, inst: inst, typeIDs: typeIDs}
	l.builtHost[moduleName] = wrapped
	return wrapped, nil
}

type pendingRef struct {
	global    *wasm.GlobalInstance
	funcIndex wasm.Index
}

type constExprResult struct {
	val              uint64
	pendingFuncIndex *wasm.Index
}

// evalConstExpr evaluates a constant expression against the globals instantiated so far. Per
// the Core Specification, global.get inside a constant expression may only reference an
// imported global, which is always already present in globals by the time locals are evaluated.
func evalConstExpr(ce wasm.ConstantExpression, globals []*wasm.GlobalInstance) (constExprResult, error) {
	switch ce.Opcode {
	case wasm.OpcodeI32Const:
		v, _, err := leb128.LoadInt32(ce.Data)
		return constExprResult{val: uint64(uint32(v))}, err
	case wasm.OpcodeI64Const:
		v, _, err := leb128.LoadInt64(ce.Data)
		return constExprResult{val: uint64(v)}, err
	case wasm.OpcodeF32Const:
		if len(ce.Data) < 4 {
			return constExprResult{}, fmt.Errorf("f32.const: truncated data")
		}
		return constExprResult{val: uint64(binary.LittleEndian.Uint32(ce.Data))}, nil
	case wasm.OpcodeF64Const:
		if len(ce.Data) < 8 {
			return constExprResult{}, fmt.Errorf("f64.const: truncated data")
		}
		return constExprResult{val: binary.LittleEndian.Uint64(ce.Data)}, nil
	case wasm.OpcodeGlobalGet:
		idx, _, err := leb128.LoadUint32(ce.Data)
		if err != nil {
			return constExprResult{}, err
		}
		if int(idx) >= len(globals) {
			return constExprResult{}, fmt.Errorf("global.get %d: out of range (only imported globals are valid here)", idx)
		}
		return constExprResult{val: globals[idx].Val}, nil
	case wasm.OpcodeRefNull:
		return constExprResult{val: 0}, nil
	case wasm.OpcodeRefFunc:
		idx, _, err := leb128.LoadUint32(ce.Data)
		if err != nil {
			return constExprResult{}, err
		}
		fi := wasm.Index(idx)
		return constExprResult{pendingFuncIndex: &fi}, nil
	default:
		return constExprResult{}, fmt.Errorf("unsupported constant expression opcode %#x", ce.Opcode)
	}
}
