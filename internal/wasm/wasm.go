// Package wasm includes declarations needed to implement WebAssembly 1.0 (20191205), except
// the decoder and encoder which live in the binary subpackage. This is the internal model
// consumed by the compiler front-end and the host API: sibling to, but independent of, the
// public api package which end-users interact with directly.
package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/wazevo-rt/wazevo/api"
)

// Index is the offset in an index namespace, not necessarily an absolute position in a
// WebAssembly 1.0 (20191205) section. This is because index namespaces are often preceded by a
// corresponding type in the Module.ImportSection.
//
// For example, the function index namespace starts with any ModuleImport whose
// Import.Type is ExternTypeFunc, followed by any Module.FunctionSection.
type Index = uint32

// ValueType is an alias of api.ValueType defined to avoid an import cycle between the
// compiler frontend and the host-facing api package.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeV128      = api.ValueTypeV128
	ValueTypeFuncref   = api.ValueTypeFuncref
	ValueTypeExternref = api.ValueTypeExternref
)

// ValueTypeName is an alias of api.ValueTypeName for convenience inside this package.
func ValueTypeName(t ValueType) string { return api.ValueTypeName(t) }

// ExternType classifies an entry in Module.ImportSection or Module.ExportSection.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
)

// RefType is the type of a reference, either funcref or externref.
type RefType = byte

const (
	RefTypeFuncref   RefType = ValueTypeFuncref
	RefTypeExternref RefType = ValueTypeExternref
)

// Reference is a pointer-sized opaque handle. For funcref, it points to a functionInstance
// held by the engine. For externref, it is the host-supplied value round-tripped unchanged.
// A zero Reference is the null reference.
type Reference = uintptr

// FunctionType is a possibly empty function signature.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A0
type FunctionType struct {
	Params, Results []ValueType

	// ParamNumInUint64 is the number of uint64 values needed to represent Params, counting
	// V128 as two slots.
	ParamNumInUint64 int
	// ResultNumInUint64 is the number of uint64 values needed to represent Results.
	ResultNumInUint64 int

	// string is the cached result of String, populated once on construction by the decoder.
	string string
}

// EnsureCompiled populates the cached derived fields (ParamNumInUint64, ResultNumInUint64,
// string) of t. Called once per decoded type so signature comparisons and formatting are cheap.
func (t *FunctionType) EnsureCompiled() {
	t.ParamNumInUint64 = numInUint64(t.Params)
	t.ResultNumInUint64 = numInUint64(t.Results)
	t.string = typeString(t.Params, t.Results)
}

func numInUint64(types []ValueType) (c int) {
	for _, t := range types {
		if t == ValueTypeV128 {
			c += 2
		} else {
			c++
		}
	}
	return
}

func typeString(params, results []ValueType) string {
	ps := make([]byte, len(params))
	for i, p := range params {
		ps[i] = byte(p)
	}
	rs := make([]byte, len(results))
	for i, r := range results {
		rs[i] = byte(r)
	}
	return fmt.Sprintf("%s-%s", shortValueTypes(ps), shortValueTypes(rs))
}

func shortValueTypes(ts []byte) string {
	ret := make([]byte, len(ts))
	for i, t := range ts {
		switch t {
		case ValueTypeI32:
			ret[i] = 'i'
		case ValueTypeI64:
			ret[i] = 'I'
		case ValueTypeF32:
			ret[i] = 'f'
		case ValueTypeF64:
			ret[i] = 'F'
		case ValueTypeV128:
			ret[i] = 'v'
		case ValueTypeFuncref:
			ret[i] = 'r'
		case ValueTypeExternref:
			ret[i] = 'e'
		default:
			ret[i] = '?'
		}
	}
	return string(ret)
}

// String implements fmt.Stringer.
func (t *FunctionType) String() string { return t.string }

// FunctionTypeID is the unique identifier assigned to a FunctionType within a Store, used so
// call_indirect can cheaply compare a table entry's type against the expected signature
// without comparing FunctionType values structurally.
type FunctionTypeID uint32

// UninitializedTableElementTypeID is the sentinel FunctionTypeID stored in a table slot that
// has never been initialized by an active/declared element segment.
const UninitializedTableElementTypeID FunctionTypeID = 0xffffffff

// GlobalType describes the value type and mutability of a global.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// GlobalInstance represents a global instance in a Store.
type GlobalInstance struct {
	Type GlobalType
	// Val holds the latest value as uint64. For F32/F64, the bits are reinterpreted. For
	// V128, the low 64 bits; Hi holds the upper 64 bits.
	Val, Hi uint64
}

// Global is the binary-decoded representation of a module-defined (non-imported) global.
type Global struct {
	Type    ValueType
	Mutable bool
	Init    ConstantExpression
}

// ConstantExpression represents a constant expression evaluated at instantiation time, used
// to initialize globals, table offsets, and data segment offsets.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#constant-expressions%E2%91%A0
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// Memory describes the limits of a module-defined memory.
type Memory struct {
	Min, Cap, Max uint32
	// IsMaxEncoded is true if the Max size was present in the original binary.
	IsMaxEncoded bool
}

// MemoryPageSize is the unit of memory length in WebAssembly, 64Ki.
const MemoryPageSize = 65536

// MemoryPageSizeInBits satisfies 1 << MemoryPageSizeInBits == MemoryPageSize.
const MemoryPageSizeInBits = 16

// MemoryInstance is the runtime representation of a linear memory, consulted directly (by
// raw pointer) from JIT-compiled code for bounds-checked loads/stores.
type MemoryInstance struct {
	Buffer []byte
	Min, Cap, Max uint32
	Shared        bool
	// Mux guards concurrent Grow calls; reads/writes of Buffer's bytes are not
	// synchronized here (Wasm itself provides no data-race freedom guarantee beyond
	// what atomics ops the thread's proposal describes).
	Mux sync.Mutex
}

// Grow extends the memory by delta pages, returning the previous size in pages, or false if
// it would exceed Max (or the implementation limit of 4GiB).
func (m *MemoryInstance) Grow(delta uint32) (result uint32, ok bool) {
	m.Mux.Lock()
	defer m.Mux.Unlock()

	currentPages := m.Pages()
	if delta == 0 {
		return currentPages, true
	}

	newPages := currentPages + delta
	if newPages > m.Max || newPages < currentPages /* overflow */ {
		return 0, false
	}

	if newPages <= m.Cap/MemoryPageSize {
		m.Buffer = m.Buffer[:newPages*MemoryPageSize]
	} else {
		next := make([]byte, newPages*MemoryPageSize)
		copy(next, m.Buffer)
		m.Buffer = next
		m.Cap = newPages
	}
	return currentPages, true
}

// Pages returns the current size in pages.
func (m *MemoryInstance) Pages() uint32 {
	return uint32(len(m.Buffer)) / MemoryPageSize
}

// Table describes the limits and element type of a module-defined table.
type Table struct {
	Min, Max *uint32
	Type     RefType
}

// TableInstance is the runtime representation of a table of References.
type TableInstance struct {
	References []Reference
	Min        uint32
	Max        *uint32
	Type       RefType
	// TypeIDs holds, for each funcref slot, the FunctionTypeID installed there by an
	// element segment; used by call_indirect to validate the callee's signature.
	TypeIDs []FunctionTypeID
}

// ElementMode classifies how an ElementSegment is initialized.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment represents a table initializer.
type ElementSegment struct {
	OffsetExpr  ConstantExpression
	TableIndex  Index
	Type        RefType
	Init        []Index
	Mode        ElementMode
}

// DataSegment represents a memory initializer.
type DataSegment struct {
	OffsetExpression ConstantExpression
	Init             []byte
	IsPassive        bool
}

// Import represents an entry in Module.ImportSection.
type Import struct {
	Type       ExternType
	Module     string
	Name       string
	DescFunc   Index
	DescTable  Table
	DescMem    Memory
	DescGlobal GlobalType
}

// Export represents an entry in Module.ExportSection.
type Export struct {
	Type  ExternType
	Name  string
	Index Index
}

// Code is the decoded body of a single locally-defined function.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
	// GoFunc is non-nil for a host-defined function, in which case Body/LocalTypes are unused.
	GoFunc interface{}
}

// NameAssoc pairs an Index with a human-readable name, used by the optional custom "name"
// section.
type NameAssoc struct {
	Index Index
	Name  string
}

// NameMap is a collection of NameAssoc sorted by Index, as decoded from the name section.
type NameMap []NameAssoc

// NameSection represents the optional custom "name" section.
type NameSection struct {
	ModuleName    string
	FunctionNames NameMap
	LocalNames    []NameMapPerFunction
}

// NameMapPerFunction pairs a function Index with the NameMap of its locals.
type NameMapPerFunction struct {
	Index   Index
	NameMap NameMap
}

// ModuleID uniquely identifies a Module, derived from the SHA-256 of its binary source so
// that repeated compilations of byte-identical modules can share a single compiledModule.
type ModuleID [sha256Size]byte

const sha256Size = 32

// Module is the decoded representation of a WebAssembly binary, ready for validation and
// compilation. Index namespaces (function, table, memory, global) are the imports of that
// kind, in import order, followed by the module-defined entries in section order.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#modules%E2%91%A0
type Module struct {
	TypeSection     []FunctionType
	ImportSection   []Import
	FunctionSection []Index
	TableSection    []Table
	MemorySection   *Memory
	GlobalSection   []Global
	ExportSection   []Export
	StartSection    *Index
	ElementSection  []ElementSegment
	CodeSection     []Code
	DataSection     []DataSegment

	// NameSection is populated from the optional custom "name" section, nil if absent.
	NameSection *NameSection

	// ID is computed by the decoder from the raw binary and used as a CompiledModule cache
	// key (see Engine.CompileModule / Engine.DeleteCompiledModule).
	ID ModuleID

	// IsHostModule is true for a synthetic Module built to expose GoFunction/GoModuleFunction
	// exports (see Engine.CompileModule's host-module path), never decoded from a binary.
	IsHostModule bool

	// DataCountSection, if non-nil, is the count declared by the optional "data count"
	// section, used to validate bulk-memory memory.init/data.drop instructions without a
	// second pass over DataSection.
	DataCountSection *uint32

	// The following counts are computed once after decoding, since every index namespace is
	// prefixed by the corresponding import count.
	ImportFunctionCount, ImportGlobalCount, ImportMemoryCount, ImportTableCount Index
}

// FunctionDefinitionCount returns the size of the function index namespace.
func (m *Module) FunctionDefinitionCount() int {
	return int(m.ImportFunctionCount) + len(m.FunctionSection)
}

// FunctionDefinition returns a read-only view on a function in the function index
// namespace, whether imported or locally defined.
func (m *Module) FunctionDefinition(index Index) *FunctionDefinition {
	return &FunctionDefinition{m: m, index: index}
}

// TypeOfFunction returns the *FunctionType of the function at the given index in the
// function index namespace.
func (m *Module) TypeOfFunction(idx Index) *FunctionType {
	if idx < m.ImportFunctionCount {
		var cnt Index
		for i := range m.ImportSection {
			imp := &m.ImportSection[i]
			if imp.Type == ExternTypeFunc {
				if cnt == idx {
					return &m.TypeSection[imp.DescFunc]
				}
				cnt++
			}
		}
		panic("BUG: import function index out of range")
	}
	return &m.TypeSection[m.FunctionSection[idx-m.ImportFunctionCount]]
}

// BuildMemoryInstance allocates a fresh MemoryInstance sized per m.MemorySection, or nil if
// the module defines no memory.
func (m *Module) BuildMemoryInstance(sizer api.MemorySizer) *MemoryInstance {
	if m.MemorySection == nil {
		return nil
	}
	mem := m.MemorySection
	var maxPtr *uint32
	if mem.IsMaxEncoded {
		max := mem.Max
		maxPtr = &max
	}
	min, capacity, max := sizer(mem.Min, maxPtr)
	return &MemoryInstance{
		Buffer: make([]byte, uint64(min)*MemoryPageSize, uint64(capacity)*MemoryPageSize),
		Min:    min, Cap: capacity, Max: max,
	}
}

// FunctionDefinition is a read-only view of a single entry of the function index namespace,
// exposed to the host API for introspection (names, signature, import/export status).
type FunctionDefinition struct {
	m     *Module
	index Index
}

// Index returns the position of this function in the function index namespace.
func (f *FunctionDefinition) Index() Index { return f.index }

// Name returns the module-recorded debug name of this function, or "" if absent.
func (f *FunctionDefinition) Name() string {
	if ns := f.m.NameSection; ns != nil {
		for _, a := range ns.FunctionNames {
			if a.Index == f.index {
				return a.Name
			}
		}
	}
	return ""
}

// DebugName implements the same-named method on api.FunctionDefinition.
func (f *FunctionDefinition) DebugName() string {
	if n := f.Name(); n != "" {
		return n
	}
	return fmt.Sprintf(".$%d", f.index)
}

// Import returns the module/name pair if this function is imported.
func (f *FunctionDefinition) Import() (moduleName, name string, isImport bool) {
	if f.index >= f.m.ImportFunctionCount {
		return "", "", false
	}
	var cnt Index
	for i := range f.m.ImportSection {
		imp := &f.m.ImportSection[i]
		if imp.Type == ExternTypeFunc {
			if cnt == f.index {
				return imp.Module, imp.Name, true
			}
			cnt++
		}
	}
	return "", "", false
}

// ExportNames returns every export name this function is exported under.
func (f *FunctionDefinition) ExportNames() (names []string) {
	for i := range f.m.ExportSection {
		e := &f.m.ExportSection[i]
		if e.Type == ExternTypeFunc && e.Index == f.index {
			names = append(names, e.Name)
		}
	}
	return
}

// ParamTypes implements the same-named method on api.FunctionDefinition.
func (f *FunctionDefinition) ParamTypes() []ValueType { return f.m.TypeOfFunction(f.index).Params }

// ResultTypes implements the same-named method on api.FunctionDefinition.
func (f *FunctionDefinition) ResultTypes() []ValueType { return f.m.TypeOfFunction(f.index).Results }

// ModuleInstance represents an instantiated Module, holding the live state (memory, table,
// global and imported-function bindings) against which compiled machine code executes.
type ModuleInstance struct {
	ModuleName string
	Source     *Module

	Globals   []*GlobalInstance
	MemoryInstance *MemoryInstance
	Tables    []*TableInstance

	// TypeIDs is index-correlated with Source.TypeSection, holding the FunctionTypeID
	// assigned to each function type by the Store this module instance belongs to.
	TypeIDs []FunctionTypeID

	Exports map[string]Export

	Engine ModuleEngine

	// CloseNotifier, if set, is invoked exactly once from Close/CloseWithExitCode.
	CloseNotifier func(ctx context.Context) error

	mux      sync.RWMutex
	closed   bool
	exitCode uint32
}

// Close releases the resources held by this instance, equivalent to CloseWithExitCode(ctx, 0).
func (m *ModuleInstance) Close(ctx context.Context) error {
	return m.CloseWithExitCode(ctx, 0)
}

// CloseWithExitCode marks m closed with the given exit code, so in-flight and future calls
// observe a sys.ExitError via FailIfClosed.
func (m *ModuleInstance) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	m.mux.Lock()
	alreadyClosed := m.closed
	m.closed = true
	m.exitCode = exitCode
	m.mux.Unlock()
	if alreadyClosed {
		return nil
	}
	if m.CloseNotifier != nil {
		return m.CloseNotifier(ctx)
	}
	return nil
}

// FailIfClosed returns a sys.ExitError carrying the exit code if m has been closed, used both
// by direct Function.Call paths and by the JIT's cooperative-termination exit-code check.
func (m *ModuleInstance) FailIfClosed() error {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if m.closed {
		return fmt.Errorf("module %q closed with exit_code(%d)", m.ModuleName, m.exitCode)
	}
	return nil
}

// ExportedFunctionIndex looks up the function index namespace position for an exported
// function by name.
func (m *ModuleInstance) ExportedFunctionIndex(name string) (Index, bool) {
	exp, ok := m.Exports[name]
	if !ok || exp.Type != ExternTypeFunc {
		return 0, false
	}
	return exp.Index, true
}

// Engine compiles Module into a form ready for instantiation (CompileModule) and later builds
// a ModuleEngine for each instantiation of a compiled module (NewModuleEngine).
type Engine interface {
	// CompileModule compiles the given module, so that subsequent calls to NewModuleEngine can
	// instantiate it without further lowering. ensureTermination enables the cooperative
	// termination checks consulted at loop back-edges and call sites.
	CompileModule(ctx context.Context, module *Module, ensureTermination bool) error

	// CompiledModuleCount returns the number of modules currently compiled in this engine.
	CompiledModuleCount() uint32

	// DeleteCompiledModule releases the compiled form of module, allowing it to be garbage
	// collected once all instances are closed.
	DeleteCompiledModule(module *Module)

	// NewModuleEngine instantiates module, given its parent ModuleInstance.
	NewModuleEngine(module *Module, instance *ModuleInstance) (ModuleEngine, error)

	// Close releases every resource held by this engine, including all compiled modules.
	Close() error
}

// ModuleEngine implements function calls, imported-function/memory resolution and reference
// acquisition for a single instantiation of a compiled Module.
type ModuleEngine interface {
	// NewFunction returns an api.Function bound to the function at the given index in the
	// function index namespace, whether local or imported.
	NewFunction(index Index) api.Function

	// ResolveImportedFunction binds the import at index to the function indexInImportedModule
	// of importedModuleEngine.
	ResolveImportedFunction(index, indexInImportedModule Index, importedModuleEngine ModuleEngine)

	// ResolveImportedMemory binds this module's imported memory to importedModuleEngine's.
	ResolveImportedMemory(importedModuleEngine ModuleEngine)

	// DoneInstantiation is called once after every import has been resolved and every local
	// global/table/memory has been built, so the engine can finish writing its opaque
	// module-context buffer.
	DoneInstantiation()

	// FunctionInstanceReference returns a Reference suitable for storing in a table slot or
	// passing across the host boundary as a funcref.
	FunctionInstanceReference(funcIndex Index) Reference

	// LookupFunction resolves a call_indirect: given a table and the expected signature,
	// returns the owning ModuleInstance and function index namespace position of the callee.
	LookupFunction(t *TableInstance, typeID FunctionTypeID, tableOffset Index) (*ModuleInstance, Index)
}
