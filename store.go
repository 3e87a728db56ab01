package wazevo

import (
	"context"
	"fmt"
	"sync"

	"github.com/wazevo-rt/wazevo/api"
	wazevoengine "github.com/wazevo-rt/wazevo/internal/engine/wazevo"
	"github.com/wazevo-rt/wazevo/internal/wasm"
	"github.com/wazevo-rt/wazevo/internal/wasm/binary"
)

// defaultMemoryMaxPages is the largest memory size permitted absent an explicit
// StoreConfig.MemoryMaxPages, 65536 pages (4GiB), the limit the Core Specification imposes.
const defaultMemoryMaxPages = 65536

// StoreConfig configures a Store created by NewStore.
type StoreConfig struct {
	// EnabledFeatures gates which instructions the compiler will lower and which binary-format
	// constructs the decoder accepts.
	EnabledFeatures api.CoreFeatures
	// MemoryMaxPages caps the max page count an instantiated memory may grow to, regardless of
	// what a module's own memory type declares.
	MemoryMaxPages uint32
	// EnsureTermination enables the compiler's cooperative-termination checks at loop
	// back-edges and call sites, so a CloseWithExitCode on another goroutine can interrupt a
	// runaway guest.
	EnsureTermination bool
}

// NewStoreConfig returns the default StoreConfig: WebAssembly 1.0 features plus mutable
// globals, and the specification-maximum memory size.
func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		EnabledFeatures: api.CoreFeaturesV1,
		MemoryMaxPages:  defaultMemoryMaxPages,
	}
}

// Store owns the compilation cache and every Instance created from it. Handles obtained from a
// Store (Module, Instance, Func, Global, Table, Memory) must never be passed to a different
// Store: doing so panics with a cross-store-use message the first time an identity check fails.
type Store struct {
	ctx    context.Context
	config *StoreConfig
	engine wasm.Engine

	mux        sync.Mutex
	typeIDs    map[string]wasm.FunctionTypeID
	nextTypeID wasm.FunctionTypeID
}

// NewStore constructs a Store using the given background context and config. A nil config
// defaults via NewStoreConfig.
func NewStore(ctx context.Context, config *StoreConfig) *Store {
	if ctx == nil {
		ctx = context.Background()
	}
	if config == nil {
		config = NewStoreConfig()
	}
	return &Store{
		ctx:     ctx,
		config:  config,
		engine:  wazevoengine.NewEngine(ctx, config.EnabledFeatures),
		typeIDs: map[string]wasm.FunctionTypeID{},
	}
}

// CompileModule decodes and compiles a WebAssembly binary, producing a Module ready to be
// instantiated (possibly many times) by a Linker.
func (s *Store) CompileModule(binaryBytes []byte) (*Module, error) {
	m, err := binary.DecodeModule(binaryBytes)
	if err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	typeIDs := s.internTypeIDs(m)
	if err := s.engine.CompileModule(s.ctx, m, s.config.EnsureTermination); err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	return &Module{store: s, module: m, typeIDs: typeIDs}, nil
}

// internTypeIDs assigns every entry of m.TypeSection a FunctionTypeID unique to this Store,
// reusing the ID already assigned to an equal signature so call_indirect across modules
// instantiated from the same Store can compare IDs directly.
func (s *Store) internTypeIDs(m *wasm.Module) []wasm.FunctionTypeID {
	s.mux.Lock()
	defer s.mux.Unlock()
	ids := make([]wasm.FunctionTypeID, len(m.TypeSection))
	for i := range m.TypeSection {
		m.TypeSection[i].EnsureCompiled()
		key := m.TypeSection[i].String()
		id, ok := s.typeIDs[key]
		if !ok {
			id = s.nextTypeID
			s.nextTypeID++
			s.typeIDs[key] = id
		}
		ids[i] = id
	}
	return ids
}

// Close releases every module this Store has compiled. Instances obtained from it must not be
// used afterward.
func (s *Store) Close() error {
	return s.engine.Close()
}
