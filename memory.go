package wazevo

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/wazevo-rt/wazevo/api"
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Memory is an instantiated WebAssembly linear memory. Every accessor bounds-checks against the
// live buffer length rather than trusting byteCount/offset arithmetic not to overflow.
type Memory struct {
	inst  *wasm.MemoryInstance
	store *Store
}

var _ api.Memory = (*Memory)(nil)

// Size implements api.Memory.
func (m *Memory) Size(context.Context) uint32 { return uint32(len(m.inst.Buffer)) }

// Grow implements api.Memory.
func (m *Memory) Grow(_ context.Context, deltaPages uint32) (previousPages uint32, ok bool) {
	return m.inst.Grow(deltaPages)
}

func (m *Memory) hasSize(offset, size uint32) bool {
	end := uint64(offset) + uint64(size)
	return end <= uint64(len(m.inst.Buffer))
}

// ReadByte implements api.Memory.
func (m *Memory) ReadByte(_ context.Context, offset uint32) (byte, bool) {
	if !m.hasSize(offset, 1) {
		return 0, false
	}
	return m.inst.Buffer[offset], true
}

// ReadUint16Le implements api.Memory.
func (m *Memory) ReadUint16Le(_ context.Context, offset uint32) (uint16, bool) {
	if !m.hasSize(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.inst.Buffer[offset:]), true
}

// ReadUint32Le implements api.Memory.
func (m *Memory) ReadUint32Le(_ context.Context, offset uint32) (uint32, bool) {
	if !m.hasSize(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.inst.Buffer[offset:]), true
}

// ReadFloat32Le implements api.Memory.
func (m *Memory) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(ctx, offset)
	return math.Float32frombits(v), ok
}

// ReadUint64Le implements api.Memory.
func (m *Memory) ReadUint64Le(_ context.Context, offset uint32) (uint64, bool) {
	if !m.hasSize(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.inst.Buffer[offset:]), true
}

// ReadFloat64Le implements api.Memory.
func (m *Memory) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(ctx, offset)
	return math.Float64frombits(v), ok
}

// Read implements api.Memory.
func (m *Memory) Read(_ context.Context, offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(offset, byteCount) {
		return nil, false
	}
	return m.inst.Buffer[offset : offset+byteCount], true
}

// WriteByte implements api.Memory.
func (m *Memory) WriteByte(_ context.Context, offset uint32, v byte) bool {
	if !m.hasSize(offset, 1) {
		return false
	}
	m.inst.Buffer[offset] = v
	return true
}

// WriteUint16Le implements api.Memory.
func (m *Memory) WriteUint16Le(_ context.Context, offset uint32, v uint16) bool {
	if !m.hasSize(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.inst.Buffer[offset:], v)
	return true
}

// WriteUint32Le implements api.Memory.
func (m *Memory) WriteUint32Le(_ context.Context, offset, v uint32) bool {
	if !m.hasSize(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.inst.Buffer[offset:], v)
	return true
}

// WriteFloat32Le implements api.Memory.
func (m *Memory) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, math.Float32bits(v))
}

// WriteUint64Le implements api.Memory.
func (m *Memory) WriteUint64Le(_ context.Context, offset uint32, v uint64) bool {
	if !m.hasSize(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.inst.Buffer[offset:], v)
	return true
}

// WriteFloat64Le implements api.Memory.
func (m *Memory) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, math.Float64bits(v))
}

// Write implements api.Memory.
func (m *Memory) Write(_ context.Context, offset uint32, v []byte) bool {
	if !m.hasSize(offset, uint32(len(v))) {
		return false
	}
	copy(m.inst.Buffer[offset:], v)
	return true
}
