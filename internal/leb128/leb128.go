// Package leb128 implements the LEB128 variable-length integer encoding used throughout the
// WebAssembly binary format for indices, counts and immediates.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#integers%E2%91%A4
package leb128

import (
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

// EncodeUint32 encodes v as an unsigned LEB128 value.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 value.
func EncodeUint64(v uint64) []byte {
	var ret []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			ret = append(ret, b|0x80)
		} else {
			ret = append(ret, b)
			return ret
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 value.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 value.
func EncodeInt64(v int64) []byte {
	var ret []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			ret = append(ret, b)
			return ret
		}
		ret = append(ret, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the head of buf, returning the value and
// the number of bytes consumed.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	v, n, err := loadUint(buf, 32, maxVarintLen32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned LEB128 value from the head of buf.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	return loadUint(buf, 64, maxVarintLen64)
}

func loadUint(buf []byte, size int, maxLen int) (ret uint64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		if int(bytesRead) >= maxLen {
			return 0, 0, fmt.Errorf("leb128 integer too long")
		}
		b = buf[bytesRead]
		bytesRead++

		ret |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < size {
		return ret, bytesRead, nil
	}
	if size < 64 {
		mask := uint64(1)<<size - 1
		if ret&^mask != 0 {
			return 0, 0, fmt.Errorf("leb128 integer overflow")
		}
	}
	return ret, bytesRead, nil
}

// LoadInt32 decodes a signed LEB128 value from the head of buf.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	v, n, err := loadInt(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed LEB128 value from the head of buf.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	return loadInt(buf, 64)
}

func loadInt(buf []byte, size int) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		if shift >= size+7 {
			return 0, 0, fmt.Errorf("leb128 integer too long")
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < size && b&0x40 != 0 {
		ret |= -1 << shift
	}
	if shift >= size {
		// Validate that the sign-extension bits beyond size are consistent.
		hi := ret >> uint(size-1)
		if hi != 0 && hi != -1 {
			return 0, 0, fmt.Errorf("leb128 integer overflow")
		}
	}
	return ret, bytesRead, nil
}

// DecodeUint32 decodes an unsigned LEB128 value from r.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	v, n, err := decodeUint(r, 32, maxVarintLen32)
	return uint32(v), n, err
}

func decodeUint(r io.ByteReader, size int, maxLen int) (ret uint64, bytesRead uint64, err error) {
	var shift int
	for {
		if int(bytesRead) >= maxLen {
			return 0, 0, fmt.Errorf("leb128 integer too long")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		bytesRead++
		ret |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return ret, bytesRead, nil
}

// DecodeInt32 decodes a signed LEB128 value from r.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	v, n, err := decodeInt(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed LEB128 value from r.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeInt(r, 64)
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 value (used for block types) as an int64.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeInt(r, 33)
}

func decodeInt(r io.ByteReader, size int) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < size && b&0x40 != 0 {
		ret |= -1 << shift
	}
	return ret, bytesRead, nil
}
