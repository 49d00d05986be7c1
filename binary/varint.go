// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package binary implements the integer encodings of the WebAssembly binary
// format.  Decoders report the number of bytes consumed alongside the value.
package binary

import (
	"encoding/binary"
	"io"
)

// Reader is what the decoders need from a module stream.
type Reader interface {
	io.Reader
	io.ByteScanner
}

// Uint32 reads a little-endian value.
func Uint32(r Reader) (uint32, int, error) {
	var b [4]byte
	n, err := io.ReadFull(r, b[:])
	return binary.LittleEndian.Uint32(b[:]), n, err
}

// Uint64 reads a little-endian value.
func Uint64(r Reader) (uint64, int, error) {
	var b [8]byte
	n, err := io.ReadFull(r, b[:])
	return binary.LittleEndian.Uint64(b[:]), n, err
}

// Varuint1 reads a single-byte flag.
func Varuint1(r Reader) (bool, int, error) {
	x, n, err := readUnsigned(r, 1, "varuint1")
	return x == 1, n, err
}

// Varuint32 reads an unsigned LEB128 value.
func Varuint32(r Reader) (uint32, int, error) {
	x, n, err := readUnsigned(r, 32, "varuint32")
	return uint32(x), n, err
}

// Varuint64 reads an unsigned LEB128 value.
func Varuint64(r Reader) (uint64, int, error) {
	return readUnsigned(r, 64, "varuint64")
}

// Varint7 reads a single-byte signed value, such as a value type.
func Varint7(r Reader) (int8, int, error) {
	x, n, err := readSigned(r, 7, "varint7")
	return int8(x), n, err
}

// Varint32 reads a signed LEB128 value.
func Varint32(r Reader) (int32, int, error) {
	x, n, err := readSigned(r, 32, "varint32")
	return int32(x), n, err
}

// Varint64 reads a signed LEB128 value.
func Varint64(r Reader) (int64, int, error) {
	return readSigned(r, 64, "varint64")
}

// readUnsigned decodes at most ceil(bits/7) bytes.  The unused high bits of
// the final byte must be zero.
func readUnsigned(r Reader, bits uint, name string) (x uint64, n int, err error) {
	for shift := uint(0); ; shift += 7 {
		var b byte
		if b, err = r.ReadByte(); err != nil {
			return
		}
		n++

		if shift+7 >= bits {
			if b&0x80 != 0 {
				err = moduleError(name + " encoding is too long")
				return
			}
			if b>>(bits-shift) != 0 {
				err = moduleError(name + " value is too large")
				return
			}
			x |= uint64(b) << shift
			return
		}

		x |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return
		}
	}
}

// readSigned decodes at most ceil(bits/7) bytes.  The unused high bits of the
// final byte must replicate the sign bit.
func readSigned(r Reader, bits uint, name string) (x int64, n int, err error) {
	for shift := uint(0); ; shift += 7 {
		var b byte
		if b, err = r.ReadByte(); err != nil {
			return
		}
		n++

		last := shift+7 >= bits
		if last {
			if b&0x80 != 0 {
				err = moduleError(name + " encoding is too long")
				return
			}

			k := bits - shift - 1
			if rest := (b & 0x7f) >> k; rest != 0 && rest != 0x7f>>k {
				if b&0x40 != 0 {
					err = moduleError(name + " value is too small")
				} else {
					err = moduleError(name + " value is too large")
				}
				return
			}
		}

		x |= int64(b&0x7f) << shift
		if last || b&0x80 == 0 {
			if b&0x40 != 0 && shift+7 < 64 {
				x |= -1 << (shift + 7)
			}
			return
		}
	}
}

// AppendUint32 appends a little-endian value.
func AppendUint32(b []byte, x uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, x)
}

// AppendUint64 appends a little-endian value.
func AppendUint64(b []byte, x uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, x)
}

// AppendVaruint32 appends the shortest unsigned LEB128 encoding.
func AppendVaruint32(b []byte, x uint32) []byte {
	return AppendVaruint64(b, uint64(x))
}

// AppendVaruint64 appends the shortest unsigned LEB128 encoding.
func AppendVaruint64(b []byte, x uint64) []byte {
	for x >= 0x80 {
		b = append(b, byte(x)|0x80)
		x >>= 7
	}
	return append(b, byte(x))
}

// AppendVarint32 appends the shortest signed LEB128 encoding.
func AppendVarint32(b []byte, x int32) []byte {
	return AppendVarint64(b, int64(x))
}

// AppendVarint64 appends the shortest signed LEB128 encoding.  It also serves
// 33-bit block types.
func AppendVarint64(b []byte, x int64) []byte {
	for {
		c := byte(x & 0x7f)
		x >>= 7

		if (x == 0 && c&0x40 == 0) || (x == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

// AppendName appends a length-prefixed string.
func AppendName(b []byte, s string) []byte {
	b = AppendVaruint32(b, uint32(len(s)))
	return append(b, s...)
}

// AppendSection appends a section id, payload length and payload.
func AppendSection(b []byte, id byte, payload []byte) []byte {
	b = append(b, id)
	b = AppendVaruint32(b, uint32(len(payload)))
	return append(b, payload...)
}

type moduleError string

func (e moduleError) Error() string       { return string(e) }
func (e moduleError) PublicError() string { return string(e) }
func (e moduleError) ModuleError() bool   { return true }
