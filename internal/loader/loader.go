// Copyright (c) 2015 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"io"
	"unicode/utf8"

	"gate.computer/meter/binary"
	"gate.computer/meter/internal/errors"
	"import.name/pan"
)

// L provides panicking reading and integer decoding methods.  It keeps track
// of the read position.
type L struct {
	r   binary.Reader
	pos int64
}

func New(r binary.Reader) *L {
	return &L{r: r}
}

func (load *L) Read(b []byte) (n int, err error) {
	n, err = load.r.Read(b)
	load.pos += int64(n)
	return
}

func (load *L) ReadByte() (b byte, err error) {
	b, err = load.r.ReadByte()
	if err == nil {
		load.pos++
	}
	return
}

func (load *L) UnreadByte() (err error) {
	err = load.r.UnreadByte()
	if err == nil {
		load.pos--
	}
	return
}

// Tell the number of bytes read so far.
func (load *L) Tell() int64 {
	return load.pos
}

func (load *L) Into(buf []byte) {
	_, err := io.ReadFull(load, buf)
	check(err)
}

func (load *L) String(n uint32, name string) string {
	return String(load.Bytes(n), name)
}

func (load *L) Bytes(n uint32) (data []byte) {
	data = make([]byte, n)
	load.Into(data)
	return
}

func (load *L) Byte() byte {
	x, err := load.ReadByte()
	check(err)
	return x
}

func (load *L) Uint32() uint32 {
	x, _, err := binary.Uint32(load)
	check(err)
	return x
}

func (load *L) Uint64() uint64 {
	x, _, err := binary.Uint64(load)
	check(err)
	return x
}

func (load *L) Varint7() int8 {
	x, _, err := binary.Varint7(load)
	check(err)
	return x
}

func (load *L) Varint32() int32 {
	x, _, err := binary.Varint32(load)
	check(err)
	return x
}

func (load *L) Varint64() int64 {
	x, _, err := binary.Varint64(load)
	check(err)
	return x
}

func (load *L) Varuint1() bool {
	x, _, err := binary.Varuint1(load)
	check(err)
	return x
}

func (load *L) Varuint32() uint32 {
	x, _, err := binary.Varuint32(load)
	check(err)
	return x
}

func (load *L) Varuint64() uint64 {
	x, _, err := binary.Varuint64(load)
	check(err)
	return x
}

// Count reads a varuint32 for iteration.
func (load *L) Count(maxCount uint32, name string) []struct{} {
	count := load.Varuint32()
	if count > maxCount {
		pan.Panic(errors.ModuleErrorf("%s count is too large: 0x%x", name, count))
	}
	return make([]struct{}, int(count))
}

// Discard n bytes.
func (load *L) Discard(n uint32) {
	_, err := io.CopyN(io.Discard, load, int64(n))
	check(err)
}

func String(b []byte, name string) string {
	if !utf8.Valid(b) {
		pan.Panic(errors.ModuleErrorf("%s is not a valid UTF-8 string", name))
	}
	return string(b)
}

func check(err error) {
	if err != nil {
		pan.Panic(err)
	}
}
