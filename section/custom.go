// Copyright (c) 2016 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package section

import (
	"bytes"

	"gate.computer/meter/binary"
	"gate.computer/meter/internal"
	"gate.computer/meter/internal/loader"
)

// SplitCustom separates the name from custom section payload.
func SplitCustom(payload []byte) (name string, data []byte, err error) {
	if internal.DontPanic() {
		defer func() { err = internal.Error(recover()) }()
	}

	load := loader.New(bytes.NewReader(payload))
	name = load.String(load.Varuint32(), "custom section name")
	data = payload[load.Tell():]
	return
}

// AppendCustom section including id and length.
func AppendCustom(buf []byte, name string, data []byte) []byte {
	payload := binary.AppendName(nil, name)
	payload = append(payload, data...)
	return binary.AppendSection(buf, byte(Custom), payload)
}
