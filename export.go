// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package meter

import (
	"strconv"

	"gate.computer/meter/internal/errors"
	"gate.computer/meter/module"
)

// ExportMutableGlobals exports the mutable globals defined by the module
// under the name prefix followed by the global index.  Globals which are
// already exported are exported again.  The number of added exports is
// returned.
func ExportMutableGlobals(m *module.Module, prefix string) (int, error) {
	base := m.NumImportGlobals()

	var names []string
	for i, g := range m.Globals {
		if !g.Type.Mutable() {
			continue
		}

		name := prefix + strconv.FormatUint(uint64(base)+uint64(i), 10)
		if _, found := m.FindExport(name); found {
			return 0, errors.ConfigErrorf("export name %q is already in use", name)
		}
		names = append(names, name)
	}

	n := 0
	for i, g := range m.Globals {
		if g.Type.Mutable() {
			m.AddExport(names[n], module.GlobalKind, base+uint32(i))
			n++
		}
	}
	return n, nil
}
