// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Program wasm-meter instruments WebAssembly modules with gas metering and
// stack height limiting, and runs them.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCmd()
	cobra.CheckErr(cmd.ExecuteContext(context.Background()))
}
