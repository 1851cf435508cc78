//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("HsfilterNewScanner", js.FuncOf(newScanner))
	js.Global().Set("HsfilterScan", js.FuncOf(scan))
	js.Global().Set("HsfilterScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("HsfilterFilter", js.FuncOf(filterContent))
	js.Global().Set("HsfilterCloseScanner", js.FuncOf(closeScanner))

	// Keep WASM running
	<-make(chan struct{})
}
