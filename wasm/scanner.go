//go:build wasm

package main

import (
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/praetorian-inc/hsfilter/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func jsonResult(v any, err error, op string) any {
	if err != nil {
		return errorResult(op + " failed: " + err.Error())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(data)
}

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

// newScanner compiles a YAML pattern set with the portable engine.
// JS: HsfilterNewScanner(patternsYAML) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("patterns argument required")
	}

	rules, err := rule.NewLoader().Load([]byte(args[0].String()))
	if err != nil {
		return errorResult("failed to load patterns: " + err.Error())
	}
	core, err := scanner.NewCore(rules, scanner.WithEngine(portable.New()))
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]any{"handle": id}
}

// JS: HsfilterScan(handle, content, source) -> JSON ScanResult or {error}
func scan(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}
	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Scan(args[1].String(), source)
	return jsonResult(result, err, "scan")
}

// JS: HsfilterScanBatch(handle, itemsJSON) -> JSON BatchScanResult or {error}
func scanBatch(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}
	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	result, err := core.ScanBatch(items)
	return jsonResult(result, err, "batch scan")
}

// JS: HsfilterFilter(handle, content, source) -> JSON FilterResult or {error}
func filterContent(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}
	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Filter(args[1].String(), source)
	return jsonResult(result, err, "filter")
}

// JS: HsfilterCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()
	scannersMu.Lock()
	core, ok := scanners[handle]
	delete(scanners, handle)
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}
	if err := core.Close(); err != nil {
		return errorResult("close failed: " + err.Error())
	}
	return nil
}
