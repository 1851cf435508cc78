package engine

import "fmt"

// Status is an engine return code. Values match Hyperscan's hs_error_t.
type Status int

const (
	ErrInvalid           Status = -1
	ErrNoMemory          Status = -2
	ErrScanTerminated    Status = -3
	ErrCompiler          Status = -4
	ErrDatabaseVersion   Status = -5
	ErrDatabasePlatform  Status = -6
	ErrDatabaseMode      Status = -7
	ErrBadAlign          Status = -8
	ErrBadAlloc          Status = -9
	ErrScratchInUse      Status = -10
	ErrArch              Status = -11
	ErrInsufficientSpace Status = -12
)

var statusMessages = map[Status]string{
	ErrInvalid:           "a parameter passed to this function was invalid",
	ErrNoMemory:          "a memory allocation failed",
	ErrScanTerminated:    "the engine was terminated by callback",
	ErrCompiler:          "the pattern compiler failed",
	ErrDatabaseVersion:   "the given database was built for a different version of the engine",
	ErrDatabasePlatform:  "the given database was built for a different platform",
	ErrDatabaseMode:      "the given database was built for a different mode of operation",
	ErrBadAlign:          "a parameter passed to this function was not correctly aligned",
	ErrBadAlloc:          "the memory allocator did not return correctly aligned memory",
	ErrScratchInUse:      "the scratch region was already in use",
	ErrArch:              "unsupported CPU architecture",
	ErrInsufficientSpace: "provided buffer was too small",
}

func (s Status) Error() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unexpected engine error (%d)", int(s))
}

// Temporary reports whether the failure may go away after the caller frees
// resources and tries again.
func (s Status) Temporary() bool {
	switch s {
	case ErrNoMemory, ErrBadAlloc, ErrScratchInUse:
		return true
	}
	return false
}

// CompileError reports a pattern the engine refused to compile.
type CompileError struct {
	// Index is the position of the offending pattern in the slice passed to
	// Compile, or -1 when the failure is not tied to a single pattern.
	Index   int
	Message string
}

func (e *CompileError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("pattern %d: %s", e.Index, e.Message)
}
