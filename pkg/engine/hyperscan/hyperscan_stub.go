//go:build !cgo || !hyperscan

package hyperscan

import (
	"errors"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Name is the engine name recorded in cache keys.
const Name = "hyperscan"

// ErrUnavailable is returned by New in builds without Hyperscan.
var ErrUnavailable = errors.New("Hyperscan requires CGO (build with CGO_ENABLED=1 and -tags=hyperscan)")

// New always fails in builds without Hyperscan.
func New() (engine.Engine, error) {
	return nil, ErrUnavailable
}

// Available reports whether this build carries the Hyperscan engine.
func Available() bool { return false }
