package portable

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

const (
	formatVersion = 1
	modeBlock     = 1

	// magic(4) + version(2) + mode(1) + count(4)
	headerSize = 11
	// flags(4) + id(4) + length(4)
	patternHeaderSize = 12
)

var magic = []byte("HSFP")

type database struct {
	patterns []compiled
	literals []string
	size     int

	// gates pools Aho-Corasick matchers over literals; a matcher keeps
	// per-search state so each concurrent scan takes its own.
	gates  sync.Pool
	closed atomic.Bool
}

func (d *database) initGates() {
	if len(d.literals) == 0 {
		return
	}
	literals := d.literals
	d.gates.New = func() any {
		return ahocorasick.NewStringMatcher(literals)
	}
}

// literalsPresent reports, per literal index, whether the literal occurs in
// data.
func (d *database) literalsPresent(data []byte, sc *scratch) []bool {
	if len(d.literals) == 0 {
		return nil
	}

	present := sc.present[:0]
	for range d.literals {
		present = append(present, false)
	}
	sc.present = present

	m := d.gates.Get().(*ahocorasick.Matcher)
	for _, idx := range m.Match(data) {
		present[idx] = true
	}
	d.gates.Put(m)
	return present
}

func (d *database) Size() (int, error) {
	if d.closed.Load() {
		return 0, engine.ErrInvalid
	}
	return d.size, nil
}

func (d *database) Close() error {
	d.closed.Store(true)
	return nil
}

type scratch struct {
	capacity int
	hits     []hit
	present  []bool
	inUse    atomic.Bool
	closed   atomic.Bool
}

// hitSize approximates the memory of one buffered match.
const hitSize = 24

func (s *scratch) Size() (int, error) {
	if s.closed.Load() {
		return 0, engine.ErrInvalid
	}
	return s.capacity * hitSize, nil
}

func (s *scratch) Close() error {
	s.closed.Store(true)
	s.hits = nil
	s.present = nil
	return nil
}

// Serialize encodes db as magic, version, mode and the pattern list. The
// portable engine has no compiled artifact worth persisting, so loading
// recompiles from source.
func (e *Engine) Serialize(db engine.Database) ([]byte, error) {
	d, ok := db.(*database)
	if !ok || d == nil || d.closed.Load() {
		return nil, engine.ErrInvalid
	}

	var buf bytes.Buffer
	buf.Grow(d.size)
	buf.Write(magic)
	_ = binary.Write(&buf, binary.BigEndian, uint16(formatVersion))
	buf.WriteByte(modeBlock)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(d.patterns)))

	for _, p := range d.patterns {
		_ = binary.Write(&buf, binary.BigEndian, uint32(p.src.Flags))
		_ = binary.Write(&buf, binary.BigEndian, uint32(p.src.ID))
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(p.src.Expression)))
		buf.WriteString(p.src.Expression)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a blob produced by Serialize. A blob from another
// engine fails with ErrDatabasePlatform, a different format version with
// ErrDatabaseVersion and a non-block database with ErrDatabaseMode.
func (e *Engine) Deserialize(data []byte) (engine.Database, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(magic)], magic) {
		return nil, engine.ErrDatabasePlatform
	}
	if binary.BigEndian.Uint16(data[4:6]) != formatVersion {
		return nil, engine.ErrDatabaseVersion
	}
	if data[6] != modeBlock {
		return nil, engine.ErrDatabaseMode
	}

	count := binary.BigEndian.Uint32(data[7:11])
	rest := data[headerSize:]
	if uint64(count)*patternHeaderSize > uint64(len(rest)) {
		return nil, engine.ErrInvalid
	}

	patterns := make([]engine.Pattern, 0, count)
	for range count {
		if len(rest) < patternHeaderSize {
			return nil, engine.ErrInvalid
		}
		flags := binary.BigEndian.Uint32(rest[0:4])
		id := binary.BigEndian.Uint32(rest[4:8])
		n := binary.BigEndian.Uint32(rest[8:12])
		rest = rest[patternHeaderSize:]
		if uint64(n) > uint64(len(rest)) {
			return nil, engine.ErrInvalid
		}
		patterns = append(patterns, engine.Pattern{
			Expression: string(rest[:n]),
			Flags:      engine.Flag(flags),
			ID:         uint(id),
		})
		rest = rest[n:]
	}

	db, err := e.Compile(patterns)
	if err != nil {
		return nil, engine.ErrInvalid
	}
	return db, nil
}
