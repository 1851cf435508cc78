package hs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// maxPersistedLength bounds pattern and blob lengths read from a stream so a
// corrupt header cannot trigger a huge allocation.
const maxPersistedLength = 1 << 30

// Save writes the expression table followed by the engine-native blob.
//
// Layout (big endian): int32 count; per expression int32 id (-1 when absent),
// int32 pattern length and UTF-8 pattern bytes, int32 flag count and one
// int32 per flag bit; then int32 blob length and the blob.
//
// Contexts are not persisted. Blobs only load on the engine, version and
// platform that produced them.
func (db *Database) Save(w io.Writer) error {
	return db.SaveSplit(w, w)
}

// SaveSplit writes the expression table to exprW and the blob to dbW.
func (db *Database) SaveSplit(exprW, dbW io.Writer) error {
	if db.closed.Load() {
		return ErrDatabaseClosed
	}

	blob, err := db.eng.Serialize(db.native)
	if err != nil {
		return &EngineError{Op: "serialize database", Err: err}
	}

	bw := bufio.NewWriter(exprW)
	if err := writeExpressions(bw, db.expressions); err != nil {
		return fmt.Errorf("writing expressions: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing expressions: %w", err)
	}

	if err := writeInt32(dbW, int32(len(blob))); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}
	if _, err := dbW.Write(blob); err != nil {
		return fmt.Errorf("writing database: %w", err)
	}
	return nil
}

// Load reads a database written by Save. A blob from an incompatible engine
// version or platform fails with *EngineError wrapping the engine status.
func Load(r io.Reader, opts ...Option) (*Database, error) {
	br := bufio.NewReader(r)
	return LoadSplit(br, br, opts...)
}

// LoadSplit reads a database written by SaveSplit.
func LoadSplit(exprR, dbR io.Reader, opts ...Option) (*Database, error) {
	cfg := newConfig(opts)

	exprs, err := readExpressions(exprR, cfg.contextFunc)
	if err != nil {
		return nil, fmt.Errorf("reading expressions: %w", err)
	}
	byID, err := indexExpressions(exprs)
	if err != nil {
		return nil, err
	}

	blob, err := readBytes(dbR)
	if err != nil {
		return nil, fmt.Errorf("reading database: %w", err)
	}

	native, err := cfg.engine.Deserialize(blob)
	if err != nil {
		return nil, &EngineError{Op: "load database", Err: err}
	}

	db := &Database{
		eng:         cfg.engine,
		native:      native,
		expressions: exprs,
		byID:        byID,
	}
	if err := db.checkIDs(); err != nil {
		_ = native.Close()
		return nil, err
	}
	return db, nil
}

// checkIDs verifies that every pattern id in the engine database resolves to
// a stored expression. Engines that cannot list ids are checked at scan time.
func (db *Database) checkIDs() error {
	lister, ok := db.eng.(engine.PatternLister)
	if !ok {
		return nil
	}
	ids, err := lister.PatternIDs(db.native)
	if err != nil {
		return &EngineError{Op: "load database", Err: err}
	}
	if len(ids) != len(db.expressions) {
		return fmt.Errorf("%w: database holds %d patterns but %d expressions were stored",
			ErrIDConflict, len(ids), len(db.expressions))
	}
	for _, id := range ids {
		if db.lookup(id) == nil {
			return fmt.Errorf("%w: database pattern id %d has no stored expression", ErrIDConflict, id)
		}
	}
	return nil
}

func writeExpressions(w io.Writer, exprs []*Expression) error {
	if err := writeInt32(w, int32(len(exprs))); err != nil {
		return err
	}

	for _, e := range exprs {
		id := int32(-1)
		if e.hasID {
			id = int32(e.id)
		}
		if err := writeInt32(w, id); err != nil {
			return err
		}

		if len(e.pattern) > math.MaxInt32 {
			return fmt.Errorf("pattern of %d bytes is too long to persist", len(e.pattern))
		}
		if err := writeInt32(w, int32(len(e.pattern))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, e.pattern); err != nil {
			return err
		}

		flagBits := e.flags.Bits()
		if err := writeInt32(w, int32(len(flagBits))); err != nil {
			return err
		}
		for _, bit := range flagBits {
			if err := writeInt32(w, int32(bit)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readExpressions(r io.Reader, contextFunc ContextFunc) ([]*Expression, error) {
	count, err := readLength(r)
	if err != nil {
		return nil, err
	}

	exprs := make([]*Expression, 0, min(count, 1024))
	for i := range count {
		id, err := readInt32(r)
		if err != nil {
			return nil, err
		}

		pattern, err := readBytes(r)
		if err != nil {
			return nil, err
		}

		flagCount, err := readLength(r)
		if err != nil {
			return nil, err
		}
		var flags Flag
		for range flagCount {
			bit, err := readInt32(r)
			if err != nil {
				return nil, err
			}
			flags |= Flag(uint32(bit))
		}

		var opts []ExpressionOption
		switch {
		case id >= 0:
			opts = append(opts, WithID(uint(id)))
		case id != -1:
			return nil, fmt.Errorf("expression %d: invalid id %d", i, id)
		}
		if contextFunc != nil {
			opts = append(opts, WithContext(contextFunc(string(pattern), flags)))
		}
		exprs = append(exprs, NewExpression(string(pattern), flags, opts...))
	}
	return exprs, nil
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func readLength(r io.Reader) (int, error) {
	n, err := readInt32(r)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxPersistedLength {
		return 0, fmt.Errorf("corrupt length %d", n)
	}
	return int(n), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
