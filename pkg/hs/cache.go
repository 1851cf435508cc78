package hs

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// BlobCache stores engine-native compiled databases keyed by a fingerprint of
// the engine and expression set. pkg/store provides implementations.
type BlobCache interface {
	Get(key string) (blob []byte, ok bool, err error)
	Put(key string, blob []byte) error
}

// Fingerprint returns the cache key for compiling patterns on e.
func Fingerprint(e engine.Engine, patterns []engine.Pattern) string {
	h := sha256.New()
	writeString(h, e.Name())
	writeString(h, e.Version())
	var buf [8]byte
	for _, p := range patterns {
		binary.BigEndian.PutUint32(buf[:4], uint32(p.Flags))
		binary.BigEndian.PutUint32(buf[4:], uint32(p.ID))
		h.Write(buf[:])
		writeString(h, p.Expression)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// compileCached loads patterns from the cache when possible and compiles and
// stores them otherwise. Cache failures never fail the compile.
func compileCached(cfg *config, patterns []engine.Pattern) (engine.Database, error) {
	key := Fingerprint(cfg.engine, patterns)
	logger := cfg.logger.With("key", key, "engine", cfg.engine.Name())

	blob, ok, err := cfg.cache.Get(key)
	switch {
	case err != nil:
		logger.Warn("reading compiled database from cache", "error", err)
	case ok:
		db, err := cfg.engine.Deserialize(blob)
		if err == nil {
			logger.Debug("loaded compiled database from cache")
			return db, nil
		}
		logger.Debug("cached database unusable, recompiling", "error", err)
	}

	db, err := cfg.engine.Compile(patterns)
	if err != nil {
		return nil, err
	}

	blob, err = cfg.engine.Serialize(db)
	if err != nil {
		logger.Warn("serializing compiled database for cache", "error", err)
		return db, nil
	}
	if err := cfg.cache.Put(key, blob); err != nil {
		logger.Warn("writing compiled database to cache", "error", err)
	}
	return db, nil
}
