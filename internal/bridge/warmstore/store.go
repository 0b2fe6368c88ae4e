// Package warmstore implements the Bridge's warm storage tier: a
// memory-mapped, atomically rewritten binary file holding a snapshot of
// every anchor block the Bridge currently knows about
// and the byte-exact layout in §6.
//
// The file layout is grounded directly on
// original_source/.../storage/warm_storage.rs (200-byte padded header,
// entry region, trailing index, temp-file-then-rename commit); the mmap
// library (github.com/edsrzf/mmap-go) is the Go analogue of that file's
// memmap2 dependency and is used elsewhere in the retrieval pack (the
// erigon repo's module graph).
package warmstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
)

// mapped bundles an open file with its current read-only mmap view.
type mapped struct {
	file *os.File
	data mmap.MMap
}

// Store is the mmap-backed warm storage tier.
type Store struct {
	path string

	// mu guards both the current mapping and the index. Readers hold the
	// read lock for the duration of a decode so that a concurrent
	// write_anchors cannot unmap the view out from under them; this gives
	// the "previous mapping stays alive until readers finish" guarantee
	// the same reader-safety guarantee without needing a separate refcount.
	mu    sync.RWMutex
	cur   *mapped
	index map[string]uint64
}

// Open opens or creates warm storage at path. If the file exists, it is
// memory-mapped read-only, the header is validated, and the trailing
// index is loaded. If the file does not exist, an empty store is written
// first via WriteAnchors.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.KindIO, "create warm storage directory", err)
		}
	}

	s := &Store{path: path}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.WriteAnchors(map[string]domain.RuleVector{}); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the current mmap view and underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.cur == nil {
		return nil
	}
	if err := s.cur.data.Unmap(); err != nil {
		return errs.Wrap(errs.KindIO, "unmap warm storage", err)
	}
	err := s.cur.file.Close()
	s.cur = nil
	if err != nil {
		return errs.Wrap(errs.KindIO, "close warm storage file", err)
	}
	return nil
}

// load maps path and parses its header and index.
func (s *Store) load() error {
	f, err := os.OpenFile(s.path, os.O_RDONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindIO, "open warm storage file", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "stat warm storage file", err)
	}
	if info.Size() == 0 {
		_ = f.Close()
		return errs.New(errs.KindConfig, "warm storage file is empty")
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "mmap warm storage file", err)
	}

	indexOffset, err := decodeHeader(m)
	if err != nil {
		_ = m.Unmap()
		_ = f.Close()
		return err
	}

	if indexOffset > uint64(len(m)) {
		_ = m.Unmap()
		_ = f.Close()
		return errs.New(errs.KindSerialization, "index_offset beyond end of file")
	}

	index, err := decodeIndex(m[indexOffset:])
	if err != nil {
		_ = m.Unmap()
		_ = f.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.closeLocked()
	s.cur = &mapped{file: f, data: m}
	s.index = index
	return nil
}

// Get returns the anchor block for rule_id, or ok=false if absent.
func (s *Store) Get(ruleId string) (domain.RuleVector, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset, ok := s.index[ruleId]
	if !ok {
		return domain.RuleVector{}, false, nil
	}
	if s.cur == nil {
		return domain.RuleVector{}, false, errs.New(errs.KindIO, "warm storage not loaded")
	}

	gotId, v, err := decodeEntryAt(s.cur.data, offset)
	if err != nil {
		return domain.RuleVector{}, false, err
	}
	if gotId != ruleId {
		return domain.RuleVector{}, false, errs.New(errs.KindSerialization, "index/entry rule_id mismatch")
	}
	return v, true, nil
}

// LoadAnchors returns the full rule_id -> anchor block mapping.
func (s *Store) LoadAnchors() (map[string]domain.RuleVector, error) {
	s.mu.RLock()
	if s.cur == nil {
		s.mu.RUnlock()
		return nil, errs.New(errs.KindIO, "warm storage not loaded")
	}
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make(map[string]domain.RuleVector, len(ids))
	for _, id := range ids {
		v, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = v
		}
	}
	return out, nil
}

// WriteAnchors performs a full-file rewrite: writes to a sibling temp
// file (padded header, entries, index), fixes up the header's
// index_offset, flushes, renames over the target, then re-maps. The
// rename is the atomic commit point.
func (s *Store) WriteAnchors(anchors map[string]domain.RuleVector) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindIO, "create warm storage temp file", err)
	}

	if _, err := f.Write(encodeHeader(0)); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "write placeholder header", err)
	}

	index := make(map[string]uint64, len(anchors))
	offset := uint64(headerRecordSize)
	for ruleId, v := range anchors {
		buf := encodeEntry(ruleId, v)
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return errs.Wrap(errs.KindIO, "write entry", err)
		}
		index[ruleId] = offset
		offset += uint64(len(buf))
	}

	indexOffset := offset
	if _, err := f.Write(encodeIndex(index)); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "write index", err)
	}

	if _, err := f.WriteAt(encodeHeader(indexOffset), 0); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "rewrite header", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errs.Wrap(errs.KindIO, "sync warm storage temp file", err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.KindIO, "close warm storage temp file", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return errs.Wrap(errs.KindIO, "rename warm storage temp file", err)
	}

	return s.load()
}
