// Provides a repository persisted as a JSON Lines file.

package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/georepo/internal/binding"
	"github.com/maruel/georepo/internal/errs"
	"github.com/maruel/georepo/internal/repository"
	"github.com/maruel/georepo/internal/repository/memory"
	"github.com/maruel/ksid"
	"github.com/paulmach/orb"
)

var _ repository.Repository[struct{}] = (*Store[struct{}])(nil)

// currentVersion is the current version of the file format.
const currentVersion = "1.0"

// maxLineSize bounds a single record line; large polygons need more than
// bufio.Scanner's default.
const maxLineSize = 64 << 20

var errVersionRequired = errors.New("schema version is required")

// header is the first line of a data file.
type header struct {
	Version  string           `json:"version"`
	Type     string           `json:"type"`
	Revision ksid.ID          `json:"revision"`
	Columns  []binding.Column `json:"columns"`
}

// Validate checks that the header is well-formed.
func (h *header) Validate() error {
	if h.Version == "" {
		return errVersionRequired
	}
	for i, col := range h.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("column %d: type is required", i)
		}
	}
	return nil
}

// matches returns an error if the stored columns differ from the registered
// ones. There is no migration.
func (h *header) matches(typeName string, columns []binding.Column) error {
	if h.Version != currentVersion {
		return errs.Configuration(typeName, fmt.Sprintf("unsupported file version %q", h.Version))
	}
	same := slices.EqualFunc(h.Columns, columns, func(a, b binding.Column) bool {
		return a.Name == b.Name && a.Type == b.Type
	})
	if !same {
		return errs.Configuration(typeName, "stored columns do not match the registered schema")
	}
	return nil
}

// Options configures a Store.
type Options[T any] struct {
	// Codec defaults to JSONCodec.
	Codec Codec[T]
	// Memory configures the in-memory repository serving reads.
	Memory *memory.Options
	// OnReload is called after Watch reloaded the file, with the load error
	// if any.
	OnReload func(err error)
}

// Store is a [repository.Repository] persisted in a JSON Lines file.
//
// The first line is a schema header; each following line is one record.
// Reads are served by an in-memory repository. Inserts append to the file;
// updates and deletes rewrite it atomically. Writers are serialized.
type Store[T any] struct {
	path     string
	set      *binding.AccessorSet[T]
	codec    Codec[T]
	mem      *memory.Repository[T]
	onReload func(error)

	mu       sync.Mutex
	revision ksid.ID
	size     int64
}

// Open loads the file at path, creating its directory if needed. A missing
// file is an empty store; it is created on the first write.
func Open[T any](path string, set *binding.AccessorSet[T], opts *Options[T]) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Storage(fmt.Sprintf("failed to create directory for %s", path), err)
	}
	s := &Store[T]{path: path, set: set, codec: JSONCodec[T]{}}
	var memOpts *memory.Options
	if opts != nil {
		if opts.Codec != nil {
			s.codec = opts.Codec
		}
		memOpts = opts.Memory
		s.onReload = opts.OnReload
	}
	s.mem = memory.New(set, memOpts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store[T]) Path() string {
	return s.path
}

// Memory returns the in-memory repository serving reads, to attach
// indexes.
func (s *Store[T]) Memory() *memory.Repository[T] {
	return s.mem
}

// Title implements [repository.Repository].
func (s *Store[T]) Title() string { return s.mem.Title() }

// Accessors implements [repository.Repository].
func (s *Store[T]) Accessors() *binding.AccessorSet[T] { return s.set }

// SelectByEnvelope implements [repository.Repository].
func (s *Store[T]) SelectByEnvelope(box orb.Bound) ([]T, error) { return s.mem.SelectByEnvelope(box) }

// SelectByGeometry implements [repository.Repository].
func (s *Store[T]) SelectByGeometry(g orb.Geometry) ([]T, error) { return s.mem.SelectByGeometry(g) }

// SelectByPredicate implements [repository.Repository].
func (s *Store[T]) SelectByPredicate(match func(T) bool) ([]T, error) {
	return s.mem.SelectByPredicate(match)
}

// SelectByQuery implements [repository.Repository].
func (s *Store[T]) SelectByQuery(q *repository.Query) ([]T, error) { return s.mem.SelectByQuery(q) }

// SelectOne implements [repository.Repository].
func (s *Store[T]) SelectOne(id uint32) (T, error) { return s.mem.SelectOne(id) }

// Find implements [repository.Repository].
func (s *Store[T]) Find(match func(T) bool) (T, error) { return s.mem.Find(match) }

// All implements [repository.Repository].
func (s *Store[T]) All() ([]T, error) { return s.mem.All() }

// Count implements [repository.Repository].
func (s *Store[T]) Count() (int, error) { return s.mem.Count() }

// Extents implements [repository.Repository].
func (s *Store[T]) Extents() (orb.Bound, error) { return s.mem.Extents() }

// Insert implements [repository.Repository].
//
// Records are appended to the file. If the write fails, they are removed
// from memory again and the error matches errs.ErrStorage.
func (s *Store[T]) Insert(records ...T) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Insert(records...); err != nil {
		return err
	}
	if err := s.append(records); err != nil {
		_, _ = s.mem.Delete(records...)
		return err
	}
	return nil
}

// Update implements [repository.Repository].
func (s *Store[T]) Update(records ...T) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make([]T, 0, len(records))
	for _, rec := range records {
		p, err := s.mem.SelectOne(s.set.ID(rec))
		if err != nil {
			return err
		}
		prev = append(prev, p)
	}
	if err := s.mem.Update(records...); err != nil {
		return err
	}
	if err := s.rewrite(); err != nil {
		_ = s.mem.Update(prev...)
		return err
	}
	return nil
}

// Delete implements [repository.Repository].
func (s *Store[T]) Delete(records ...T) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev []T
	seen := make(map[uint32]struct{}, len(records))
	for _, rec := range records {
		id := s.set.ID(rec)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if p, err := s.mem.SelectOne(id); err == nil {
			prev = append(prev, p)
		}
	}
	return s.remove(prev)
}

// DeleteWhere implements [repository.Repository].
func (s *Store[T]) DeleteWhere(match func(T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.mem.SelectByPredicate(match)
	if err != nil {
		return 0, err
	}
	return s.remove(prev)
}

// Reload rereads the file, replacing the in-memory content.
func (s *Store[T]) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// remove must be called with mu held.
func (s *Store[T]) remove(prev []T) (int, error) {
	if len(prev) == 0 {
		return 0, nil
	}
	n, err := s.mem.Delete(prev...)
	if err != nil {
		return 0, err
	}
	if err := s.rewrite(); err != nil {
		_ = s.mem.Insert(prev...)
		return 0, err
	}
	return n, nil
}

// load must be called with mu held.
func (s *Store[T]) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.revision = 0
			s.size = 0
			return s.mem.Reset()
		}
		return errs.Storage(fmt.Sprintf("failed to open %s", s.path), err)
	}
	defer func() {
		_ = f.Close()
	}()
	st, err := f.Stat()
	if err != nil {
		return errs.Storage(fmt.Sprintf("failed to stat %s", s.path), err)
	}

	h, records, err := s.decode(f)
	if err != nil {
		return err
	}
	if err := s.mem.Reset(records...); err != nil {
		return errs.Storage(fmt.Sprintf("failed to load %s", s.path), err)
	}
	if h != nil {
		s.revision = h.Revision
	} else {
		s.revision = 0
	}
	s.size = st.Size()
	slog.Debug("loaded records", "path", s.path, "count", len(records), "revision", s.revision)
	return nil
}

func (s *Store[T]) decode(r io.Reader) (*header, []T, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var h *header
	var records []T
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if h == nil {
			h = &header{}
			if err := json.Unmarshal(data, h); err != nil {
				return nil, nil, errs.Storage(fmt.Sprintf("failed to unmarshal header in %s", s.path), err)
			}
			if err := h.Validate(); err != nil {
				return nil, nil, errs.Storage(fmt.Sprintf("invalid header in %s", s.path), err)
			}
			if err := h.matches(s.set.Name(), s.set.Columns()); err != nil {
				return nil, nil, err
			}
			continue
		}
		rec, err := s.codec.Unmarshal(data)
		if err != nil {
			return nil, nil, errs.Storage(fmt.Sprintf("failed to unmarshal line %d in %s", line, s.path), err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errs.Storage(fmt.Sprintf("failed to read %s", s.path), err)
	}
	return h, records, nil
}

// append writes records at the end of the file, writing the whole file
// instead when it has no header yet. Must be called with mu held.
func (s *Store[T]) append(records []T) error {
	if s.revision == 0 {
		return s.rewrite()
	}
	var buf bytes.Buffer
	for _, rec := range records {
		if err := s.encode(&buf, rec); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Storage("failed to open file for append", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return errs.Storage("failed to write records", err)
	}
	if err := f.Sync(); err != nil {
		return errs.Storage("failed to sync file", err)
	}
	s.size += int64(buf.Len())
	return nil
}

// rewrite replaces the file with the current content under a new revision.
// Must be called with mu held.
func (s *Store[T]) rewrite() error {
	all, err := s.mem.All()
	if err != nil {
		return err
	}
	h := header{
		Version:  currentVersion,
		Type:     s.set.Name(),
		Revision: ksid.NewID(),
		Columns:  s.set.Columns(),
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return errs.Storage("failed to create temporary file", err)
	}
	name := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(name)
		}
	}()

	w := bufio.NewWriter(tmp)
	data, err := json.Marshal(&h)
	if err != nil {
		return errs.Storage("failed to marshal header", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errs.Storage("failed to write header", err)
	}
	for _, rec := range all {
		if err := s.encode(w, rec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return errs.Storage("failed to flush file", err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.Storage("failed to sync file", err)
	}
	st, err := tmp.Stat()
	if err != nil {
		return errs.Storage("failed to stat file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Storage("failed to close file", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		return errs.Storage("failed to replace file", err)
	}
	ok = true
	s.revision = h.Revision
	s.size = st.Size()
	return nil
}

func (s *Store[T]) encode(w io.Writer, rec T) error {
	data, err := s.codec.Marshal(rec)
	if err != nil {
		if errors.Is(err, errs.ErrMaterialization) {
			return err
		}
		return errs.Storage(fmt.Sprintf("failed to marshal record %d", s.set.ID(rec)), err)
	}
	if bytes.ContainsRune(data, '\n') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return errs.Storage(fmt.Sprintf("failed to compact record %d", s.set.ID(rec)), err)
		}
		data = buf.Bytes()
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return errs.Storage("failed to write record", err)
	}
	return nil
}
