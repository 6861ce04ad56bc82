package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rcowham/cvs2svn-go/model"
)

// Record is implemented by every model type a KeyedWriter/KeyedReader can
// store: item, changeset, symbol, symbol-stats, project and path records
// all carry a stable model.ID (§3).
type Record interface {
	GetID() model.ID
}

// KeyedWriter appends JSON-lines records to a data file, after the magic
// header, and tracks each record's starting byte offset so a sidecar
// index file can be written on Close — the "keyed store with a separate
// offset index" shape named in §6.
type KeyedWriter[T Record] struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	offset int64
	index  map[model.ID]int64
}

// CreateKeyedStore creates path for writing, recording pass in the magic
// header.
func CreateKeyedStore[T Record](path, pass string) (*KeyedWriter[T], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	header := fmt.Sprintf("%s %s\n", magicPrefix, pass)
	if _, err := w.WriteString(header); err != nil {
		f.Close()
		return nil, err
	}
	return &KeyedWriter[T]{
		path:   path,
		f:      f,
		w:      w,
		offset: int64(len(header)),
		index:  make(map[model.ID]int64),
	}, nil
}

// Write appends rec, recording its offset under its id.
func (kw *KeyedWriter[T]) Write(rec T) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshaling %T: %w", rec, err)
	}
	id := rec.GetID()
	if _, dup := kw.index[id]; dup {
		return fmt.Errorf("store: duplicate id %d written to %s", id, kw.path)
	}
	kw.index[id] = kw.offset
	n, err := kw.w.Write(b)
	if err != nil {
		return err
	}
	if err := kw.w.WriteByte('\n'); err != nil {
		return err
	}
	kw.offset += int64(n) + 1
	return nil
}

// Close flushes the data file and writes the sidecar index (path + ".idx"),
// sorted by id for reproducible output.
func (kw *KeyedWriter[T]) Close() error {
	if err := kw.w.Flush(); err != nil {
		kw.f.Close()
		return err
	}
	if err := kw.f.Close(); err != nil {
		return err
	}
	ids := make([]model.ID, 0, len(kw.index))
	for id := range kw.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	idx, err := os.Create(indexPath(kw.path))
	if err != nil {
		return fmt.Errorf("store: creating index for %s: %w", kw.path, err)
	}
	bw := bufio.NewWriter(idx)
	for _, id := range ids {
		fmt.Fprintf(bw, "%d %d\n", id, kw.index[id])
	}
	if err := bw.Flush(); err != nil {
		idx.Close()
		return err
	}
	return idx.Close()
}

func indexPath(dataPath string) string { return dataPath + ".idx" }

// KeyedReader supports both random-access Get(id) (via the offset index)
// and sequential iteration over every record.
type KeyedReader[T Record] struct {
	path  string
	f     *os.File
	size  int64
	Pass  string
	index map[model.ID]int64
}

// OpenKeyedStore opens path and its sidecar index for random access.
func OpenKeyedStore[T Record](path string) (*KeyedReader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r := bufio.NewReader(f)
	pass, err := ReadMagic(r)
	if err != nil {
		f.Close()
		return nil, err
	}

	idxFile, err := os.Open(indexPath(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: opening index for %s: %w", path, err)
	}
	defer idxFile.Close()

	index := make(map[model.ID]int64)
	sc := bufio.NewScanner(idxFile)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: malformed index entry %q: %w", sc.Text(), err)
		}
		off, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: malformed index entry %q: %w", sc.Text(), err)
		}
		index[model.ID(id)] = off
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return &KeyedReader[T]{path: path, f: f, size: st.Size(), Pass: pass, index: index}, nil
}

// Get reads and decodes the record stored under id, if any.
func (kr *KeyedReader[T]) Get(id model.ID) (T, bool, error) {
	var zero T
	off, ok := kr.index[id]
	if !ok {
		return zero, false, nil
	}
	sr := io.NewSectionReader(kr.f, off, kr.size-off)
	r := bufio.NewReader(sr)
	line, err := r.ReadString('\n')
	if err != nil && len(line) == 0 {
		return zero, false, fmt.Errorf("store: reading record %d from %s: %w", id, kr.path, err)
	}
	var rec T
	if err := json.Unmarshal([]byte(strings.TrimSuffix(line, "\n")), &rec); err != nil {
		return zero, false, fmt.Errorf("store: decoding record %d from %s: %w", id, kr.path, err)
	}
	return rec, true, nil
}

// All decodes and returns every record, in ascending id order.
func (kr *KeyedReader[T]) All() ([]T, error) {
	ids := make([]model.ID, 0, len(kr.index))
	for id := range kr.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := kr.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// IDs returns every id present in the store, in ascending order.
func (kr *KeyedReader[T]) IDs() []model.ID {
	ids := make([]model.ID, 0, len(kr.index))
	for id := range kr.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes the underlying data file.
func (kr *KeyedReader[T]) Close() error {
	return kr.f.Close()
}
