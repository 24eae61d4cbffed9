package filedialect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"mercator-hq/datastore/pkg/storage"
)

// store implements storage.Dialect over one document file per table.
type store struct {
	method storage.Method
	dir    string
	codec  codec
	logger *slog.Logger

	// mu serializes read-modify-write cycles on every document.
	mu sync.Mutex
}

// OpenJSON opens the JSON file backend rooted at <data_dir>/json.
func OpenJSON(_ context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	return openStore(opts, storage.MethodJSON, "json", jsonCodec{})
}

// OpenYAML opens the YAML file backend rooted at <data_dir>/yaml.
func OpenYAML(_ context.Context, opts storage.FactoryOptions) (storage.Dialect, error) {
	return openStore(opts, storage.MethodYAML, "yaml", yamlCodec{})
}

func openStore(opts storage.FactoryOptions, method storage.Method, subdir string, c codec) (*store, error) {
	dir := filepath.Join(opts.Config.DataDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storage.NewConnectionError(method, dir, nil, fmt.Errorf("create data directory: %w", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("file storage opened", "dir", dir)

	return &store{method: method, dir: dir, codec: c, logger: logger}, nil
}

// Method implements storage.Dialect.
func (s *store) Method() storage.Method {
	return s.method
}

// CreateTable implements storage.Dialect. Documents are schema-less and
// created on first write.
func (s *store) CreateTable(_ context.Context, table string) error {
	_, err := s.path(table)
	return err
}

// CreateColumn implements storage.Dialect. Documents are schema-less.
func (s *store) CreateColumn(_ context.Context, table, _ string) (bool, error) {
	_, err := s.path(table)
	return false, err
}

// Tables implements storage.Dialect.
func (s *store) Tables(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	ext := s.codec.extension()
	var tables []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		tables = append(tables, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(tables)
	return tables, nil
}

// GetValue implements storage.Dialect.
func (s *store) GetValue(_ context.Context, table, target, column string) (storage.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(table)
	if err != nil {
		return storage.None(), err
	}
	v, ok := doc[target][column]
	if !ok {
		return storage.None(), nil
	}
	return storage.Some(v), nil
}

// GetAllValues implements storage.Dialect.
func (s *store) GetAllValues(_ context.Context, table string) (storage.TableData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(table)
	if err != nil {
		return nil, err
	}

	data := make(storage.TableData, len(doc))
	for target, values := range doc {
		data[target] = storage.RecordOf(values)
	}
	return data, nil
}

// SetValue implements storage.Dialect.
func (s *store) SetValue(ctx context.Context, table, target, column, value string) error {
	return s.SetValues(ctx, table, target, storage.Record{column: storage.Some(value)})
}

// SetValues implements storage.Dialect.
func (s *store) SetValues(_ context.Context, table, target string, values storage.Record) error {
	if len(values) == 0 {
		return nil
	}
	return s.update(table, func(doc document) {
		record := doc[target]
		if record == nil {
			record = make(map[string]string, len(values))
		}
		for column, v := range values {
			if v.Valid {
				record[column] = v.String
			} else {
				delete(record, column)
			}
		}
		if len(record) == 0 {
			delete(doc, target)
			return
		}
		doc[target] = record
	})
}

// RemoveValue implements storage.Dialect.
func (s *store) RemoveValue(_ context.Context, table, target, column string) error {
	return s.update(table, func(doc document) {
		record, ok := doc[target]
		if !ok {
			return
		}
		delete(record, column)
		if len(record) == 0 {
			delete(doc, target)
		}
	})
}

// Close implements storage.Dialect.
func (s *store) Close() error {
	return nil
}

// path returns the document path of a table. Table names may not leave
// the data directory.
func (s *store) path(table string) (string, error) {
	if table == "" || table == "." || table == ".." || strings.ContainsAny(table, `/\`) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return filepath.Join(s.dir, table+s.codec.extension()), nil
}

// load reads a document. A missing file is an empty document. Callers
// hold s.mu.
func (s *store) load(table string) (document, error) {
	p, err := s.path(table)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return make(document), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := make(document)
	if err := s.codec.unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", filepath.Base(p), err)
	}
	if doc == nil {
		doc = make(document)
	}
	return doc, nil
}

// update applies fn to a document and writes it back. A document left
// without records is removed from disk.
func (s *store) update(table string, fn func(doc document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(table)
	if err != nil {
		return err
	}
	fn(doc)

	p, _ := s.path(table)
	if len(doc) == 0 {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove empty document: %w", err)
		}
		return nil
	}

	raw, err := s.codec.marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return writeAtomic(p, raw)
}

// writeAtomic replaces path with data through a temporary file in the
// same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
