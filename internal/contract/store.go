// Package contract implements the Contract Store: loading,
// locating, validating, archiving, and versioning per-table contracts.
package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// ParseDiagnostic is a non-fatal error discovered while scanning the
// contracts directory; it does not abort discovery of sibling files.
type ParseDiagnostic struct {
	Path string
	Err  error
}

// Store manages the on-disk contracts directory:
// one file per table, archives in a sibling archive/ namespace.
type Store struct {
	dir      string
	archDir  string
	validate *validator.Validate
	log      *zap.Logger

	// mu serializes replace() per file path; reads are lock-free
	// copy-on-read of the parsed representation.
	mu sync.Mutex

	watcher *fsnotify.Watcher
}

// New creates a Store rooted at dir, with archives in dir/archive.
func New(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dir:      dir,
		archDir:  filepath.Join(dir, "archive"),
		validate: validator.New(),
		log:      log,
	}
}

// Watch starts an fsnotify watch on the contracts directory; callback
// is invoked (best-effort) whenever a contract file changes. Optional:
// callers that don't need hot-reload never call this.
func (s *Store) Watch(callback func(event fsnotify.Event)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create contract watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch contracts dir: %w", err)
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if callback != nil {
					callback(ev)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("contract watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the directory watch, if one was started.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Locate resolves a table name to a contract file path. It prefers a
// file whose base name (sans extension) equals table_name; if absent,
// it scans the directory for any contract whose table_name matches.
// Returns ("", nil, false) if no contract is found.
func (s *Store) Locate(table string) (path string, c *models.Contract, found bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(s.dir, table+ext)
		if _, err := os.Stat(candidate); err == nil {
			if parsed, err := s.Load(candidate); err == nil {
				return candidate, parsed, true
			}
		}
	}

	entries, diags := s.scanDir()
	for _, d := range diags {
		s.log.Warn("contract parse diagnostic", zap.String("path", d.Path), zap.Error(d.Err))
	}
	for path, c := range entries {
		if c.TableName == table {
			return path, c, true
		}
	}
	return "", nil, false
}

// List returns every active (non-archived) contract in the directory.
// Parse errors on individual files are reported as diagnostics but do
// not abort discovery of siblings.
func (s *Store) List() (map[string]*models.Contract, []ParseDiagnostic) {
	return s.scanDir()
}

func (s *Store) scanDir() (map[string]*models.Contract, []ParseDiagnostic) {
	result := make(map[string]*models.Contract)
	var diags []ParseDiagnostic

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return result, []ParseDiagnostic{{Path: s.dir, Err: fmt.Errorf("read contracts dir: %w", err)}}
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(s.dir, name)
		c, err := s.Load(path)
		if err != nil {
			diags = append(diags, ParseDiagnostic{Path: path, Err: err})
			continue
		}
		result[path] = c
	}
	return result, diags
}

// Load parses and validates a single contract file.
func (s *Store) Load(path string) (*models.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract %s: %w", path, err)
	}
	var c models.Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse contract %s: %w", path, err)
	}
	if err := s.validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate contract %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate contract %s: %w", path, err)
	}
	return &c, nil
}

// Archive writes a timestamped copy of the active contract into the
// archive namespace, named <table>_v<version>_<YYYYMMDD_HHMMSS>.<ext>.
func (s *Store) Archive(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read contract for archive %s: %w", path, err)
	}
	var c models.Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse contract for archive %s: %w", path, err)
	}

	if err := os.MkdirAll(s.archDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	ext := filepath.Ext(path)
	ts := time.Now().UTC().Format("20060102_150405")
	archName := fmt.Sprintf("%s_v%d_%s%s", c.TableName, c.Info.Version, ts, ext)
	archPath := filepath.Join(s.archDir, archName)

	if err := os.WriteFile(archPath, data, 0o644); err != nil {
		return fmt.Errorf("write archive copy %s: %w", archPath, err)
	}
	return nil
}

// Replace atomically overwrites the active contract file, archiving
// the pre-replace contents first. Replace is serialized per file path.
func (s *Store) Replace(path string, contents []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		if err := s.Archive(path); err != nil {
			return fmt.Errorf("archive before replace %s: %w", path, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, contents, 0o644); err != nil {
		return fmt.Errorf("write temp contract %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

// PathFor returns the canonical path a new contract for table should
// be written to within the store's directory.
func (s *Store) PathFor(table string) string {
	return filepath.Join(s.dir, table+".yaml")
}

// SortedTableNames returns the table names of every active contract, sorted.
func SortedTableNames(contracts map[string]*models.Contract) []string {
	names := make([]string, 0, len(contracts))
	for _, c := range contracts {
		names = append(names, c.TableName)
	}
	sort.Strings(names)
	return names
}
