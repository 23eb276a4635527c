// Package evidence writes the run's audit artifacts. Whole-file artifacts
// are written atomically (temp file, fsync, rename) so a crash mid-flush
// never leaves a torn JSON document behind.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Dir is an evidence directory. Safe for concurrent use.
type Dir struct {
	path string
	mu   sync.Mutex
}

// NewDir creates (if needed) and returns the evidence directory.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create dir %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// WriteJSON atomically writes v as indented JSON to name.
func (d *Dir) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("evidence: marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.atomicWrite(name, data)
}

// AppendLine appends v as a single JSON line to name (jsonl). Appends are
// synced per line so the heartbeat survives a hard kill.
func (d *Dir) AppendLine(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("evidence: marshal line %s: %w", name, err)
	}
	data = append(data, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(d.path, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("evidence: open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("evidence: append %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("evidence: sync %s: %w", name, err)
	}
	return nil
}

// atomicWrite writes data to name via temp file + fsync + rename. Caller
// holds the lock.
func (d *Dir) atomicWrite(name string, data []byte) error {
	tmp, err := os.CreateTemp(d.path, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("evidence: temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("evidence: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("evidence: fsync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("evidence: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.path, name)); err != nil {
		return fmt.Errorf("evidence: rename %s: %w", name, err)
	}
	return nil
}

// ManifestEntry is one file's digest in the manifest.
type ManifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// WriteManifest hashes every file in the directory (excluding the manifest
// itself) and writes manifest.json. Call last, after all artifacts exist.
func (d *Dir) WriteManifest() error {
	const manifestName = "manifest.json"

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("evidence: read dir: %w", err)
	}

	var files []ManifestEntry
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestName {
			continue
		}
		sum, size, err := hashFile(filepath.Join(d.path, e.Name()))
		if err != nil {
			return err
		}
		files = append(files, ManifestEntry{Name: e.Name(), Size: size, SHA256: sum})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return d.WriteJSON(manifestName, map[string]any{"files": files})
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("evidence: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("evidence: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ConfigFingerprint is the SHA-256 of the canonical (sorted-key) JSON
// encoding of the config, recorded in engine_report.json so a run's exact
// parameters are verifiable.
func ConfigFingerprint(cfg any) (string, error) {
	// json.Marshal sorts map keys; struct fields encode in declaration order,
	// which is stable for a given build.
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("evidence: fingerprint config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
