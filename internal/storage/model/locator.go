package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Locator resolves model names to paths inside a local directory. When a
// remote store is set, missing models are downloaded into the directory
// on first use.
type Locator struct {
	dir    string
	remote Store
	logger *zap.Logger

	mu sync.Mutex // serializes downloads
}

// NewLocator creates a Locator. An empty dir means the directory of the
// running executable.
func NewLocator(dir string, remote Store, logger *zap.Logger) (*Locator, error) {
	if dir == "" {
		var err error
		if dir, err = ExecutableDir(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{dir: dir, remote: remote, logger: logger}, nil
}

// ExecutableDir returns the directory holding the running binary.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// Dir returns the local model directory.
func (l *Locator) Dir() string {
	return l.dir
}

// Locate returns the local path of the named model. The path is returned
// even when the error is non-nil so callers can report where the file was
// expected.
func (l *Locator) Locate(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return name, err
	}
	local := filepath.Join(l.dir, filepath.FromSlash(name))

	if ok, err := isFile(local); err != nil || ok {
		return local, err
	}
	if l.remote == nil {
		return local, fmt.Errorf("%w: %s", ErrNotFound, local)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another caller may have downloaded it while we waited.
	if ok, err := isFile(local); err != nil || ok {
		return local, err
	}

	data, err := l.remote.Read(ctx, name)
	if err != nil {
		return local, fmt.Errorf("fetching model %s: %w", name, err)
	}
	if err := writeFileAtomic(local, data); err != nil {
		return local, fmt.Errorf("caching model %s: %w", name, err)
	}
	l.logger.Info("model downloaded",
		zap.String("name", name),
		zap.String("path", local),
		zap.Int("bytes", len(data)),
	)
	return local, nil
}

func isFile(p string) (bool, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", p)
	}
	return true, nil
}

// checkName rejects names that would escape the store root.
func checkName(name string) error {
	if name == "" {
		return errors.New("model name required")
	}
	clean := path.Clean(filepath.ToSlash(name))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}
