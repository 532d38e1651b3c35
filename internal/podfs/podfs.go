// Package podfs is the pod's blob store: pod paths in, bytes out. It is a
// thin layer over afero so pods can live on disk or in memory.
package podfs

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/podpath"
)

// TmpDir holds in-flight atomic writes.
const TmpDir = podpath.ControlDir + "/tmp"

// FS reads and writes files addressed by pod path.
type FS struct {
	fs afero.Fs
}

// New wraps an afero filesystem whose root is the pod root.
func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS returns a store rooted at dir on the local disk. dir is made
// absolute first; afero's base path check rejects every name under a
// relative base such as ".".
func NewOS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "resolve pod root "+dir)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), abs)), nil
}

// NewMemory returns an empty in-memory store.
func NewMemory() *FS {
	return New(afero.NewMemMapFs())
}

// Afero exposes the underlying filesystem.
func (f *FS) Afero() afero.Fs {
	return f.fs
}

// ReadFile returns the contents of the file at podPath.
func (f *FS) ReadFile(podPath string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, podpath.Clean(podPath))
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "read "+podPath)
	}
	return data, nil
}

// Exists reports whether podPath exists.
func (f *FS) Exists(podPath string) bool {
	ok, err := afero.Exists(f.fs, podpath.Clean(podPath))
	return err == nil && ok
}

// IsDir reports whether podPath is a directory.
func (f *FS) IsDir(podPath string) bool {
	ok, err := afero.IsDir(f.fs, podpath.Clean(podPath))
	return err == nil && ok
}

// ModTime returns the modification time of podPath.
func (f *FS) ModTime(podPath string) (time.Time, error) {
	info, err := f.fs.Stat(podpath.Clean(podPath))
	if err != nil {
		return time.Time{}, errors.WrapIO(err, errors.ErrCodeFileNotFound, "stat "+podPath)
	}
	return info.ModTime(), nil
}

// List returns the pod paths of every regular file under dir, sorted. The
// control directory is never listed.
func (f *FS) List(dir string) ([]string, error) {
	dir = podpath.Clean(dir)
	var out []string
	err := afero.Walk(f.fs, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		p = podpath.Clean(p)
		if info.IsDir() {
			if p == podpath.ControlDir {
				return fs.SkipDir
			}
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "list "+dir)
	}
	sort.Strings(out)
	return out, nil
}

// ListDir returns the immediate entries of dir as pod paths, sorted.
func (f *FS) ListDir(dir string) ([]string, error) {
	dir = podpath.Clean(dir)
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "list "+dir)
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, path.Join(dir, info.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// WriteFile writes data to podPath atomically: the bytes go to a temporary
// file under the control directory first and are then renamed into place,
// so readers never observe a partial file.
func (f *FS) WriteFile(podPath string, data []byte) error {
	podPath = podpath.Clean(podPath)

	if err := f.fs.MkdirAll(TmpDir, 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "create "+TmpDir)
	}
	if err := f.fs.MkdirAll(path.Dir(podPath), 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "create parent of "+podPath)
	}

	tmp, err := afero.TempFile(f.fs, TmpDir, strings.ReplaceAll(path.Base(podPath), "*", "")+".*")
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "create temp file for "+podPath)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmpName)
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "write "+podPath)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(tmpName)
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "close "+podPath)
	}
	if err := f.fs.Rename(tmpName, podPath); err != nil {
		_ = f.fs.Remove(tmpName)
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "rename into "+podPath)
	}
	return nil
}

// Remove deletes podPath. Missing files are not an error.
func (f *FS) Remove(podPath string) error {
	err := f.fs.Remove(podpath.Clean(podPath))
	if err != nil && !os.IsNotExist(err) {
		return errors.WrapIO(err, errors.ErrCodeCacheWrite, "remove "+podPath)
	}
	return nil
}
