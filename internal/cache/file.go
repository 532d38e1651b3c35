package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/grow/internal/podpath"
)

// DefaultFileCacheSize bounds the number of files held in memory.
const DefaultFileCacheSize = 4096

// Reader loads raw file contents by pod path.
type Reader interface {
	ReadFile(podPath string) ([]byte, error)
}

// FileCache holds raw file contents keyed by pod path. Failed reads are not
// cached.
type FileCache struct {
	files  *lru.Cache[string, []byte]
	reader Reader

	hits   int64
	misses int64
}

// NewFileCache creates a file cache reading through reader.
func NewFileCache(reader Reader, size int) (*FileCache, error) {
	if size <= 0 {
		size = DefaultFileCacheSize
	}
	files, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &FileCache{files: files, reader: reader}, nil
}

// Read returns the contents of podPath, reading through on a miss.
func (c *FileCache) Read(podPath string) ([]byte, error) {
	podPath = podpath.Clean(podPath)
	if data, ok := c.files.Get(podPath); ok {
		atomic.AddInt64(&c.hits, 1)
		return data, nil
	}
	atomic.AddInt64(&c.misses, 1)

	data, err := c.reader.ReadFile(podPath)
	if err != nil {
		return nil, err
	}
	c.files.Add(podPath, data)
	return data, nil
}

// Remove drops the cached contents of podPath.
func (c *FileCache) Remove(podPath string) {
	c.files.Remove(podpath.Clean(podPath))
}

// Reset drops every cached file.
func (c *FileCache) Reset() {
	c.files.Purge()
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	return c.files.Len()
}

// Stats returns the hit and miss counters.
func (c *FileCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}
