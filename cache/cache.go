package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache stores rendered article HTML on disk. Entries are keyed by the
// article id and an xxHash of its update time, so an edited article misses
// naturally instead of needing invalidation.
type Cache struct {
	root string
}

func New(root string) *Cache {
	return &Cache{root: root}
}

func (c *Cache) path(id uint, updatedAt time.Time) string {
	hash := xxhash.Sum64String(fmt.Sprintf("%d:%d", id, updatedAt.UnixNano()))
	return filepath.Join(c.root, fmt.Sprintf("%d_%016x.html", id, hash))
}

// Read returns the cached HTML for an article revision, if present.
func (c *Cache) Read(id uint, updatedAt time.Time) (string, bool) {
	content, err := os.ReadFile(c.path(id, updatedAt))
	if err != nil {
		return "", false
	}
	return string(content), true
}

// Write stores rendered HTML for an article revision.
func (c *Cache) Write(id uint, updatedAt time.Time, html string) error {
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path(id, updatedAt), []byte(html), 0644)
}

// Clear removes all cached revisions of an article.
func (c *Cache) Clear(id uint) error {
	pattern := filepath.Join(c.root, fmt.Sprintf("%d_*.html", id))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
