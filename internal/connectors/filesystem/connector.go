// Package filesystem reads uploads from a local directory tree and watches
// it for changes with fsnotify.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/logger"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// DefaultMaxFileSize skips files larger than this during walks and watches.
const DefaultMaxFileSize = 32 << 20

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("filesystem: connector closed")

// Option configures a Connector.
type Option func(*Connector)

// WithFilter keeps only files whose detected MIME type passes accept.
func WithFilter(accept func(mimeType string) bool) Option {
	return func(c *Connector) {
		c.accept = accept
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// Connector reads a directory tree. Hidden files and directories are skipped.
type Connector struct {
	rootPath    string
	maxFileSize int64
	accept      func(string) bool
	log         *zap.SugaredLogger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a connector rooted at rootPath.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{
		rootPath:    rootPath,
		maxFileSize: DefaultMaxFileSize,
		log:         logger.Named("filesystem"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the directory the connector reads.
func (c *Connector) Root() string {
	return c.rootPath
}

// Validate checks that the root exists and is a directory.
func (c *Connector) Validate(_ context.Context) error {
	info, err := os.Stat(c.rootPath)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", c.rootPath)
	}
	return nil
}

// Walk emits every eligible file under the root. Both channels are closed
// when the walk ends. Unreadable files are logged and skipped; the error
// channel carries at most one error that stopped the walk.
func (c *Connector) Walk(ctx context.Context) (<-chan domain.RawUpload, <-chan error) {
	uploads := make(chan domain.RawUpload)
	errs := make(chan error, 1)

	go func() {
		defer close(uploads)
		defer close(errs)

		if err := c.Validate(ctx); err != nil {
			errs <- err
			return
		}

		err := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				c.log.Warnw("walk error", "path", path, "error", err)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path != c.rootPath && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			upload, ok, err := c.read(path)
			if err != nil {
				c.log.Warnw("skipping unreadable file", "path", path, "error", err)
				return nil
			}
			if !ok {
				return nil
			}

			select {
			case uploads <- upload:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return uploads, errs
}

// read loads one file. ok is false when the file is filtered out.
func (c *Connector) read(path string) (domain.RawUpload, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.RawUpload{}, false, err
	}
	if info.IsDir() || info.Size() > c.maxFileSize {
		return domain.RawUpload{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawUpload{}, false, err
	}

	upload := c.describe(path)
	upload.MIMEType = normalisers.DetectMIME(path, content)
	upload.Content = content
	if c.accept != nil && !c.accept(upload.MIMEType) {
		return domain.RawUpload{}, false, nil
	}
	return upload, true, nil
}

// describe fills the name and key of a path without reading it.
// The key is the slash-separated path relative to the root.
func (c *Connector) describe(path string) domain.RawUpload {
	key := path
	if rel, err := filepath.Rel(c.rootPath, path); err == nil {
		key = rel
	}
	return domain.RawUpload{
		Name: filepath.Base(path),
		Key:  filepath.ToSlash(key),
	}
}

// Watch emits changes under the root until ctx is cancelled or Close is
// called. New subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawChange, error) {
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.watcher != nil {
		c.mu.Unlock()
		return nil, errors.New("filesystem: already watching")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	c.watcher = watcher
	c.mu.Unlock()

	if err := c.addTree(watcher, c.rootPath); err != nil {
		c.mu.Lock()
		c.watcher = nil
		c.mu.Unlock()
		watcher.Close()
		return nil, err
	}

	changes := make(chan domain.RawChange)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(event.Name) {
						if err := c.addTree(watcher, event.Name); err != nil {
							c.log.Warnw("watching new directory", "path", event.Name, "error", err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.log.Warnw("watcher error", "error", err)
			}
		}
	}()

	return changes, nil
}

// addTree registers dir and every non-hidden subdirectory.
func (c *Connector) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != c.rootPath && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent converts an fsnotify event to a change, or nil when the
// event is irrelevant (chmod, directories, hidden or filtered files).
func (c *Connector) handleFsEvent(event fsnotify.Event) *domain.RawChange {
	rel, err := filepath.Rel(c.rootPath, event.Name)
	if err != nil || isHidden(rel) {
		return nil
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return &domain.RawChange{Type: domain.ChangeDeleted, Upload: c.describe(event.Name)}
	}

	var changeType domain.ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = domain.ChangeCreated
	case event.Has(fsnotify.Write):
		changeType = domain.ChangeUpdated
	default:
		return nil
	}

	upload, ok, err := c.read(event.Name)
	if err != nil {
		c.log.Debugw("ignoring event", "path", event.Name, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &domain.RawChange{Type: changeType, Upload: upload}
}

// Close stops the watcher. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
