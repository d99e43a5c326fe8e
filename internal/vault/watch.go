package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 250 * time.Millisecond

// Watch reports changed note handles in batches until ctx is cancelled.
// Only vaults opened with NewOS can be watched. fsnotify is not recursive,
// so every folder is registered and folders created later are added as
// they appear.
func (v *Vault) Watch(ctx context.Context, debounce time.Duration, onChange func(handles []string)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := v.addDirs(watcher, v.root); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		handles := make([]string, 0, len(pending))
		for h := range pending {
			handles = append(handles, h)
		}
		sort.Strings(handles)
		clear(pending)
		onChange(handles)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := v.addDirs(watcher, event.Name); err != nil {
						v.log.WithError(err).WithField("path", event.Name).Warn("watching new folder")
					}
					continue
				}
			}
			h, ok := v.handleFor(event.Name)
			if !ok {
				continue
			}
			pending[h] = struct{}{}
			timer.Reset(debounce)
		case <-timer.C:
			flush()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			v.log.WithError(err).Warn("vault watcher error")
		}
	}
}

func (v *Vault) addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != v.root {
			rel, err := filepath.Rel(v.root, p)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if strings.HasPrefix(d.Name(), ".") || v.excluded(rel) {
				return filepath.SkipDir
			}
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (v *Vault) handleFor(name string) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		return "", false
	}
	rel, err := filepath.Rel(v.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || v.excluded(rel) {
		return "", false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return rel, true
}
