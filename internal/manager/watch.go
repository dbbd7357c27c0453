package manager

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"prefabeditor/internal/manifest"
	"prefabeditor/internal/world"
)

// startWatcherLocked watches the manifest directory and the template base
// path. Remote manifests are not watched.
func (m *Manager) startWatcherLocked(ctx context.Context) error {
	if isURL(m.opts.ManifestPath) {
		return fmt.Errorf("manager: cannot watch remote manifest %s", m.opts.ManifestPath)
	}

	dirs := []string{filepath.Dir(m.opts.ManifestPath)}
	if info, err := os.Stat(m.opts.TemplateBasePath); err == nil && info.IsDir() {
		dirs = append(dirs, m.opts.TemplateBasePath)
	}
	w, err := manifest.NewWatcher(dirs...)
	if err != nil {
		return fmt.Errorf("manager: watch: %w", err)
	}
	m.watcher = w

	m.watchWg.Add(1)
	go func() {
		defer m.watchWg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case path, ok := <-w.Events:
				if !ok {
					return
				}
				m.handleFileChange(ctx, path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("manager: watch error: %v", err)
			}
		}
	}()
	return nil
}

func (m *Manager) handleFileChange(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if samePath(path, m.opts.ManifestPath) {
		data, err := os.ReadFile(path)
		if err != nil || bytes.Equal(data, m.lastManifest) {
			return
		}
		m.status("Manifest changed on disk, reloading")
		_ = m.loadLocked(ctx)
		return
	}

	key, ok := m.templateKey(path)
	if !ok {
		return
	}
	m.world.Templates.Invalidate(key)
	if n := m.rebuildTemplateLocked(ctx, key); n > 0 {
		m.status("Template %s changed, rebuilt %d prefabs", key, n)
	}
}

// templateKey maps a file under the template base path to its template key.
func (m *Manager) templateKey(path string) (string, bool) {
	base, err := filepath.Abs(m.opts.TemplateBasePath)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return world.TemplateKey(filepath.ToSlash(rel)), true
}
