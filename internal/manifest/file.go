package manifest

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"prefabeditor/internal/prefab"
)

// Fetch reads the raw manifest document from a file path or an http(s) URL.
func Fetch(ctx context.Context, location string) ([]byte, error) {
	if !isURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: %s: %s", location, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	return data, nil
}

// Load fetches and decodes the manifest at location.
func Load(ctx context.Context, location string) ([]prefab.Record, error) {
	data, err := Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}

// SaveFile writes the serialized records to path, replacing any previous
// manifest only once the new one is fully written. It returns the bytes
// written.
func SaveFile(path string, records iter.Seq[prefab.Record]) ([]byte, error) {
	if isURL(path) {
		return nil, fmt.Errorf("write manifest: %s: remote manifests are read-only", path)
	}

	data, err := Serialize(records)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return data, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
