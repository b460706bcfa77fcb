// Package publish writes the finished graph document to its destinations.
//
// Every run writes the graph to a local file. Optionally the same bytes are
// uploaded to an S3-compatible bucket so dashboards can read the latest graph
// without access to the crawler host.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Publisher delivers a graph document somewhere.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	fmt.Stringer
}

// All publishes data to every publisher and joins their errors. A failing
// destination does not stop the others.
func All(ctx context.Context, data []byte, pubs ...Publisher) error {
	var errs []error
	for _, p := range pubs {
		if err := p.Publish(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("publish to %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// WriteFile replaces path with data atomically, creating parent directories
// as needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// File writes the document to a local path.
type File struct {
	Path string
}

func (f File) Publish(_ context.Context, data []byte) error {
	return WriteFile(f.Path, data)
}

func (f File) String() string { return f.Path }
