package pipeline

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/mogaika/assetpipe/asset"
)

func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, asset.NewIOError("read", path, err)
	}
	return data, nil
}

func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, asset.NewIOError("open", path, err)
	}
	return f, nil
}

// WriteFile creates path (and its directory) and hands a buffered writer to fn.
func WriteFile(path string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return asset.NewIOError("mkdir", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return asset.NewIOError("create", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return asset.NewIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return asset.NewIOError("close", path, err)
	}
	return nil
}
