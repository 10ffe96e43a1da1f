// Package kvdoc reads and writes small sidecar documents made of
// "key:=value" lines.
package kvdoc

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const Delimiter = ":="

const maxLineSize = 1 << 20

// Document is an ordered string map. Keys keep the position of their first Set.
type Document struct {
	keys   []string
	values map[string]string
}

func New() *Document {
	return &Document{values: make(map[string]string)}
}

// Load reads path. A missing file is not an error and yields an empty document.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrapf(err, "Can't open %q", path)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse %q", path)
	}
	return d, nil
}

// Parse splits every line on the first delimiter. Lines without one are skipped.
func Parse(r io.Reader) (*Document, error) {
	d := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if i := strings.Index(line, Delimiter); i > -1 {
			if err := d.Set(line[:i], line[i+len(Delimiter):]); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// GetOr returns def when key is absent.
func (d *Document) GetOr(key, def string) string {
	if v, ok := d.values[key]; ok {
		return v
	}
	return def
}

// Check rejects what a save and load would not give back: a key holding the
// delimiter or a line break anywhere.
func Check(key, value string) error {
	switch {
	case strings.Contains(key, Delimiter):
		return errors.Errorf("Key %q contains %q", key, Delimiter)
	case strings.ContainsAny(key, "\r\n"):
		return errors.Errorf("Key %q contains a line break", key)
	case strings.ContainsAny(value, "\r\n"):
		return errors.Errorf("Value of %q contains a line break", key)
	}
	return nil
}

// Set adds or replaces key. The document is unchanged when Check fails.
func (d *Document) Set(key, value string) error {
	if err := Check(key, value); err != nil {
		return err
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return nil
}

func (d *Document) Delete(key string) {
	if _, exists := d.values[key]; !exists {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

func (d *Document) Len() int { return len(d.keys) }

func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, k := range d.keys {
		buf.WriteString(k)
		buf.WriteString(Delimiter)
		buf.WriteString(d.values[k])
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

// Save rewrites the whole file. Data goes to a temp file in the same
// directory first and is renamed over path.
func (d *Document) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "Can't create temp file for %q", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := d.WriteTo(tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "Can't write %q", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "Can't close %q", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "Can't replace %q", path)
	}
	return nil
}
