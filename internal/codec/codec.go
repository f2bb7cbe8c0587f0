// Package codec persists shard contents. A codec only knows how to save a
// sequence of record texts to a path and load it back; the rest of
// shardsort treats the on-disk format as opaque.
package codec

import (
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// Codec saves and loads record texts.
type Codec interface {
	// Name identifies the format, e.g. "text".
	Name() string

	// Save replaces the file at path with lines. The replacement is
	// atomic: concurrent readers see either the old or the new file.
	Save(path string, lines []string) error

	// Load returns the entries stored at path in file order.
	// A missing file yields an empty result and no error.
	Load(path string) ([]string, error)
}

// ErrUnknownFormat is returned by ForFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown shard format")

// ForFormat returns the codec registered under name.
func ForFormat(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "text", "txt":
		return Text{}, nil
	case "xml":
		return XML{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "format %q", name)
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// readFile returns the file contents, or nil for a missing file.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}
