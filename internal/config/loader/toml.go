package loader

import (
	"errors"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader reads settings from a TOML file.
type TOMLLoader struct {
	source
}

// NewTOMLLoader returns a loader for the TOML file at path.
func NewTOMLLoader(path string) *TOMLLoader {
	return NewTOMLLoaderWithFS(DefaultFS(), path)
}

// NewTOMLLoaderWithFS is NewTOMLLoader reading through fsys.
func NewTOMLLoaderWithFS(fsys FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{source{fs: fsys, path: path}}
}

func (l *TOMLLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

func (l *TOMLLoader) LoadFrom(path string) (map[string]any, error) {
	return l.fromFile(path, decodeTOML)
}

func (l *TOMLLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	return fromReader(r, decodeTOML)
}

func decodeTOML(name string, data []byte) (map[string]any, error) {
	var m map[string]any
	err := toml.Unmarshal(data, &m)
	if err == nil {
		return m, nil
	}
	pe := &ParseError{Path: name, Message: err.Error(), Err: err}
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		pe.Line, pe.Column = derr.Position()
	}
	return nil, pe
}
