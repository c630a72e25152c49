package loader

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLLoader reads settings from a YAML file.
type YAMLLoader struct {
	source
}

// NewYAMLLoader returns a loader for the YAML file at path.
func NewYAMLLoader(path string) *YAMLLoader {
	return NewYAMLLoaderWithFS(DefaultFS(), path)
}

// NewYAMLLoaderWithFS is NewYAMLLoader reading through fsys.
func NewYAMLLoaderWithFS(fsys FileSystem, path string) *YAMLLoader {
	return &YAMLLoader{source{fs: fsys, path: path}}
}

func (l *YAMLLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

func (l *YAMLLoader) LoadFrom(path string) (map[string]any, error) {
	return l.fromFile(path, decodeYAML)
}

func (l *YAMLLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	return fromReader(r, decodeYAML)
}

func decodeYAML(name string, data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		pe := &ParseError{Path: name, Message: err.Error(), Err: err}
		var terr *yaml.TypeError
		if errors.As(err, &terr) && len(terr.Errors) > 0 {
			pe.Message = terr.Errors[0]
		}
		return nil, pe
	}
	return normalize(m), nil
}

// normalize converts the map[any]any values yaml may produce for nested
// mappings with non-string keys into map[string]any, so DeepMerge sees one
// map type.
func normalize(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalizeValue(vv)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}
