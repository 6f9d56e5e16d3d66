package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/hotswap/internal/domain/live"
	"github.com/zjrosen/hotswap/internal/log"
)

// exportKey names the section used as the module's export when present.
const exportKey = "default"

// Definition is the decoded form of a manifest export.
type Definition struct {
	Kind    string               `json:"kind"`
	Name    string               `json:"name"`
	Body    string               `json:"body"`
	Returns string               `json:"returns"`
	Params  []string             `json:"params"`
	Fields  map[string]any       `json:"fields"`
	Static  map[string]any       `json:"static"`
	Methods map[string]MethodDef `json:"methods"`
}

// MethodDef is a method body and its return coercion. A bare string in the
// manifest is shorthand for a string-returning body.
type MethodDef struct {
	Body    string `json:"body"`
	Returns string `json:"returns"`
}

// UnmarshalJSON accepts either the object form or a bare body string.
func (m *MethodDef) UnmarshalJSON(data []byte) error {
	var body string
	if err := json.Unmarshal(data, &body); err == nil {
		*m = MethodDef{Body: body}
		return nil
	}
	type plain MethodDef
	return json.Unmarshal(data, (*plain)(m))
}

// ManifestLoader loads manifest files from disk.
type ManifestLoader struct {
	programs *programCache
}

// Ensure ManifestLoader implements Loader.
var _ Loader = (*ManifestLoader)(nil)

// NewManifestLoader creates a loader with its own compiled-template cache.
func NewManifestLoader() *ManifestLoader {
	return &ManifestLoader{programs: newProgramCache()}
}

// CachedPrograms reports how many compiled bodies are cached.
func (l *ManifestLoader) CachedPrograms() int {
	return l.programs.len()
}

// Load reads path and builds a fresh implementation from it.
func (l *ManifestLoader) Load(ctx context.Context, path string) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, loadErr(path, err)
	}
	source, err := os.ReadFile(abs) //nolint:gosec // G304: module path supplied by the caller
	if err != nil {
		return nil, loadErr(abs, err)
	}

	def, err := DecodeDefinition(abs, source)
	if err != nil {
		return nil, loadErr(abs, err)
	}
	impl, err := l.build(ctx, def)
	if err != nil {
		return nil, loadErr(abs, err)
	}

	log.Debug(log.CatLoader, "loaded module", "path", abs, "kind", impl.Kind().String(), "bytes", len(source))
	return &Unit{Path: abs, Source: source, Impl: impl}, nil
}

// DecodeDefinition parses source according to the extension of path and
// returns its export: the "default" section if present, else the document.
func DecodeDefinition(path string, source []byte) (*Definition, error) {
	doc, err := decodeDocument(path, source)
	if err != nil {
		return nil, err
	}
	if export, ok := doc[exportKey].(map[string]any); ok {
		doc = export
	}
	if len(doc) == 0 {
		return nil, errors.New("module has no export")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	def.Fields = normalizeMap(def.Fields)
	def.Static = normalizeMap(def.Static)
	return &def, nil
}

func decodeDocument(path string, source []byte) (map[string]any, error) {
	var doc map[string]any
	switch Format(path) {
	case FormatYAML:
		if err := yaml.Unmarshal(source, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(source, &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(source, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatCUE:
		v := cuecontext.New().CompileBytes(source, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile cue: %w", err)
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("export cue: %w", err)
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse cue export: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported module format %q", filepath.Ext(path))
	}
	return doc, nil
}

// normalizeMap turns json.Number values back into ints or floats.
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeMap(val)
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	default:
		return v
	}
}

func (l *ManifestLoader) build(ctx context.Context, def *Definition) (live.Implementation, error) {
	kindName := def.Kind
	if kindName == "" && def.Body != "" {
		kindName = "function"
	}
	kind, err := live.ParseKind(kindName)
	if err != nil {
		return nil, err
	}

	switch kind {
	case live.KindFunction:
		if def.Body == "" {
			return nil, errors.New("function module requires a body")
		}
		p, err := l.programs.get(ctx, def.Body, def.Returns)
		if err != nil {
			return nil, err
		}
		return p.function(), nil

	case live.KindClass:
		methods, err := l.methods(ctx, def.Methods)
		if err != nil {
			return nil, err
		}
		name := def.Name
		if name == "" {
			name = "anonymous"
		}
		c := live.NewClass(name, def.Params, def.Fields, methods)
		for k, v := range def.Static {
			c.Static().Set(k, v)
		}
		return c, nil

	default:
		methods, err := l.methods(ctx, def.Methods)
		if err != nil {
			return nil, err
		}
		return live.NewObject(def.Fields, methods), nil
	}
}

func (l *ManifestLoader) methods(ctx context.Context, defs map[string]MethodDef) (map[string]live.Method, error) {
	methods := make(map[string]live.Method, len(defs))
	for name, md := range defs {
		p, err := l.programs.get(ctx, md.Body, md.Returns)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", name, err)
		}
		methods[name] = p.method()
	}
	return methods, nil
}
