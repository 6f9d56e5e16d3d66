// Package loader turns module files into live implementations.
//
// A module file is a manifest (YAML, TOML, JSON, or CUE) describing a
// function, record, or class whose behaviour is written as text/template
// bodies. Every Load reads the file fresh; there is no path-keyed memo, so a
// changed file always produces a new implementation.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zjrosen/hotswap/internal/domain/live"
	"github.com/zjrosen/hotswap/internal/domain/registry"
)

// ErrLoadFailure wraps every failure to read, parse, or build a module.
var ErrLoadFailure = registry.ErrLoadFailure

// Unit is the result of loading one module file.
type Unit struct {
	// Path is the absolute path the unit was loaded from.
	Path string
	// Source is the file content at load time.
	Source []byte
	// Impl is a freshly built implementation.
	Impl live.Implementation
}

// Digest returns the hex SHA-256 of the unit's source.
func (u *Unit) Digest() string {
	return digest(u.Source)
}

// Loader loads the module at path.
type Loader interface {
	Load(ctx context.Context, path string) (*Unit, error)
}

// Manifest formats, chosen by file extension.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatCUE  = "cue"
)

// Format returns the manifest format of path, or "" for an unsupported
// extension.
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".cue":
		return FormatCUE
	default:
		return ""
	}
}

func loadErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoadFailure, path, err)
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
