// Package decoder turns CAD files on disk into SourceDocuments.
package decoder

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"gltf-export-service/internal/models"
)

var ErrUnsupportedInput = errors.New("unsupported input file type")

// Decoder produces a document from a file. Implementations must not keep the
// returned document.
type Decoder interface {
	Decode(ctx context.Context, path string) (*models.SourceDocument, error)
}

// JSONDecoder reads the JSON interchange form written by external decoders.
type JSONDecoder struct{}

func (JSONDecoder) Decode(ctx context.Context, path string) (*models.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open document")
	}
	defer f.Close()
	return DecodeJSON(f)
}

// DecodeJSON parses a document from r.
func DecodeJSON(r io.Reader) (*models.SourceDocument, error) {
	var doc models.SourceDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse document")
	}
	return &doc, nil
}

// Registry picks a decoder by file extension.
type Registry struct {
	byExt map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Decoder)}
}

// Register maps ext (with or without the leading dot) to d.
func (r *Registry) Register(ext string, d Decoder) {
	r.byExt[normalizeExt(ext)] = d
}

func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) Decode(ctx context.Context, path string) (*models.SourceDocument, error) {
	d, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedInput, "%s", filepath.Base(path))
	}
	return d.Decode(ctx, path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// NewDefaultRegistry registers the JSON interchange decoder for .json and,
// when external has a command, the external decoder for .3dm.
func NewDefaultRegistry(external *ExternalDecoder) *Registry {
	r := NewRegistry()
	r.Register(".json", JSONDecoder{})
	if external != nil && external.Command != "" {
		r.Register(".3dm", external)
	}
	return r
}
