package gltfexport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Format selects the container written by Encode.
type Format string

const (
	// FormatGLTF is JSON with the buffer embedded as a base64 data URI.
	FormatGLTF Format = "gltf"
	// FormatGLB is the binary container with the buffer in the BIN chunk.
	FormatGLB Format = "glb"
)

func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "gltf", "json":
		return FormatGLTF, nil
	case "glb", "binary":
		return FormatGLB, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatGLB {
		return "model/gltf-binary"
	}
	return "model/gltf+json"
}

func (f Format) Extension() string {
	if f == FormatGLB {
		return ".glb"
	}
	return ".gltf"
}

// Encode writes doc in the given format. The document's buffers are rewritten
// in place to match the container: embedded data URIs for JSON, a bare BIN
// chunk for GLB.
func Encode(w io.Writer, doc *gltf.Document, format Format) error {
	enc := gltf.NewEncoder(w)
	switch format {
	case FormatGLB:
		for _, b := range doc.Buffers {
			b.URI = ""
		}
		enc.AsBinary = true
	case FormatGLTF, "":
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
		enc.AsBinary = false
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "failed to encode gltf document")
	}
	return nil
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(doc *gltf.Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded document of either format.
func Decode(r io.Reader) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "failed to read gltf")
	}
	return doc, nil
}
