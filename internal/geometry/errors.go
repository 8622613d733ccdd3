package geometry

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedGeometryKind is returned for payloads that are not a mesh and
	// could not be turned into one.
	ErrUnsupportedGeometryKind = errors.New("unsupported geometry kind")

	// ErrNoTessellation means the tessellator had nothing to offer for a
	// tessellatable kind. It matches ErrUnsupportedGeometryKind.
	ErrNoTessellation = fmt.Errorf("no render mesh available: %w", ErrUnsupportedGeometryKind)

	// ErrEmptyMesh is returned for meshes without vertices or faces.
	ErrEmptyMesh = errors.New("mesh has no vertices or faces")
)

// DataIntegrityError reports a mesh whose counts or indices are inconsistent.
// It means the decoder produced invalid data and is never recovered.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity: " + e.Reason
}

func integrityf(format string, args ...interface{}) error {
	return &DataIntegrityError{Reason: fmt.Sprintf(format, args...)}
}
