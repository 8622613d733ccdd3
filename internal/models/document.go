package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// GeometryKind names the payload variant carried by a SourceObject.
type GeometryKind string

const (
	KindMesh      GeometryKind = "mesh"
	KindBrep      GeometryKind = "brep"
	KindExtrusion GeometryKind = "extrusion"
	KindSurface   GeometryKind = "surface"
	KindSubD      GeometryKind = "subd"
	KindLight     GeometryKind = "light"
)

// Tessellatable reports whether the host can turn this kind into a render mesh.
func (k GeometryKind) Tessellatable() bool {
	switch k {
	case KindBrep, KindExtrusion, KindSurface, KindSubD:
		return true
	}
	return false
}

// SelectionState mirrors the host's object selection value:
// 0 not selected, 1 partially selected, 2 fully selected.
type SelectionState int

const (
	SelectionNone SelectionState = iota
	SelectionPartial
	SelectionFull
)

func (s SelectionState) String() string {
	switch s {
	case SelectionNone:
		return "none"
	case SelectionPartial:
		return "partial"
	case SelectionFull:
		return "full"
	}
	return fmt.Sprintf("SelectionState(%d)", int(s))
}

func (s SelectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the numeric host value or its name.
func (s *SelectionState) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < int(SelectionNone) || n > int(SelectionFull) {
			return fmt.Errorf("invalid selection state %d", n)
		}
		*s = SelectionState(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("selection state must be a number or a string: %w", err)
	}
	switch strings.ToLower(name) {
	case "", "none":
		*s = SelectionNone
	case "partial", "partially_selected":
		*s = SelectionPartial
	case "full", "fully_selected":
		*s = SelectionFull
	default:
		return fmt.Errorf("invalid selection state %q", name)
	}
	return nil
}

// SourceDocument is the decoded CAD document handed over by an external decoder.
// It is read-only for the duration of a conversion.
type SourceDocument struct {
	Objects   []SourceObject `json:"objects"`
	Materials []Material     `json:"materials"`
}

// Material returns the table entry for index, or false when the index does not
// address the table.
func (d *SourceDocument) Material(index int) (Material, bool) {
	if index < 0 || index >= len(d.Materials) {
		return Material{}, false
	}
	return d.Materials[index], true
}

type SourceObject struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Geometry   Geometry   `json:"geometry"`
	Attributes Attributes `json:"attributes"`
}

// Attributes are the per-object CAD attributes the exporter cares about.
// A nil or negative MaterialIndex means the default material.
type Attributes struct {
	MaterialIndex *int           `json:"materialIndex,omitempty"`
	Hidden        bool           `json:"hidden,omitempty"`
	Selected      SelectionState `json:"selected"`
	Light         bool           `json:"light,omitempty"`
}

// Geometry is the polymorphic payload of an object. Mesh is set for KindMesh;
// RenderMeshes holds the render meshes the host cached for tessellatable kinds.
type Geometry struct {
	Kind         GeometryKind  `json:"kind"`
	Mesh         *SourceMesh   `json:"mesh,omitempty"`
	RenderMeshes []*SourceMesh `json:"renderMeshes,omitempty"`
}

// SourceMesh is the host's native mesh: double precision vertices, single
// precision normals, and triangle or quad faces.
type SourceMesh struct {
	Vertices []mgl64.Vec3 `json:"vertices"`
	Normals  []mgl32.Vec3 `json:"normals"`
	Faces    [][]int      `json:"faces"`
}

// Material is one entry of the document's material table.
type Material struct {
	Name         string   `json:"name,omitempty"`
	DiffuseColor [4]uint8 `json:"diffuseColor"`
	Transparency float64  `json:"transparency,omitempty"`
}
