package models

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CanonicalMesh is the exporter's intermediate mesh: flat positions, normals of
// the same length, and triangles indexing into positions.
type CanonicalMesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Triangles [][3]uint32
}

// Bounds returns the component-wise minimum and maximum over all positions.
func (m *CanonicalMesh) Bounds() (min, max mgl32.Vec3) {
	if len(m.Positions) == 0 {
		return min, max
	}
	inf := float32(math.Inf(1))
	min = mgl32.Vec3{inf, inf, inf}
	max = mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range m.Positions {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	return min, max
}

// MaxIndex returns the largest vertex index referenced by the triangles.
func (m *CanonicalMesh) MaxIndex() uint32 {
	var max uint32
	for _, t := range m.Triangles {
		for _, i := range t {
			if i > max {
				max = i
			}
		}
	}
	return max
}

// MaterialRef is either a resolved material (a value copy plus its table index)
// or the default marker.
type MaterialRef struct {
	Index    int
	Material Material
	resolved bool
}

func DefaultMaterialRef() MaterialRef {
	return MaterialRef{Index: -1}
}

func ResolvedMaterialRef(index int, m Material) MaterialRef {
	return MaterialRef{Index: index, Material: m, resolved: true}
}

func (r MaterialRef) IsDefault() bool {
	return !r.resolved
}

type SceneNode struct {
	Name        string
	SourceIndex int
	SourceID    string
	Hidden      bool
	Mesh        *CanonicalMesh
	Material    MaterialRef
}

// Scene is the ordered list of nodes built for one conversion.
type Scene struct {
	Nodes []SceneNode
}
