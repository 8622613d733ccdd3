// Package geometry flattens host meshes into the exporter's canonical mesh.
package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"gltf-export-service/internal/models"
)

// Adapt converts a mesh payload into a CanonicalMesh. Non-mesh kinds must be
// tessellated first; they fail with ErrUnsupportedGeometryKind.
func Adapt(g *models.Geometry) (*models.CanonicalMesh, error) {
	if g == nil || g.Kind != models.KindMesh || g.Mesh == nil {
		kind := models.GeometryKind("")
		if g != nil {
			kind = g.Kind
		}
		return nil, errors.Wrapf(ErrUnsupportedGeometryKind, "kind %q", kind)
	}
	return AdaptMesh(g.Mesh)
}

// AdaptMesh copies vertices and normals in order and triangulates faces.
// A triangle face yields one triangle; a quad yields (f0,f1,f2) and, when
// f2 != f3, (f2,f3,f0).
func AdaptMesh(src *models.SourceMesh) (*models.CanonicalMesh, error) {
	if src == nil {
		return nil, integrityf("mesh payload is missing")
	}
	if len(src.Normals) != len(src.Vertices) {
		return nil, integrityf("%d normals for %d vertices", len(src.Normals), len(src.Vertices))
	}
	if len(src.Vertices) == 0 || len(src.Faces) == 0 {
		return nil, ErrEmptyMesh
	}

	mesh := &models.CanonicalMesh{
		Positions: make([]mgl32.Vec3, len(src.Vertices)),
		Normals:   make([]mgl32.Vec3, len(src.Normals)),
		Triangles: make([][3]uint32, 0, len(src.Faces)*2),
	}
	for i, v := range src.Vertices {
		mesh.Positions[i] = mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	copy(mesh.Normals, src.Normals)

	vertexCount := len(src.Vertices)
	for iFace, face := range src.Faces {
		if len(face) != 3 && len(face) != 4 {
			return nil, integrityf("face %d has %d indices", iFace, len(face))
		}
		var idx [4]uint32
		for i, v := range face {
			if v < 0 || v >= vertexCount {
				return nil, integrityf("face %d references vertex %d of %d", iFace, v, vertexCount)
			}
			idx[i] = uint32(v)
		}

		mesh.Triangles = append(mesh.Triangles, [3]uint32{idx[0], idx[1], idx[2]})
		if len(face) == 4 && idx[2] != idx[3] {
			mesh.Triangles = append(mesh.Triangles, [3]uint32{idx[2], idx[3], idx[0]})
		}
	}

	return mesh, nil
}
