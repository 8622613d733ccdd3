package geometry

import (
	"github.com/pkg/errors"

	"gltf-export-service/internal/models"
)

// Tessellator is the host capability that turns a brep, extrusion, surface or
// subd into a mesh payload. Mesh payloads are returned unchanged.
type Tessellator interface {
	Tessellate(g *models.Geometry) (*models.Geometry, error)
}

// RenderMeshTessellator uses the render meshes the host cached on the object,
// joined into one mesh.
type RenderMeshTessellator struct{}

func (RenderMeshTessellator) Tessellate(g *models.Geometry) (*models.Geometry, error) {
	if g.Kind == models.KindMesh {
		return g, nil
	}
	if !g.Kind.Tessellatable() {
		return nil, errors.Wrapf(ErrUnsupportedGeometryKind, "kind %q", g.Kind)
	}
	if len(g.RenderMeshes) == 0 {
		return nil, errors.Wrapf(ErrNoTessellation, "kind %q", g.Kind)
	}
	mesh, err := JoinMeshes(g.RenderMeshes)
	if err != nil {
		return nil, err
	}
	return &models.Geometry{Kind: models.KindMesh, Mesh: mesh}, nil
}

// JoinMeshes appends meshes into one, offsetting face indices by the number of
// vertices already present. Nil parts are ignored. Each part must carry one
// normal per vertex and only reference its own vertices.
func JoinMeshes(parts []*models.SourceMesh) (*models.SourceMesh, error) {
	joined := &models.SourceMesh{}
	for iPart, part := range parts {
		if part == nil {
			continue
		}
		if len(part.Normals) != len(part.Vertices) {
			return nil, integrityf("render mesh %d has %d normals for %d vertices",
				iPart, len(part.Normals), len(part.Vertices))
		}
		offset := len(joined.Vertices)
		joined.Vertices = append(joined.Vertices, part.Vertices...)
		joined.Normals = append(joined.Normals, part.Normals...)
		for _, face := range part.Faces {
			shifted := make([]int, len(face))
			for i, v := range face {
				if v < 0 || v >= len(part.Vertices) {
					return nil, integrityf("render mesh %d references vertex %d of %d",
						iPart, v, len(part.Vertices))
				}
				shifted[i] = v + offset
			}
			joined.Faces = append(joined.Faces, shifted)
		}
	}
	return joined, nil
}
