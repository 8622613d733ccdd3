package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gltf-export-service/internal/models"
)

func triangle(z float64) *models.SourceMesh {
	return &models.SourceMesh{
		Vertices: []mgl64.Vec3{{0, 0, z}, {1, 0, z}, {0, 1, z}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:    [][]int{{0, 1, 2}},
	}
}

func TestJoinMeshesOffsetsFaces(t *testing.T) {
	joined, err := JoinMeshes([]*models.SourceMesh{triangle(0), nil, triangle(1)})
	require.NoError(t, err)

	assert.Len(t, joined.Vertices, 6)
	assert.Len(t, joined.Normals, 6)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}}, joined.Faces)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, joined.Vertices[3])
}

func TestJoinMeshesRejectsInconsistentPart(t *testing.T) {
	bad := triangle(0)
	bad.Normals = bad.Normals[:2]

	_, err := JoinMeshes([]*models.SourceMesh{triangle(0), bad})
	var integrity *DataIntegrityError
	assert.True(t, errors.As(err, &integrity))

	bad = triangle(0)
	bad.Faces = [][]int{{0, 1, 3}}
	_, err = JoinMeshes([]*models.SourceMesh{triangle(0), bad})
	assert.True(t, errors.As(err, &integrity))
}

func TestRenderMeshTessellator(t *testing.T) {
	tess := RenderMeshTessellator{}

	mesh := &models.Geometry{Kind: models.KindMesh, Mesh: triangle(0)}
	out, err := tess.Tessellate(mesh)
	require.NoError(t, err)
	assert.Same(t, mesh, out)

	out, err = tess.Tessellate(&models.Geometry{
		Kind:         models.KindBrep,
		RenderMeshes: []*models.SourceMesh{triangle(0), triangle(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindMesh, out.Kind)
	assert.Len(t, out.Mesh.Faces, 2)

	canonical, err := Adapt(out)
	require.NoError(t, err)
	assert.Equal(t, [][3]uint32{{0, 1, 2}, {3, 4, 5}}, canonical.Triangles)
}

func TestRenderMeshTessellatorWithoutMeshes(t *testing.T) {
	tess := RenderMeshTessellator{}

	_, err := tess.Tessellate(&models.Geometry{Kind: models.KindSubD})
	assert.True(t, errors.Is(err, ErrNoTessellation))
	assert.True(t, errors.Is(err, ErrUnsupportedGeometryKind))

	_, err = tess.Tessellate(&models.Geometry{Kind: models.KindLight})
	assert.True(t, errors.Is(err, ErrUnsupportedGeometryKind))
	assert.False(t, errors.Is(err, ErrNoTessellation))
}
