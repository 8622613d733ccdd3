package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"gltf-export-service/internal/geometry"
	"gltf-export-service/internal/materials"
	"gltf-export-service/internal/models"
)

func quad() *models.SourceMesh {
	return &models.SourceMesh{
		Vertices: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:  []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Faces:    [][]int{{0, 1, 2, 3}},
	}
}

func meshObject(id string, selected models.SelectionState) models.SourceObject {
	return models.SourceObject{
		ID:         id,
		Geometry:   models.Geometry{Kind: models.KindMesh, Mesh: quad()},
		Attributes: models.Attributes{Selected: selected},
	}
}

var everything = materials.Policy{Selected: materials.AnySelected}

func TestAssemblePreservesOrder(t *testing.T) {
	doc := &models.SourceDocument{Objects: []models.SourceObject{
		meshObject("a", models.SelectionNone),
		meshObject("b", models.SelectionNone),
		meshObject("c", models.SelectionNone),
	}}

	scene, warnings, err := NewAssembler(nil, zaptest.NewLogger(t)).Assemble(doc, everything)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, scene.Nodes, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, scene.Nodes[i].SourceID)
		assert.Equal(t, i, scene.Nodes[i].SourceIndex)
	}
}

func TestAssembleSelectedOnly(t *testing.T) {
	doc := &models.SourceDocument{Objects: []models.SourceObject{
		meshObject("a", models.SelectionNone),
		meshObject("b", models.SelectionFull),
		meshObject("c", models.SelectionNone),
	}}
	policy := materials.Policy{ExportSelectedOnly: true, Selected: materials.AnySelected}

	scene, warnings, err := NewAssembler(nil, nil).Assemble(doc, policy)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, scene.Nodes, 1)
	assert.Equal(t, "b", scene.Nodes[0].SourceID)
}

func TestAssembleSkipsUntessellatedBrep(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	doc := &models.SourceDocument{Objects: []models.SourceObject{
		{ID: "solid", Geometry: models.Geometry{Kind: models.KindBrep}},
		meshObject("m", models.SelectionNone),
		{ID: "lamp", Geometry: models.Geometry{Kind: models.KindLight}, Attributes: models.Attributes{Light: true}},
	}}

	scene, warnings, err := NewAssembler(nil, zap.New(core)).Assemble(doc, everything)
	require.NoError(t, err)
	require.Len(t, scene.Nodes, 1)
	assert.Equal(t, "m", scene.Nodes[0].SourceID)

	require.Len(t, warnings, 2)
	assert.Equal(t, 0, warnings[0].ObjectIndex)
	assert.Equal(t, "brep", warnings[0].Kind)
	assert.Equal(t, 2, warnings[1].ObjectIndex)
	assert.Equal(t, 2, logs.FilterMessage("skipping object").Len())
}

func TestAssembleTessellatesBrep(t *testing.T) {
	doc := &models.SourceDocument{Objects: []models.SourceObject{
		{ID: "box", Geometry: models.Geometry{Kind: models.KindExtrusion, RenderMeshes: []*models.SourceMesh{quad(), quad()}}},
	}}

	scene, warnings, err := NewAssembler(geometry.RenderMeshTessellator{}, nil).Assemble(doc, everything)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, scene.Nodes, 1)
	assert.Len(t, scene.Nodes[0].Mesh.Positions, 8)
	assert.Len(t, scene.Nodes[0].Mesh.Triangles, 4)
}

func TestAssembleFailsOnCorruptMesh(t *testing.T) {
	bad := meshObject("bad", models.SelectionNone)
	bad.Geometry.Mesh.Normals = bad.Geometry.Mesh.Normals[:1]
	doc := &models.SourceDocument{Objects: []models.SourceObject{
		meshObject("ok", models.SelectionNone),
		bad,
	}}

	scene, _, err := NewAssembler(nil, nil).Assemble(doc, everything)
	require.Error(t, err)
	assert.Nil(t, scene)

	var objErr *ObjectError
	require.True(t, errors.As(err, &objErr))
	assert.Equal(t, 1, objErr.Index)
	assert.Equal(t, "bad", objErr.ID)

	var integrity *geometry.DataIntegrityError
	assert.True(t, errors.As(err, &integrity))
}

func TestAssembleFailsOnFacelessCorruptMesh(t *testing.T) {
	bad := meshObject("bad", models.SelectionNone)
	bad.Geometry.Mesh.Normals = bad.Geometry.Mesh.Normals[:1]
	bad.Geometry.Mesh.Faces = nil
	doc := &models.SourceDocument{Objects: []models.SourceObject{bad}}

	scene, warnings, err := NewAssembler(nil, nil).Assemble(doc, everything)
	require.Error(t, err)
	assert.Nil(t, scene)
	assert.Empty(t, warnings)

	var integrity *geometry.DataIntegrityError
	assert.True(t, errors.As(err, &integrity), "got %v", err)
	assert.False(t, errors.Is(err, geometry.ErrEmptyMesh))
}

func TestAssembleSkipsLightObjects(t *testing.T) {
	light := meshObject("lamp", models.SelectionNone)
	light.Attributes.Light = true
	doc := &models.SourceDocument{Objects: []models.SourceObject{light, meshObject("ok", models.SelectionNone)}}

	scene, warnings, err := NewAssembler(nil, nil).Assemble(doc, everything)
	require.NoError(t, err)
	require.Len(t, scene.Nodes, 1)
	assert.Equal(t, "ok", scene.Nodes[0].SourceID)
	require.Len(t, warnings, 1)
	assert.Equal(t, 0, warnings[0].ObjectIndex)
	assert.Equal(t, "lamp", warnings[0].ObjectID)
}

func TestAssembleExcludedCorruptMeshIsIgnored(t *testing.T) {
	bad := meshObject("bad", models.SelectionNone)
	bad.Geometry.Mesh.Normals = nil
	doc := &models.SourceDocument{Objects: []models.SourceObject{bad, meshObject("ok", models.SelectionPartial)}}

	scene, _, err := NewAssembler(nil, nil).Assemble(doc, materials.Policy{ExportSelectedOnly: true})
	require.NoError(t, err)
	assert.Len(t, scene.Nodes, 1)
}

func TestAssembleMaterialsAndAttributes(t *testing.T) {
	steel := 0
	missing := 5
	obj := meshObject("a", models.SelectionNone)
	obj.Attributes.MaterialIndex = &steel
	obj.Attributes.Hidden = true
	other := meshObject("", models.SelectionNone)
	other.Attributes.MaterialIndex = &missing

	doc := &models.SourceDocument{
		Objects:   []models.SourceObject{obj, other},
		Materials: []models.Material{{Name: "steel"}},
	}
	scene, _, err := NewAssembler(nil, nil).Assemble(doc, everything)
	require.NoError(t, err)
	require.Len(t, scene.Nodes, 2)

	assert.Equal(t, "steel", scene.Nodes[0].Material.Material.Name)
	assert.True(t, scene.Nodes[0].Hidden)
	assert.True(t, scene.Nodes[1].Material.IsDefault())
	assert.Equal(t, "object_1", scene.Nodes[1].Name)
}
