// Package gltfexport turns an assembled scene into a glTF 2.0 document.
package gltfexport

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"gltf-export-service/internal/models"
)

const DefaultGenerator = "gltf-export-service"

const defaultMaterialName = "default"

// SerializationError reports a scene that cannot be represented in glTF.
type SerializationError struct {
	Node   int
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Node < 0 {
		return "serialize: " + e.Reason
	}
	return fmt.Sprintf("serialize node %d: %s", e.Node, e.Reason)
}

type Options struct {
	Generator string
}

// Serialize writes one mesh with a single triangle primitive and one root
// node per scene node. All vertex data lands in a single buffer.
func Serialize(scene *models.Scene, opts Options) (*gltf.Document, error) {
	if err := checkBufferSize(scene); err != nil {
		return nil, err
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = opts.Generator
	if doc.Asset.Generator == "" {
		doc.Asset.Generator = DefaultGenerator
	}

	mats := newMaterialTable(doc)

	for i := range scene.Nodes {
		node := &scene.Nodes[i]
		if node.Mesh == nil || len(node.Mesh.Triangles) == 0 {
			return nil, &SerializationError{Node: i, Reason: "node has no triangles"}
		}
		if len(node.Mesh.Normals) != len(node.Mesh.Positions) {
			return nil, &SerializationError{Node: i, Reason: "normal count does not match position count"}
		}

		position := writePositions(doc, node.Mesh)
		normal := modeler.WriteNormal(doc, vec3s(node.Mesh.Normals))
		indices := writeIndices(doc, node.Mesh)
		padBuffer(doc)

		material := mats.index(node.Material)
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: node.Name,
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{
					"POSITION": position,
					"NORMAL":   normal,
				},
				Indices:  &indices,
				Material: &material,
			}},
		})

		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: node.Name,
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
			Extras: map[string]interface{}{
				"sourceIndex": node.SourceIndex,
				"sourceId":    node.SourceID,
				"hidden":      node.Hidden,
			},
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	return doc, nil
}

func writePositions(doc *gltf.Document, mesh *models.CanonicalMesh) uint32 {
	accessor := modeler.WritePosition(doc, vec3s(mesh.Positions))
	min, max := mesh.Bounds()
	doc.Accessors[accessor].Min = []float32{min[0], min[1], min[2]}
	doc.Accessors[accessor].Max = []float32{max[0], max[1], max[2]}
	return accessor
}

// writeIndices uses unsigned short indices when every index fits below the
// reserved restart value, unsigned int otherwise.
func writeIndices(doc *gltf.Document, mesh *models.CanonicalMesh) uint32 {
	if mesh.MaxIndex() < math.MaxUint16 {
		flat := make([]uint16, 0, len(mesh.Triangles)*3)
		for _, t := range mesh.Triangles {
			flat = append(flat, uint16(t[0]), uint16(t[1]), uint16(t[2]))
		}
		return modeler.WriteIndices(doc, flat)
	}
	flat := make([]uint32, 0, len(mesh.Triangles)*3)
	for _, t := range mesh.Triangles {
		flat = append(flat, t[0], t[1], t[2])
	}
	return modeler.WriteIndices(doc, flat)
}

// padBuffer keeps the next buffer view 4-byte aligned.
func padBuffer(doc *gltf.Document) {
	if len(doc.Buffers) == 0 {
		return
	}
	buf := doc.Buffers[len(doc.Buffers)-1]
	if rem := len(buf.Data) % 4; rem != 0 {
		buf.Data = append(buf.Data, make([]byte, 4-rem)...)
		buf.ByteLength = uint32(len(buf.Data))
	}
}

func vec3s(in []mgl32.Vec3) [][3]float32 {
	out := make([][3]float32, len(in))
	for i, v := range in {
		out[i] = [3]float32{v[0], v[1], v[2]}
	}
	return out
}

// checkBufferSize rejects scenes whose single buffer would overflow the
// 32-bit byte lengths glTF uses.
func checkBufferSize(scene *models.Scene) error {
	var total uint64
	for i := range scene.Nodes {
		mesh := scene.Nodes[i].Mesh
		if mesh == nil {
			continue
		}
		total += uint64(len(mesh.Positions)) * 12 * 2
		width := uint64(4)
		if mesh.MaxIndex() < math.MaxUint16 {
			width = 2
		}
		total += uint64(len(mesh.Triangles)) * 3 * width
		total += 3
		if total > math.MaxUint32 {
			return &SerializationError{Node: i, Reason: fmt.Sprintf("buffer exceeds %d bytes", uint64(math.MaxUint32))}
		}
	}
	return nil
}

type materialTable struct {
	doc      *gltf.Document
	bySource map[int]uint32
	fallback *uint32
}

func newMaterialTable(doc *gltf.Document) *materialTable {
	return &materialTable{doc: doc, bySource: make(map[int]uint32)}
}

// index returns the glTF material for ref, creating it on first use. Equal
// source indices share one glTF material; every default ref shares another.
func (t *materialTable) index(ref models.MaterialRef) uint32 {
	if ref.IsDefault() {
		if t.fallback == nil {
			i := t.add(defaultMaterial())
			t.fallback = &i
		}
		return *t.fallback
	}
	if i, ok := t.bySource[ref.Index]; ok {
		return i
	}
	i := t.add(convertMaterial(ref.Material, ref.Index))
	t.bySource[ref.Index] = i
	return i
}

func (t *materialTable) add(m *gltf.Material) uint32 {
	t.doc.Materials = append(t.doc.Materials, m)
	return uint32(len(t.doc.Materials) - 1)
}

func defaultMaterial() *gltf.Material {
	return &gltf.Material{
		Name:        defaultMaterialName,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{0.8, 0.8, 0.8, 1},
		},
	}
}

func convertMaterial(m models.Material, index int) *gltf.Material {
	name := m.Name
	if name == "" {
		name = fmt.Sprintf("material_%d", index)
	}
	color := BaseColor(m)
	out := &gltf.Material{
		Name:        name,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
		},
	}
	if color[3] < 1 {
		out.AlphaMode = gltf.AlphaBlend
	}
	return out
}

// BaseColor converts the sRGB diffuse color to a linear base color factor.
// Alpha is the opacity, 1 minus the clamped transparency.
func BaseColor(m models.Material) [4]float32 {
	c := colorful.Color{
		R: float64(m.DiffuseColor[0]) / 255,
		G: float64(m.DiffuseColor[1]) / 255,
		B: float64(m.DiffuseColor[2]) / 255,
	}
	r, g, b := c.LinearRgb()
	alpha := 1 - math.Max(0, math.Min(1, m.Transparency))
	return [4]float32{float32(r), float32(g), float32(b), float32(alpha)}
}
