// Package scene builds the in-memory scene graph from a decoded document.
package scene

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gltf-export-service/internal/geometry"
	"gltf-export-service/internal/materials"
	"gltf-export-service/internal/models"
)

// Warning describes an object that was skipped without failing the conversion.
type Warning struct {
	ObjectIndex int    `json:"objectIndex"`
	ObjectID    string `json:"objectId,omitempty"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason"`
}

// ObjectError ties a fatal error to the object that caused it.
type ObjectError struct {
	Index int
	ID    string
	Err   error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object %d: %v", e.Index, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

// Assembler walks a document and produces a Scene. It holds no per-conversion
// state; every call builds a fresh Scene.
type Assembler struct {
	Tessellator geometry.Tessellator
	Log         *zap.Logger
}

func NewAssembler(tess geometry.Tessellator, log *zap.Logger) *Assembler {
	if tess == nil {
		tess = geometry.RenderMeshTessellator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{Tessellator: tess, Log: log}
}

// Assemble includes objects per policy in document order. Lights, unsupported
// geometry and empty meshes are skipped with a warning; a data integrity error
// aborts the whole assembly and no scene is returned.
func (a *Assembler) Assemble(doc *models.SourceDocument, policy materials.Policy) (*models.Scene, []Warning, error) {
	scene := &models.Scene{Nodes: make([]models.SceneNode, 0, len(doc.Objects))}
	var warnings []Warning

	for i := range doc.Objects {
		obj := &doc.Objects[i]
		if !materials.ShouldInclude(obj, policy) {
			continue
		}

		mesh, err := a.objectMesh(obj)
		if err != nil {
			if errors.Is(err, geometry.ErrUnsupportedGeometryKind) || errors.Is(err, geometry.ErrEmptyMesh) {
				w := Warning{ObjectIndex: i, ObjectID: obj.ID, Kind: string(obj.Geometry.Kind), Reason: err.Error()}
				warnings = append(warnings, w)
				a.Log.Warn("skipping object",
					zap.Int("index", i),
					zap.String("id", obj.ID),
					zap.String("kind", w.Kind),
					zap.Error(err))
				continue
			}
			return nil, warnings, &ObjectError{Index: i, ID: obj.ID, Err: err}
		}

		scene.Nodes = append(scene.Nodes, models.SceneNode{
			Name:        nodeName(obj, i),
			SourceIndex: i,
			SourceID:    obj.ID,
			Hidden:      obj.Attributes.Hidden,
			Mesh:        mesh,
			Material:    materials.Resolve(obj, doc),
		})
	}

	a.Log.Debug("scene assembled",
		zap.Int("objects", len(doc.Objects)),
		zap.Int("nodes", len(scene.Nodes)),
		zap.Int("skipped", len(warnings)))
	return scene, warnings, nil
}

func (a *Assembler) objectMesh(obj *models.SourceObject) (*models.CanonicalMesh, error) {
	if obj.Attributes.Light {
		return nil, errors.Wrap(geometry.ErrUnsupportedGeometryKind, "light object")
	}
	return a.mesh(&obj.Geometry)
}

func (a *Assembler) mesh(g *models.Geometry) (*models.CanonicalMesh, error) {
	if g.Kind != models.KindMesh {
		tessellated, err := a.Tessellator.Tessellate(g)
		if err != nil {
			return nil, err
		}
		g = tessellated
	}
	return geometry.Adapt(g)
}

func nodeName(obj *models.SourceObject, index int) string {
	if obj.Name != "" {
		return obj.Name
	}
	if obj.ID != "" {
		return obj.ID
	}
	return fmt.Sprintf("object_%d", index)
}
