package materials

import (
	"gltf-export-service/internal/models"
)

// Resolve looks the object's material index up in the document's table. A
// missing, negative or out of range index degrades to the default material.
func Resolve(obj *models.SourceObject, doc *models.SourceDocument) models.MaterialRef {
	index := obj.Attributes.MaterialIndex
	if index == nil {
		return models.DefaultMaterialRef()
	}
	m, ok := doc.Material(*index)
	if !ok {
		return models.DefaultMaterialRef()
	}
	return models.ResolvedMaterialRef(*index, m)
}
