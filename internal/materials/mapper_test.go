package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gltf-export-service/internal/models"
)

func index(i int) *int { return &i }

func TestResolve(t *testing.T) {
	doc := &models.SourceDocument{
		Materials: []models.Material{
			{Name: "steel", DiffuseColor: [4]uint8{128, 128, 128, 255}},
			{Name: "glass", Transparency: 0.6},
		},
	}

	ref := Resolve(&models.SourceObject{Attributes: models.Attributes{MaterialIndex: index(1)}}, doc)
	require.False(t, ref.IsDefault())
	assert.Equal(t, 1, ref.Index)
	assert.Equal(t, "glass", ref.Material.Name)

	for name, idx := range map[string]*int{
		"absent":       nil,
		"negative":     index(-1),
		"out of range": index(2),
	} {
		ref := Resolve(&models.SourceObject{Attributes: models.Attributes{MaterialIndex: idx}}, doc)
		assert.True(t, ref.IsDefault(), name)
		assert.Equal(t, -1, ref.Index, name)
	}
}

func TestResolveIsACopy(t *testing.T) {
	doc := &models.SourceDocument{Materials: []models.Material{{Name: "a"}}}
	ref := Resolve(&models.SourceObject{Attributes: models.Attributes{MaterialIndex: index(0)}}, doc)

	doc.Materials[0].Name = "changed"
	assert.Equal(t, "a", ref.Material.Name)
}

func TestShouldInclude(t *testing.T) {
	obj := func(s models.SelectionState) *models.SourceObject {
		return &models.SourceObject{Attributes: models.Attributes{Selected: s}}
	}
	states := []models.SelectionState{models.SelectionNone, models.SelectionPartial, models.SelectionFull}

	all := Policy{ExportSelectedOnly: false, Selected: PartialOnly}
	for _, s := range states {
		assert.True(t, ShouldInclude(obj(s), all), "state %s", s)
	}

	cases := []struct {
		predicate Predicate
		want      []bool
	}{
		{AnySelected, []bool{false, true, true}},
		{PartialOnly, []bool{false, true, false}},
		{FullOnly, []bool{false, false, true}},
		{nil, []bool{false, true, true}},
	}
	for _, c := range cases {
		p := Policy{ExportSelectedOnly: true, Selected: c.predicate}
		for i, s := range states {
			assert.Equal(t, c.want[i], ShouldInclude(obj(s), p), "state %s", s)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(true, "partial")
	require.NoError(t, err)
	assert.True(t, p.ExportSelectedOnly)
	assert.True(t, p.Selected(models.SelectionPartial))
	assert.False(t, p.Selected(models.SelectionFull))

	p, err = NewPolicy(false, "")
	require.NoError(t, err)
	assert.True(t, p.Selected(models.SelectionFull))

	_, err = NewPolicy(true, "sometimes")
	assert.Error(t, err)
}
