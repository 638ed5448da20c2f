package assemble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
)

func testOutline(t *testing.T) *outline.Outline {
	t.Helper()
	o, err := outline.FromFlat(model.DocumentInfo{ID: "FC-1", Title: "Functional Concept"}, []model.FlatHeading{
		{ID: "H-1", Title: "Summary of the Function", OutlineNumber: "1"},
		{ID: "H-1.4", Title: "Function Overview", OutlineNumber: "1.4"},
		{ID: "H-1.4.1", Title: "Intended Use", OutlineNumber: "1.4.1"},
		{ID: "H-2", Title: "Safety Concept", OutlineNumber: "2"},
	})
	require.NoError(t, err)
	return o
}

func assigned(reqID, node string) model.Assignment {
	return model.Assignment{RequirementID: reqID, Status: model.StatusAssigned, TargetNodeID: node, BestNodeID: node}
}

func TestAssemble_PlacesInInputOrder(t *testing.T) {
	o := testOutline(t)
	reqs := []model.Requirement{
		{ID: "R1", Title: "first"},
		{ID: "R2", Title: "second"},
		{ID: "R3", Title: "third"},
		{ID: "R4", Title: "nowhere"},
	}
	log := []model.Assignment{
		assigned("R1", "H-1.4.1"),
		assigned("R2", "H-2"),
		assigned("R3", "H-1.4.1"),
		{RequirementID: "R4", Status: model.StatusUnassignable, BestNodeID: "H-1"},
	}

	tree, err := Assemble(o, reqs, log)
	require.NoError(t, err)

	assert.Equal(t, "FC-1", tree.Document.ID)
	require.Len(t, tree.Roots, 2)

	leaf := tree.Find("H-1.4.1")
	require.NotNil(t, leaf)
	require.Len(t, leaf.Workitems, 2)
	assert.Equal(t, "R1", leaf.Workitems[0].ID)
	assert.Equal(t, "R3", leaf.Workitems[1].ID)

	assert.Len(t, tree.Find("H-2").Workitems, 1)
	assert.Empty(t, tree.Find("H-1").Workitems)
	assert.Equal(t, 3, tree.WorkitemCount())
}

func TestAssemble_IsomorphicToOutline(t *testing.T) {
	o := testOutline(t)

	tree, err := Assemble(o, nil, nil)
	require.NoError(t, err)

	var ids []string
	tree.Walk(func(n *model.DocumentNode, depth int) bool {
		e, ok := o.Lookup(n.ID)
		require.True(t, ok)
		assert.Equal(t, e.Depth, depth)
		assert.Equal(t, e.Node.Title, n.Title)
		assert.Equal(t, e.Node.OutlineNumber, n.OutlineNumber)
		assert.NotNil(t, n.Workitems)
		ids = append(ids, n.ID)
		return true
	})
	assert.Equal(t, o.IDs(), ids)
}

func TestAssemble_DoesNotTouchOutline(t *testing.T) {
	o := testOutline(t)

	first, err := Assemble(o, []model.Requirement{{ID: "R1"}}, []model.Assignment{assigned("R1", "H-2")})
	require.NoError(t, err)
	second, err := Assemble(o, nil, nil)
	require.NoError(t, err)

	assert.Len(t, first.Find("H-2").Workitems, 1)
	assert.Empty(t, second.Find("H-2").Workitems)
}

func TestAssemble_DuplicateInsertion(t *testing.T) {
	o := testOutline(t)
	reqs := []model.Requirement{{ID: "R1"}}
	log := []model.Assignment{assigned("R1", "H-1"), assigned("R1", "H-2")}

	_, err := Assemble(o, reqs, log)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDuplicateInsertion)

	var dup *model.DuplicateInsertionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "R1", dup.RequirementID)
	assert.Equal(t, "H-1", dup.FirstNodeID)
	assert.Equal(t, "H-2", dup.SecondNodeID)
}

func TestAssemble_RepeatedRequirementID(t *testing.T) {
	o := testOutline(t)
	reqs := []model.Requirement{{ID: "R1"}, {ID: "R1"}}

	_, err := Assemble(o, reqs, []model.Assignment{assigned("R1", "H-1")})
	assert.ErrorIs(t, err, model.ErrDuplicateInsertion)
}

func TestAssemble_UnknownTarget(t *testing.T) {
	o := testOutline(t)

	_, err := Assemble(o, []model.Requirement{{ID: "R1"}}, []model.Assignment{assigned("R1", "H-9")})
	assert.ErrorIs(t, err, model.ErrIntegrityViolation)
}
