package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqmap/internal/assemble"
	"github.com/ppiankov/reqmap/internal/model"
	"github.com/ppiankov/reqmap/internal/outline"
)

func fixture(t *testing.T) (*outline.Outline, []model.Requirement, *model.OutputTree, []model.Unassignable, []model.Assignment) {
	t.Helper()
	o, err := outline.FromFlat(model.DocumentInfo{ID: "DOC"}, []model.FlatHeading{
		{ID: "H-1", Title: "Summary", OutlineNumber: "1"},
		{ID: "H-1.1", Title: "Intended Use", OutlineNumber: "1.1"},
		{ID: "H-2", Title: "Safety", OutlineNumber: "2"},
	})
	require.NoError(t, err)

	reqs := []model.Requirement{{ID: "R1"}, {ID: "R2"}, {ID: "R3"}}
	log := []model.Assignment{
		{RequirementID: "R1", Status: model.StatusAssigned, TargetNodeID: "H-1.1"},
		{RequirementID: "R2", Status: model.StatusAssigned, TargetNodeID: "H-2"},
		{RequirementID: "R3", Status: model.StatusUnassignable, BestNodeID: "H-1"},
	}
	tree, err := assemble.Assemble(o, reqs, log)
	require.NoError(t, err)

	unassignable := []model.Unassignable{{Requirement: reqs[2], BestNodeID: "H-1", BestScore: 0.1, Threshold: 0.25}}
	return o, reqs, tree, unassignable, log
}

func problems(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrIntegrityViolation)
	var ie *model.IntegrityError
	require.True(t, errors.As(err, &ie))
	return ie.Problems
}

func TestCheck_Valid(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	assert.NoError(t, NewValidator(nil).Check(o, reqs, tree, un, log))
}

func TestCheck_ValidWithoutLog(t *testing.T) {
	o, reqs, tree, un, _ := fixture(t)
	assert.NoError(t, NewValidator(nil).Check(o, reqs, tree, un, nil))
}

func TestCheck_MissingRequirement(t *testing.T) {
	o, reqs, tree, _, log := fixture(t)

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, nil, log))
	assert.Equal(t, []string{`requirement "R3" is neither placed nor unassignable`}, got)
}

func TestCheck_PlacedTwice(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	tree.Find("H-1").Workitems = append(tree.Find("H-1").Workitems, reqs[0])

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `requirement "R1" is placed 2 times`)
}

func TestCheck_PlacedAndUnassignable(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	un = append(un, model.Unassignable{Requirement: reqs[1]})

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	assert.Equal(t, []string{`requirement "R2" is placed in "H-2" and also unassignable`}, got)
}

func TestCheck_NodeSetDiffers(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	tree.Roots = append(tree.Roots, &model.DocumentNode{ID: "H-9", Title: "Extra"})
	tree.Find("H-1").Children = nil

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	assert.Contains(t, got, `outline node "H-1.1" is missing from the output`)
	assert.Contains(t, got, `output node "H-9" is not in the outline`)
	// R1 lived under the removed node
	assert.Contains(t, got, `requirement "R1" is neither placed nor unassignable`)
}

func TestCheck_MovedNode(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	child := tree.Find("H-1").Children[0]
	tree.Find("H-1").Children = nil
	tree.Find("H-2").Children = append(tree.Find("H-2").Children, child)

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	assert.Equal(t, []string{`node "H-1.1" is under "H-2" in the output but under "H-1" in the outline`}, got)
}

func TestCheck_DisagreesWithLog(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	log[0].TargetNodeID = "H-2"

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	assert.Equal(t, []string{`requirement "R1" is placed in "H-1.1" but the log assigns it to "H-2"`}, got)
}

func TestCheck_UnknownRequirement(t *testing.T) {
	o, reqs, tree, un, log := fixture(t)
	tree.Find("H-2").Workitems = append(tree.Find("H-2").Workitems, model.Requirement{ID: "X"})
	un = append(un, model.Unassignable{Requirement: model.Requirement{ID: "Y"}})

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, un, log))
	assert.Contains(t, got, `unassignable requirement "Y" is not in the input`)
	assert.Contains(t, got, `output requirement "X" (in [H-2]) is not in the input`)
}

func TestCheck_CollectsEveryProblem(t *testing.T) {
	o, reqs, tree, _, log := fixture(t)
	reqs = append(reqs, model.Requirement{ID: "R1"})
	tree.Roots = tree.Roots[:1]

	got := problems(t, NewValidator(nil).Check(o, reqs, tree, nil, log))
	assert.Contains(t, got, `requirement "R1" appears 2 times in the input`)
	assert.Contains(t, got, `outline node "H-2" is missing from the output`)
	assert.Contains(t, got, `requirement "R2" is neither placed nor unassignable`)
	assert.Contains(t, got, `requirement "R3" is neither placed nor unassignable`)
}

func TestCheck_NilTree(t *testing.T) {
	o, reqs, _, un, log := fixture(t)
	got := problems(t, NewValidator(nil).Check(o, reqs, nil, un, log))
	assert.Equal(t, []string{"no output tree"}, got)
}
