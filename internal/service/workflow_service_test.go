package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/apperr"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/platform"
)

type fixture struct {
	assignments *fakeAssignments
	submissions *fakeSubmissions
	templates   *fakeTemplates
	users       *fakeUsers

	workflow *WorkflowService
	chain    *ChainService

	template    *models.FormTemplate
	distributor Actor
	alice       Actor
	bob         Actor
	dana        Actor
}

func addUser(f *fixture, name, labID, designation string) Actor {
	id := primitive.NewObjectID()
	f.users.items[id] = &models.User{
		ID:          id,
		Email:       name + "@lab.test",
		Name:        name,
		LabID:       labID,
		Designation: designation,
	}
	return Actor{ID: id, LabID: labID, Designation: designation}
}

func addTemplate(f *fixture, title string, allowDelegation bool) *models.FormTemplate {
	id := primitive.NewObjectID()
	tmpl := &models.FormTemplate{
		ID:              id,
		Title:           title,
		Slug:            generateSlug(title),
		AllowDelegation: allowDelegation,
		CreatedBy:       f.distributor.ID,
	}
	f.templates.items[id] = tmpl
	return tmpl
}

func newFixture(allowDelegation bool) *fixture {
	f := &fixture{
		assignments: &fakeAssignments{},
		submissions: &fakeSubmissions{},
		templates:   &fakeTemplates{items: map[primitive.ObjectID]*models.FormTemplate{}},
		users:       &fakeUsers{items: map[primitive.ObjectID]*models.User{}},
	}
	f.distributor = addUser(f, "distributor", "LAB1", "Director")
	f.alice = addUser(f, "alice", "LAB1", "Scientist")
	f.bob = addUser(f, "bob", "LAB1", "Scientist")
	f.dana = addUser(f, "dana", "LAB1", "Deputy Director")

	tmplID := primitive.NewObjectID()
	f.template = &models.FormTemplate{
		ID:              tmplID,
		Title:           "Quarterly Equipment Audit",
		Slug:            "quarterly-equipment-audit",
		AllowDelegation: allowDelegation,
		CreatedBy:       f.distributor.ID,
	}
	f.templates.items[tmplID] = f.template

	designations := &platform.StaticDesignations{List: []string{"Director", "Deputy Director", "Lab Head"}}
	f.workflow = NewWorkflowService(f.assignments, f.submissions, f.templates, f.users,
		designations, nil, nil, nil)
	f.chain = NewChainService(f.assignments, f.submissions, f.users, designations)
	return f
}

func TestDelegateCreatesRootOnFirstHop(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "please fill section A", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, hop.Status)
	assert.Equal(t, f.distributor.ID, hop.AssignedBy)
	assert.Equal(t, f.alice.ID, hop.AssignedTo)
	assert.Nil(t, hop.ParentAssignmentID)
	assert.Equal(t, []primitive.ObjectID{f.distributor.ID}, hop.DelegationChain)
	assert.Equal(t, "please fill section A", hop.Instructions)
}

func TestDelegateExtendsChainAndMarksPredecessor(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop1, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "start here", nil)
	require.NoError(t, err)
	hop2, err := f.workflow.Delegate(ctx, f.alice, f.template.ID, f.bob.ID, "your part", nil)
	require.NoError(t, err)

	require.NotNil(t, hop2.ParentAssignmentID)
	assert.Equal(t, hop1.ID, *hop2.ParentAssignmentID)
	assert.Equal(t, []primitive.ObjectID{f.distributor.ID, f.alice.ID}, hop2.DelegationChain)

	prev, err := f.assignments.FindByID(ctx, hop1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEdited, prev.Status)
	assert.Equal(t, models.ActionDelegated, prev.LastAction)
}

func TestDelegateGuards(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.workflow.Delegate(ctx, f.distributor, primitive.NewObjectID(), f.alice.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	})

	t.Run("unknown target user", func(t *testing.T) {
		_, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, primitive.NewObjectID(), "", nil)
		assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	})

	t.Run("cross-lab target", func(t *testing.T) {
		outsider := addUser(f, "outsider", "LAB2", "Scientist")
		_, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, outsider.ID, "", nil)
		assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	})

	t.Run("delegation disabled", func(t *testing.T) {
		g := newFixture(false)
		_, err := g.workflow.Delegate(ctx, g.distributor, g.template.ID, g.alice.ID, "", nil)
		assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	})

	t.Run("not the holder", func(t *testing.T) {
		hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "", nil)
		require.NoError(t, err)
		_, err = f.workflow.Delegate(ctx, f.bob, f.template.ID, f.dana.ID, "", &hop.ID)
		assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	})
}

func TestDelegateBlockedAfterFinalizeOrApprove(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "fill in", nil)
	require.NoError(t, err)
	_, err = f.workflow.MarkFinal(ctx, f.alice, hop.ID, "done")
	require.NoError(t, err)

	_, err = f.workflow.Delegate(ctx, f.alice, f.template.ID, f.bob.ID, "", &hop.ID)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))

	g := newFixture(true)
	hop2, err := g.workflow.Delegate(ctx, g.distributor, g.template.ID, g.dana.ID, "review", nil)
	require.NoError(t, err)
	_, err = g.workflow.Approve(ctx, g.dana, hop2.ID, "ok")
	require.NoError(t, err)

	_, err = g.workflow.Delegate(ctx, g.dana, g.template.ID, g.bob.ID, "", &hop2.ID)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
}

func TestMarkBackDefaultsToParentRouter(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	_, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "start", nil)
	require.NoError(t, err)
	hop2, err := f.workflow.Delegate(ctx, f.alice, f.template.ID, f.bob.ID, "your part", nil)
	require.NoError(t, err)

	back, err := f.workflow.MarkBack(ctx, f.bob, hop2.ID, "done, please approve", nil, nil)
	require.NoError(t, err)

	// The parent hop was routed by the distributor, so the form goes
	// back to them, not to the immediate predecessor.
	assert.Equal(t, f.distributor.ID, back.AssignedTo)
	assert.Equal(t, f.bob.ID, back.AssignedBy)
	assert.Equal(t, models.StatusEdited, back.Status)
	assert.Equal(t, models.ActionMarkedBack, back.LastAction)

	cur, err := f.assignments.FindByID(ctx, hop2.ID)
	require.NoError(t, err)
	assert.True(t, cur.IsFinalized)
	assert.Equal(t, models.StatusEdited, cur.Status)
}

func TestMarkBackExplicitTargetMustBeInChain(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	_, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "start", nil)
	require.NoError(t, err)
	hop2, err := f.workflow.Delegate(ctx, f.alice, f.template.ID, f.bob.ID, "your part", nil)
	require.NoError(t, err)

	_, err = f.workflow.MarkBack(ctx, f.bob, hop2.ID, "back", &f.dana.ID, nil)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))

	back, err := f.workflow.MarkBack(ctx, f.bob, hop2.ID, "back", &f.alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, back.AssignedTo)
}

func TestMarkFinalIsIdempotent(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "original instructions", nil)
	require.NoError(t, err)

	first, err := f.workflow.MarkFinal(ctx, f.alice, hop.ID, "all set")
	require.NoError(t, err)
	assert.True(t, first.IsFinalized)
	assert.Equal(t, models.StatusEdited, first.Status)
	assert.Equal(t, models.ActionFinalized, first.LastAction)
	// First-touch provenance survives the remark overwrite.
	assert.Equal(t, "original instructions", first.Instructions)

	second, err := f.workflow.MarkFinal(ctx, f.alice, hop.ID, "all set")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.IsFinalized)
}

func TestApproveRequiresAuthorizedDesignation(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "review", nil)
	require.NoError(t, err)

	_, err = f.workflow.Approve(ctx, f.alice, hop.ID, "looks fine")
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
}

func TestApproveMarksAssignmentAndSubmission(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	draft, err := f.workflow.SaveDraft(ctx, f.dana, f.template.ID, map[string]any{"q1": "yes"}, nil)
	require.NoError(t, err)

	approved, err := f.workflow.Approve(ctx, f.dana, draft.Assignment.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.True(t, approved.IsFinalized)

	sub, err := f.submissions.FindByID(ctx, draft.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sub.Status)
	last := sub.MovementHistory[len(sub.MovementHistory)-1]
	assert.Equal(t, models.MoveApproved, last.Action)
}

func TestSubmitRequiresApproval(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	draft, err := f.workflow.SaveDraft(ctx, f.dana, f.template.ID, map[string]any{"q1": "yes"}, nil)
	require.NoError(t, err)

	_, err = f.workflow.SubmitToDistributor(ctx, f.dana, draft.Assignment.ID, "sending")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))

	_, err = f.workflow.Approve(ctx, f.dana, draft.Assignment.ID, "ok")
	require.NoError(t, err)

	final, err := f.workflow.SubmitToDistributor(ctx, f.dana, draft.Assignment.ID, "sending")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, final.Status)

	sub, err := f.submissions.FindByID(ctx, draft.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, sub.Status)
}

func TestSaveDraftBootstrapsRoot(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	res, err := f.workflow.SaveDraft(ctx, f.alice, f.template.ID, map[string]any{"q1": "draft"}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusEdited, res.Submission.Status)
	assert.Equal(t, models.StatusEdited, res.Assignment.Status)
	assert.Equal(t, f.distributor.ID, res.Assignment.AssignedBy)
	assert.Equal(t, f.alice.ID, res.Assignment.AssignedTo)
	require.NotNil(t, res.Assignment.DataID)
	assert.Equal(t, res.Submission.ID, *res.Assignment.DataID)
	require.Len(t, res.Submission.MovementHistory, 1)
	assert.Equal(t, models.MoveDraftSaved, res.Submission.MovementHistory[0].Action)
}

func TestSaveDraftAutoApprovesWhenDelegationDisabled(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	res, err := f.workflow.SaveDraft(ctx, f.alice, f.template.ID, map[string]any{"q1": "done"}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, res.Submission.Status)
	assert.Equal(t, models.StatusApproved, res.Assignment.Status)
	assert.Equal(t, models.MoveApproved, res.Submission.MovementHistory[0].Action)
}

func TestSaveDraftConflictAfterSubmission(t *testing.T) {
	f := newFixture(true)
	f.template.AllowMultipleSubmissions = false
	ctx := context.Background()

	res, err := f.workflow.SaveDraft(ctx, f.dana, f.template.ID, map[string]any{"q1": "v1"}, nil)
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, f.dana, res.Assignment.ID, "ok")
	require.NoError(t, err)
	_, err = f.workflow.SubmitToDistributor(ctx, f.dana, res.Assignment.ID, "done")
	require.NoError(t, err)

	_, err = f.workflow.SaveDraft(ctx, f.dana, f.template.ID, map[string]any{"q1": "v2"}, nil)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
}

func TestSaveDraftUpdatesExistingAssignment(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "fill in", nil)
	require.NoError(t, err)

	res, err := f.workflow.SaveDraft(ctx, f.alice, f.template.ID, map[string]any{"q1": "wip"}, &hop.ID)
	require.NoError(t, err)

	assert.Equal(t, hop.ID, res.Assignment.ID)
	assert.Equal(t, models.StatusEdited, res.Assignment.Status)
	require.NotNil(t, res.Assignment.DataID)

	stored, err := f.assignments.FindByID(ctx, hop.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DataID)
	assert.Equal(t, res.Submission.ID, *stored.DataID)
}

func TestCrossTemplateAssignmentRejected(t *testing.T) {
	f := newFixture(true)
	other := addTemplate(f, "Annual Inventory Return", true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "start", nil)
	require.NoError(t, err)

	// An assignment from one template cannot seed a chain on another.
	_, err = f.workflow.Delegate(ctx, f.alice, other.ID, f.bob.ID, "", &hop.ID)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))

	_, err = f.workflow.SaveDraft(ctx, f.alice, other.ID, map[string]any{"q1": "x"}, &hop.ID)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))

	// The same assignment keeps working against its own template.
	_, err = f.workflow.SaveDraft(ctx, f.alice, f.template.ID, map[string]any{"q1": "x"}, &hop.ID)
	require.NoError(t, err)
}

func TestDelegateRecordsMovementOnLinkedSubmission(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	hop, err := f.workflow.Delegate(ctx, f.distributor, f.template.ID, f.alice.ID, "start", nil)
	require.NoError(t, err)
	res, err := f.workflow.SaveDraft(ctx, f.alice, f.template.ID, map[string]any{"q1": "wip"}, &hop.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	_, err = f.workflow.Delegate(ctx, f.alice, f.template.ID, f.bob.ID, "take over", &hop.ID)
	require.NoError(t, err)

	sub, err := f.submissions.FindByID(ctx, res.Submission.ID)
	require.NoError(t, err)
	last := sub.MovementHistory[len(sub.MovementHistory)-1]
	assert.Equal(t, models.MoveDelegated, last.Action)
	assert.Equal(t, f.alice.ID, last.PerformedBy)
}
