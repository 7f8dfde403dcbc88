package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/apperr"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/platform"
)

// maxChainHops bounds the ancestor and descendant walks on corrupted
// fixtures where the visited set alone would still admit long scans.
const maxChainHops = 512

// ChainService rebuilds a human-readable custody timeline from
// partially linked assignment history. Parent pointers are trusted only
// when continuity holds (the parent's holder is the user who routed the
// current hop); everything else goes through an ordered ladder of
// fallback resolvers so the tie-break order stays auditable. The read
// path never fails on inconsistent history — it degrades to the best
// reconstruction it can produce.
type ChainService struct {
	assignments  AssignmentStore
	submissions  SubmissionStore
	users        UserStore
	designations platform.DesignationSource
}

func NewChainService(assignments AssignmentStore, submissions SubmissionStore, users UserStore, designations platform.DesignationSource) *ChainService {
	return &ChainService{
		assignments:  assignments,
		submissions:  submissions,
		users:        users,
		designations: designations,
	}
}

// Timeline reconstructs the full ancestor/descendant sequence around
// the given assignment and maps it to display entries.
func (s *ChainService) Timeline(ctx context.Context, assignmentID primitive.ObjectID) ([]models.TimelineEntry, error) {
	target, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("assignment not found")
	}

	// Candidate pool: same-submission evidence first, the whole
	// template's history only when no submission is linked. This keeps
	// unrelated parallel branches out of the walk.
	var pool []models.Assignment
	if target.DataID != nil {
		pool, err = s.assignments.FindByData(ctx, *target.DataID)
	} else {
		pool, err = s.assignments.FindByTemplate(ctx, target.TemplateID)
	}
	if err != nil {
		return nil, err
	}

	var templatePool []models.Assignment
	templateWide := func() []models.Assignment {
		if target.DataID == nil {
			return pool
		}
		if templatePool == nil {
			tp, err := s.assignments.FindByTemplate(ctx, target.TemplateID)
			if err != nil {
				templatePool = []models.Assignment{}
			} else {
				templatePool = tp
			}
		}
		return templatePool
	}

	seq := s.walk(ctx, target, pool, templateWide)
	return s.render(ctx, seq)
}

// TimelineBySubmission resolves the newest chain touching a submission.
// When no assignment references it (single-step forms), the submission's
// own movement history is flattened instead.
func (s *ChainService) TimelineBySubmission(ctx context.Context, submissionID primitive.ObjectID) ([]models.TimelineEntry, error) {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission not found")
	}

	latest, err := s.assignments.LatestForData(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return s.Timeline(ctx, latest.ID)
	}

	allowed := s.allowedDesignations(ctx)
	cache := map[primitive.ObjectID]*models.TimelineUser{}
	entries := make([]models.TimelineEntry, 0, len(sub.MovementHistory))
	for i, m := range sub.MovementHistory {
		typ := models.TimelineDelegated
		if i == 0 {
			typ = models.TimelineInitiated
		} else if m.Action == models.MoveSentForApproval {
			typ = models.TimelineReturned
		}
		entries = append(entries, models.TimelineEntry{
			Type:      typ,
			FromUser:  s.resolveUser(ctx, m.PerformedBy, allowed, cache),
			Date:      m.Timestamp,
			Remarks:   m.Remarks,
			Status:    sub.Status,
			IsCurrent: i == len(sub.MovementHistory)-1,
		})
	}
	return entries, nil
}

// walk assembles ancestors (oldest first), the target, and descendants.
func (s *ChainService) walk(ctx context.Context, target *models.Assignment, pool []models.Assignment, templateWide func() []models.Assignment) []models.Assignment {
	visited := map[primitive.ObjectID]bool{target.ID: true}

	resolvers := s.parentResolvers(pool, templateWide)
	var ancestors []models.Assignment
	cur := target
	for hops := 0; hops < maxChainHops; hops++ {
		parent := s.resolveParent(ctx, cur, resolvers)
		if parent == nil || visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		ancestors = append(ancestors, *parent)
		cur = parent
	}
	// Collected newest-first; the timeline wants oldest-first.
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}

	seq := append(ancestors, *target)

	cur = target
	for hops := 0; hops < maxChainHops; hops++ {
		child := findChild(pool, cur, visited)
		if child == nil {
			break
		}
		visited[child.ID] = true
		seq = append(seq, *child)
		cur = child
	}
	return seq
}

// parentResolver attempts to find the predecessor of an assignment.
type parentResolver func(cur *models.Assignment) *models.Assignment

// parentResolvers is the fallback ladder applied, in order, when the
// parent pointer is missing or fails the continuity check. Rung (d) is
// a known heuristic weakness: when two unrelated hops are adjacent in
// time it can pick a causally wrong ancestor. It stays last so
// same-submission routing evidence always wins over bare chronology.
func (s *ChainService) parentResolvers(pool []models.Assignment, templateWide func() []models.Assignment) []parentResolver {
	return []parentResolver{
		// (a) newest same-submission hop routed by the expected user.
		func(cur *models.Assignment) *models.Assignment {
			return latestBefore(pool, cur, true)
		},
		// (b) the same criterion over the whole template's history.
		func(cur *models.Assignment) *models.Assignment {
			return latestBefore(templateWide(), cur, true)
		},
		// (c) a root held by the expected user, regardless of age.
		func(cur *models.Assignment) *models.Assignment {
			for i := range pool {
				c := &pool[i]
				if c.ID != cur.ID && c.ParentAssignmentID == nil && c.AssignedTo == cur.AssignedBy {
					return c
				}
			}
			for _, c := range templateWide() {
				if c.ID != cur.ID && c.ParentAssignmentID == nil && c.AssignedTo == cur.AssignedBy {
					out := c
					return &out
				}
			}
			return nil
		},
		// (d) newest same-submission hop before this one, any holder.
		func(cur *models.Assignment) *models.Assignment {
			return latestBefore(pool, cur, false)
		},
	}
}

func (s *ChainService) resolveParent(ctx context.Context, cur *models.Assignment, resolvers []parentResolver) *models.Assignment {
	if cur.ParentAssignmentID != nil {
		parent, err := s.assignments.FindByID(ctx, *cur.ParentAssignmentID)
		// Continuity: the linked parent must be held by the user who
		// routed this hop, otherwise the pointer is stale.
		if err == nil && parent != nil && parent.AssignedTo == cur.AssignedBy {
			return parent
		}
	}
	for _, resolve := range resolvers {
		if parent := resolve(cur); parent != nil {
			return parent
		}
	}
	return nil
}

// latestBefore finds the newest assignment created strictly before cur,
// optionally requiring that it is held by the user who routed cur.
func latestBefore(pool []models.Assignment, cur *models.Assignment, matchRouter bool) *models.Assignment {
	var best *models.Assignment
	for i := range pool {
		c := &pool[i]
		if c.ID == cur.ID || !c.CreatedAt.Before(cur.CreatedAt) {
			continue
		}
		if matchRouter && c.AssignedTo != cur.AssignedBy {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return best
}

// findChild prefers the explicit parent link; absent that, the first
// later hop routed by the current holder.
func findChild(pool []models.Assignment, cur *models.Assignment, visited map[primitive.ObjectID]bool) *models.Assignment {
	for i := range pool {
		c := &pool[i]
		if visited[c.ID] {
			continue
		}
		if c.ParentAssignmentID != nil && *c.ParentAssignmentID == cur.ID {
			return c
		}
	}
	for i := range pool {
		c := &pool[i]
		if visited[c.ID] {
			continue
		}
		if c.AssignedBy == cur.AssignedTo && c.CreatedAt.After(cur.CreatedAt) {
			return c
		}
	}
	return nil
}

// render maps the hop sequence to timeline entries and appends the
// synthetic final hand-back when the submission reached Submitted.
func (s *ChainService) render(ctx context.Context, seq []models.Assignment) ([]models.TimelineEntry, error) {
	allowed := s.allowedDesignations(ctx)
	cache := map[primitive.ObjectID]*models.TimelineUser{}

	entries := make([]models.TimelineEntry, 0, len(seq)+1)
	for i := range seq {
		a := &seq[i]
		typ := models.TimelineDelegated
		switch {
		case i == 0:
			typ = models.TimelineInitiated
		case a.LastAction == models.ActionMarkedBack:
			typ = models.TimelineReturned
		}
		remarks := a.Instructions
		if remarks == "" {
			remarks = a.Remarks
		}
		entries = append(entries, models.TimelineEntry{
			Type:      typ,
			FromUser:  s.resolveUser(ctx, a.AssignedBy, allowed, cache),
			ToUser:    s.resolveUser(ctx, a.AssignedTo, allowed, cache),
			Date:      a.CreatedAt,
			Remarks:   remarks,
			Status:    a.Status,
			IsCurrent: i == len(seq)-1,
		})
	}

	if final := s.syntheticHandback(ctx, seq, allowed, cache); final != nil {
		entries = append(entries, *final)
	}
	return entries, nil
}

// syntheticHandback fabricates the terminal Returned entry representing
// the hand-back to the distributor. It is display-only and never stored.
func (s *ChainService) syntheticHandback(ctx context.Context, seq []models.Assignment, allowed []string, cache map[primitive.ObjectID]*models.TimelineUser) *models.TimelineEntry {
	if len(seq) == 0 {
		return nil
	}
	var dataID *primitive.ObjectID
	for i := range seq {
		if seq[i].DataID != nil {
			dataID = seq[i].DataID
			break
		}
	}
	if dataID == nil {
		return nil
	}
	sub, err := s.submissions.FindByID(ctx, *dataID)
	if err != nil || sub == nil || sub.Status != models.StatusSubmitted {
		return nil
	}

	last := seq[len(seq)-1]
	entry := models.TimelineEntry{
		Type:     models.TimelineReturned,
		FromUser: s.resolveUser(ctx, last.AssignedTo, allowed, cache),
		ToUser:   s.resolveUser(ctx, seq[0].AssignedBy, allowed, cache),
		Date:     sub.UpdatedAt,
		Status:   models.StatusSubmitted,
	}
	for _, m := range sub.MovementHistory {
		if m.Action == models.MoveSubmitted {
			entry.Date = m.Timestamp
			entry.Remarks = m.Remarks
		}
	}
	return &entry
}

func (s *ChainService) allowedDesignations(ctx context.Context) []string {
	if s.designations == nil {
		return nil
	}
	allowed, err := s.designations.ApprovalDesignations(ctx)
	if err != nil {
		return nil
	}
	return allowed
}

func (s *ChainService) resolveUser(ctx context.Context, id primitive.ObjectID, allowed []string, cache map[primitive.ObjectID]*models.TimelineUser) *models.TimelineUser {
	if tu, ok := cache[id]; ok {
		return tu
	}
	tu := &models.TimelineUser{ID: id, Name: "Unknown User"}
	if u, err := s.users.FindByID(ctx, id); err == nil && u != nil {
		tu.Name = u.Name
		tu.Designation = u.Designation
		tu.HasApprovalAuthority = contains(allowed, u.Designation)
	}
	cache[id] = tu
	return tu
}
