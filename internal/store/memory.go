package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"sitepilot/internal/models"
)

// MemoryRepository keeps everything in process. It backs STORE_PROVIDER=memory and tests.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[string]models.User
	projects    map[string]models.Project
	changes     map[string][]models.AppliedChange
	discussions map[string]models.Discussion
	messages    map[string][]models.Message
	nextChange  uint
	nextMessage uint64
	now         func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       map[string]models.User{},
		projects:    map[string]models.Project{},
		changes:     map[string][]models.AppliedChange{},
		discussions: map[string]models.Discussion{},
		messages:    map[string][]models.Message{},
		now:         time.Now,
	}
}

func (r *MemoryRepository) stamp(b *models.Base) {
	now := r.now()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range r.users {
		if u.Email == user.Email {
			return errDuplicate("user email " + user.Email)
		}
	}
	r.stamp(&user.Base)
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, userNotFound(email)
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, userNotFound(id)
	}
	return &u, nil
}

func (r *MemoryRepository) CreateProject(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&p.Base)
	stored := copyProject(*p)
	stored.SummaryFile = p.StoredSummaryFile()
	stored.AppliedChanges = nil
	stored.DiscussionIDs = nil
	stored.Discussions = nil
	r.projects[p.ID] = stored
	return nil
}

func (r *MemoryRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	out := r.hydrate(p)
	out.SignSummaryFile(ctx)
	return &out, nil
}

// hydrate fills the derived collections of a stored project. Callers hold mu.
func (r *MemoryRepository) hydrate(p models.Project) models.Project {
	out := copyProject(p)
	out.AppliedChanges = slices.Clone(r.changes[p.ID])
	if out.AppliedChanges == nil {
		out.AppliedChanges = []models.AppliedChange{}
	}
	ids := []string{}
	for _, d := range r.discussionsOf(p.ID) {
		ids = append(ids, d.ID)
	}
	out.DiscussionIDs = ids
	return out
}

// discussionsOf returns a project's discussions in creation order. Callers hold mu.
func (r *MemoryRepository) discussionsOf(projectID string) []models.Discussion {
	var out []models.Discussion
	for _, d := range r.discussions {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRepository) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Project{}
	for _, p := range r.projects {
		if p.CreatedBy == ownerID {
			hydrated := r.hydrate(p)
			hydrated.SignSummaryFile(ctx)
			out = append(out, hydrated)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateProject(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.projects[p.ID]
	if !ok {
		return notFound("project", p.ID)
	}
	stored.Name = p.Name
	stored.Summary = p.Summary
	stored.SiteID = p.SiteID
	stored.Analysis = p.Analysis
	stored.SummaryFile = p.StoredSummaryFile()
	stored.UpdatedAt = r.now()
	r.projects[p.ID] = copyProject(stored)
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) DeleteProject(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return notFound("project", id)
	}
	for _, d := range r.discussionsOf(id) {
		delete(r.messages, d.ID)
		delete(r.discussions, d.ID)
	}
	delete(r.changes, id)
	delete(r.projects, id)
	return nil
}

func (r *MemoryRepository) AppendChange(_ context.Context, projectID string, change *models.AppliedChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		return notFound("project", projectID)
	}
	r.nextChange++
	change.ID = r.nextChange
	change.ProjectID = projectID
	stored := *change
	if change.PreviousContent != nil {
		prev := *change.PreviousContent
		stored.PreviousContent = &prev
	}
	r.changes[projectID] = append(r.changes[projectID], stored)
	p.UpdatedAt = r.now()
	r.projects[projectID] = p
	return nil
}

func (r *MemoryRepository) CreateDiscussion(_ context.Context, d *models.Discussion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[d.ProjectID]; !ok {
		return notFound("project", d.ProjectID)
	}
	r.stamp(&d.Base)
	msgs := make([]models.Message, len(d.Messages))
	for i := range d.Messages {
		r.nextMessage++
		d.Messages[i].ID = r.nextMessage
		d.Messages[i].DiscussionID = d.ID
		msgs[i] = d.Messages[i]
	}
	stored := *d
	stored.Messages = nil
	r.discussions[d.ID] = stored
	r.messages[d.ID] = msgs
	return nil
}

func (r *MemoryRepository) GetDiscussion(_ context.Context, id string) (*models.Discussion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.discussions[id]
	if !ok {
		return nil, notFound("discussion", id)
	}
	d.Messages = slices.Clone(r.messages[id])
	return &d, nil
}

func (r *MemoryRepository) ListDiscussions(_ context.Context, projectID string) ([]models.Discussion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Discussion{}
	for _, d := range r.discussionsOf(projectID) {
		d.Messages = slices.Clone(r.messages[d.ID])
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (r *MemoryRepository) AppendMessages(_ context.Context, discussionID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discussions[discussionID]
	if !ok {
		return notFound("discussion", discussionID)
	}
	for _, m := range msgs {
		r.nextMessage++
		m.ID = r.nextMessage
		m.DiscussionID = discussionID
		r.messages[discussionID] = append(r.messages[discussionID], m)
	}
	d.LastActive = msgs[len(msgs)-1].Timestamp
	d.UpdatedAt = r.now()
	r.discussions[discussionID] = d
	return nil
}

func (r *MemoryRepository) DeleteDiscussion(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.discussions[id]; !ok {
		return notFound("discussion", id)
	}
	delete(r.messages, id)
	delete(r.discussions, id)
	return nil
}

func (r *MemoryRepository) ReconcileOrphans(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, d := range r.discussions {
		if _, ok := r.projects[d.ProjectID]; ok {
			continue
		}
		delete(r.messages, id)
		delete(r.discussions, id)
		removed++
	}
	return removed, nil
}

// InsertOrphanDiscussion stores a discussion without checking its project.
// It reproduces the state left behind by an interrupted project delete.
func (r *MemoryRepository) InsertOrphanDiscussion(d models.Discussion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&d.Base)
	r.discussions[d.ID] = d
}

func copyProject(p models.Project) models.Project {
	out := p
	out.AppliedChanges = slices.Clone(p.AppliedChanges)
	out.DiscussionIDs = slices.Clone(p.DiscussionIDs)
	out.Discussions = nil
	if f := p.SummaryFile.Data(); f != nil {
		file := *f
		out.SummaryFile = datatypes.NewJSONType(&file)
	}
	a := p.Analysis.Data()
	a.KeyMessages = slices.Clone(a.KeyMessages)
	a.ColorPreferences = slices.Clone(a.ColorPreferences)
	a.Raw = maps.Clone(a.Raw)
	out.Analysis = datatypes.NewJSONType(a)
	return out
}
