package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sitepilot/internal/models"
)

// GormRepository stores records in postgres. Foreign keys are not enforced by
// the schema, so cascades are explicit.
type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// DB exposes the underlying pool for tooling such as the admin panel.
func (r *GormRepository) DB() *gorm.DB {
	return r.db
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func orderedChanges(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

func orderedMessages(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

func (r *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	return r.conn(ctx).Create(user).Error
}

func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, userNotFound(email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) CreateProject(ctx context.Context, p *models.Project) error {
	row := *p
	row.SummaryFile = p.StoredSummaryFile()
	if err := r.conn(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return err
	}
	p.Base = row.Base
	return nil
}

func (r *GormRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := r.conn(ctx).Preload("AppliedChanges", orderedChanges).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.conn(ctx).Model(&models.Discussion{}).
		Where("project_id = ?", id).
		Order("created_at ASC").
		Pluck("id", &p.DiscussionIDs).Error; err != nil {
		return nil, err
	}
	if p.DiscussionIDs == nil {
		p.DiscussionIDs = []string{}
	}
	return &p, nil
}

func (r *GormRepository) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	var projects []models.Project
	if err := r.conn(ctx).
		Preload("AppliedChanges", orderedChanges).
		Where("created_by = ?", ownerID).
		Order("updated_at DESC").
		Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []models.Project{}, nil
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	var links []struct {
		ID        string
		ProjectID string
	}
	if err := r.conn(ctx).Model(&models.Discussion{}).
		Select("id", "project_id").
		Where("project_id IN ?", ids).
		Order("created_at ASC").
		Scan(&links).Error; err != nil {
		return nil, err
	}
	byProject := make(map[string][]string, len(projects))
	for _, l := range links {
		byProject[l.ProjectID] = append(byProject[l.ProjectID], l.ID)
	}
	for i := range projects {
		projects[i].DiscussionIDs = byProject[projects[i].ID]
		if projects[i].DiscussionIDs == nil {
			projects[i].DiscussionIDs = []string{}
		}
	}
	return projects, nil
}

func (r *GormRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	row := *p
	row.SummaryFile = p.StoredSummaryFile()
	res := r.conn(ctx).Model(&row).
		Select("name", "summary", "summary_file", "analysis", "site_id").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("project", p.ID)
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *GormRepository) DeleteProject(ctx context.Context, id string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		discussions := tx.Model(&models.Discussion{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("discussion_id IN (?)", discussions).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Discussion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.AppliedChange{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("project", id)
		}
		return nil
	})
}

func (r *GormRepository) AppendChange(ctx context.Context, projectID string, change *models.AppliedChange) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Project{}).Where("id = ?", projectID).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("project", projectID)
		}
		change.ProjectID = projectID
		return tx.Create(change).Error
	})
}

func (r *GormRepository) CreateDiscussion(ctx context.Context, d *models.Discussion) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).Where("id = ?", d.ProjectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFound("project", d.ProjectID)
		}
		return tx.Create(d).Error
	})
}

func (r *GormRepository) GetDiscussion(ctx context.Context, id string) (*models.Discussion, error) {
	var d models.Discussion
	err := r.conn(ctx).Preload("Messages", orderedMessages).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("discussion", id)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormRepository) ListDiscussions(ctx context.Context, projectID string) ([]models.Discussion, error) {
	discussions := []models.Discussion{}
	err := r.conn(ctx).
		Preload("Messages", orderedMessages).
		Where("project_id = ?", projectID).
		Order("last_active DESC").
		Find(&discussions).Error
	return discussions, err
}

func (r *GormRepository) AppendMessages(ctx context.Context, discussionID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Discussion{}).
			Where("id = ?", discussionID).
			Updates(map[string]any{"last_active": msgs[len(msgs)-1].Timestamp, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("discussion", discussionID)
		}
		rows := make([]models.Message, len(msgs))
		for i, m := range msgs {
			m.ID = 0
			m.DiscussionID = discussionID
			rows[i] = m
		}
		return tx.Create(&rows).Error
	})
}

func (r *GormRepository) DeleteDiscussion(ctx context.Context, id string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("discussion_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Discussion{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("discussion", id)
		}
		return nil
	})
}

func (r *GormRepository) ReconcileOrphans(ctx context.Context) (int, error) {
	var removed int
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Discussion{}).
			Where("project_id NOT IN (?)", tx.Model(&models.Project{}).Select("id")).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("discussion_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Discussion{}).Error; err != nil {
			return err
		}
		removed = len(ids)
		return nil
	})
	return removed, err
}
