package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis is the structured reading of an uploaded project brief.
type Analysis struct {
	ProjectName      string         `json:"projectName"`
	Description      string         `json:"description"`
	TargetAudience   string         `json:"targetAudience"`
	KeyMessages      []string       `json:"keyMessages"`
	BrandTone        string         `json:"brandTone"`
	ColorPreferences []string       `json:"colorPreferences"`
	ContentStructure string         `json:"contentStructure"`
	Raw              map[string]any `json:"raw,omitempty"`
}

// SummaryFile references an uploaded brief held by the summary storage.
type SummaryFile struct {
	FileID       string    `json:"fileId"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType,omitempty"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	URL          string    `json:"url,omitempty"`
}

type Project struct {
	Base
	Name           string                           `gorm:"not null" json:"name"`
	Summary        string                           `gorm:"type:text;not null" json:"summary"`
	SummaryFile    datatypes.JSONType[*SummaryFile] `gorm:"type:jsonb" json:"summaryFile"`
	Analysis       datatypes.JSONType[Analysis]     `gorm:"type:jsonb" json:"analysis"`
	SiteID         string                           `gorm:"not null" json:"siteId"`
	CreatedBy      string                           `gorm:"type:uuid;not null;index" json:"createdBy"`
	Discussions    []Discussion                     `gorm:"foreignKey:ProjectID" json:"-"`
	DiscussionIDs  []string                         `gorm:"-" json:"discussions"`
	AppliedChanges []AppliedChange                  `gorm:"foreignKey:ProjectID" json:"appliedChanges"`
}

// AppliedChange records a content edit committed to the website platform.
type AppliedChange struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID       string    `gorm:"type:uuid;not null;index" json:"-"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	Description     string    `json:"description"`
	Element         string    `json:"element"`
	Content         string    `gorm:"type:text" json:"content"`
	PreviousContent *string   `gorm:"type:text" json:"previousContent,omitempty"`
}

func (AppliedChange) TableName() string { return "project_changes" }

// Owner returns the identifier used for authorization.
func (p *Project) Owner() string { return p.CreatedBy }
