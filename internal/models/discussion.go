package models

import "time"

const DefaultDiscussionTitle = "New Discussion"

type Discussion struct {
	Base
	ProjectID  string    `gorm:"type:uuid;not null;index" json:"project"`
	Title      string    `gorm:"not null;default:'New Discussion'" json:"title"`
	CreatedBy  string    `gorm:"type:uuid;not null" json:"createdBy"`
	LastActive time.Time `gorm:"not null;index" json:"lastActive"`
	Messages   []Message `gorm:"foreignKey:DiscussionID" json:"messages"`
}

// Message is one immutable turn of a discussion transcript.
type Message struct {
	ID           uint64      `gorm:"primaryKey;autoIncrement" json:"-"`
	DiscussionID string      `gorm:"type:uuid;not null;index" json:"-"`
	Role         MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	Content      string      `gorm:"type:text;not null" json:"content"`
	Timestamp    time.Time   `gorm:"not null" json:"timestamp"`
}

func (Message) TableName() string { return "discussion_messages" }
