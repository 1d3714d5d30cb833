package tasks

import "time"

// Task Types
const (
	// TaskTypeApplyEdit pushes a page edit requested over the real-time channel.
	TaskTypeApplyEdit = "edit:apply"
	// TaskTypeReconcile removes discussions left behind by deleted projects.
	TaskTypeReconcile = "discussions:reconcile"
)

// Task Queues
const (
	QueueCritical = "critical" // For edits a user is waiting on
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// ApplyEditPayload is a queued page edit, carrying the identity it runs as.
type ApplyEditPayload struct {
	EditID          string  `json:"editId"`
	Room            string  `json:"room"`
	UserID          string  `json:"userId"`
	Role            string  `json:"role"`
	ClientType      string  `json:"clientType"`
	DiscussionID    string  `json:"discussionId"`
	PageID          string  `json:"pageId"`
	Content         string  `json:"content"`
	Description     string  `json:"description,omitempty"`
	Element         string  `json:"element,omitempty"`
	PreviousContent *string `json:"previousContent,omitempty"`
}
