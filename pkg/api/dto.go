package api

import "time"

// ProgressStatus enumerates per-topic progress states.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// MessageSender identifies who authored a session message.
type MessageSender string

const (
	SenderUser      MessageSender = "user"
	SenderAssistant MessageSender = "ai"
)

// Section is a top-level catalog grouping.
type Section struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// SectionListResponse is the body of GET /sections.
type SectionListResponse struct {
	Sections []Section `json:"sections"`
}

// ProgressEntry is one per-user, per-topic progress record with catalog
// details joined in.
type ProgressEntry struct {
	UserID       string         `json:"user_id"`
	SectionID    string         `json:"section_id"`
	SectionTitle string         `json:"section_title"`
	TopicID      string         `json:"topic_id"`
	TopicTitle   string         `json:"topic_title"`
	Status       ProgressStatus `json:"status"`
	Score        *float64       `json:"score"`
	UpdatedAt    *time.Time     `json:"updated_at"`
}

// ProgressSummary aggregates counts over the whole progress set.
type ProgressSummary struct {
	TotalTopics int `json:"total_topics"`
	Completed   int `json:"completed"`
	InProgress  int `json:"in_progress"`
	NotStarted  int `json:"not_started"`
}

// ProgressOverviewResponse is the body of GET /user-progress.
type ProgressOverviewResponse struct {
	Progress []ProgressEntry `json:"progress"`
	Summary  ProgressSummary `json:"summary"`
}

// ProgressFilters narrows GET /user-progress. Zero values mean unfiltered.
type ProgressFilters struct {
	SectionID string
	Status    ProgressStatus
}

// Session is one learning session.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TopicID   *string    `json:"topic_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	AISummary *string    `json:"ai_summary"`
}

// SessionDetails extends Session with the joined topic title.
// Body of GET /sessions/{id}.
type SessionDetails struct {
	Session
	TopicTitle *string `json:"topic_title"`
}

// SessionListItem is one row of GET /sessions.
type SessionListItem struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TopicID    *string    `json:"topic_id"`
	TopicTitle *string    `json:"topic_title"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	AISummary  *string    `json:"ai_summary"`
}

// Pagination is the paging metadata carried by list responses.
type Pagination struct {
	Total   int   `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore *bool `json:"has_more,omitempty"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions   []SessionListItem `json:"sessions"`
	Pagination Pagination        `json:"pagination"`
}

// MessageContent is the structured payload of a text message. AudioURL is
// set on assistant replies that carry a spoken rendition.
type MessageContent struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	AudioURL string `json:"audio_url,omitempty"`
}

// SessionMessage is one message within a session.
type SessionMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Sender    MessageSender  `json:"sender"`
	Content   MessageContent `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// MessageListResponse is the body of GET /sessions/{id}/messages.
type MessageListResponse struct {
	Messages   []SessionMessage `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// CreateMessageCommand is the body of POST /sessions/{id}/messages.
type CreateMessageCommand struct {
	Sender  MessageSender  `json:"sender"`
	Content MessageContent `json:"content"`
}

// PageQuery controls message pagination.
type PageQuery struct {
	Limit  int
	Offset int
	// Order is "asc" or "desc" by creation time.
	Order string
}

// Profile is the body of GET /profile.
type Profile struct {
	ID                   string    `json:"id"`
	Login                string    `json:"login"`
	Email                string    `json:"email"`
	HasCompletedTutorial bool      `json:"has_completed_tutorial"`
	CreatedAt            time.Time `json:"created_at"`
}

// UpdateProfileCommand is the body of PUT /profile.
type UpdateProfileCommand struct {
	HasCompletedTutorial bool `json:"has_completed_tutorial"`
}
