package model

import "time"

// Category is the closed set of query topics a specialist handler exists for.
type Category string

const (
	CategoryLoan     Category = "loan"
	CategoryAccount  Category = "account"
	CategoryPolicy   Category = "policy"
	CategoryGeneral  Category = "general"
	CategoryEscalate Category = "escalate"
)

// categoryPriority orders categories for merging; lower is higher priority.
var categoryPriority = map[Category]int{
	CategoryLoan:     0,
	CategoryAccount:  1,
	CategoryPolicy:   2,
	CategoryGeneral:  3,
	CategoryEscalate: 4,
}

// ParseCategory maps a raw label to a known category. Unknown labels are
// rejected rather than coerced; the router decides what to do with them.
func ParseCategory(label string) (Category, bool) {
	c := Category(label)
	_, ok := categoryPriority[c]
	return c, ok
}

// Priority returns the merge priority of the category (lower merges first).
// Unknown categories sort last.
func (c Category) Priority() int {
	if p, ok := categoryPriority[c]; ok {
		return p
	}
	return len(categoryPriority)
}

func (c Category) String() string {
	return string(c)
}

// Query is one inbound user question. Immutable once created.
type Query struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// IntentScore is one classified category with the model's confidence in it.
type IntentScore struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Classification is the intent router's verdict for a query. A query may map
// to more than one category (multi-intent).
type Classification struct {
	QueryID string        `json:"query_id"`
	Intents []IntentScore `json:"intents"`
	// Degraded is set when classification fell back to the general category
	// because the provider was unavailable after a retry.
	Degraded bool `json:"degraded"`
}

// Categories returns the classified categories in merge-priority order.
func (c Classification) Categories() []Category {
	out := make([]Category, 0, len(c.Intents))
	for _, in := range c.Intents {
		out = append(out, in.Category)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority() < out[j-1].Priority(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Draft is a candidate answer produced by one specialist for one category.
type Draft struct {
	QueryID    string   `json:"query_id"`
	Category   Category `json:"category"`
	AnswerText string   `json:"answer_text"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	// CannotAnswer marks a degraded draft (upstream failure or an explicit
	// refusal). Such drafts are dropped from the merge unless every draft
	// carries the marker.
	CannotAnswer bool `json:"cannot_answer"`
}

// Response is the single merged answer returned to the user for a query.
type Response struct {
	QueryID          string   `json:"query_id"`
	AnswerText       string   `json:"answer_text"`
	Sources          []string `json:"sources"`
	Confidence       float64  `json:"confidence"`
	NeedsEscalation  bool     `json:"needs_escalation"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
}

// EscalationStatus is the two-state lifecycle of an escalation record.
type EscalationStatus string

const (
	EscalationOpen     EscalationStatus = "open"
	EscalationResolved EscalationStatus = "resolved"
)

// EscalationRecord is a durable record of a query awaiting human resolution.
// Created when synthesis flags a query; mutated only by an admin resolve;
// never deleted.
type EscalationRecord struct {
	ID         string           `json:"id"`
	QueryID    string           `json:"query_id"`
	UserID     string           `json:"user_id"`
	SessionID  string           `json:"session_id"`
	QueryText  string           `json:"query_text"`
	Reason     string           `json:"reason"`
	Status     EscalationStatus `json:"status"`
	Resolution string           `json:"resolution,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's append-only conversation log.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Session is the metadata of one user's ongoing conversation.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int       `json:"message_count"`
}

// KnowledgeItem is one uploaded document owned by the knowledge store.
// Read-only to the query path.
type KnowledgeItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Category  Category  `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
