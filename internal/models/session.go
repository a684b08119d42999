package models

import "time"

// Session statuses as reported by the API.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusEnded    = "ended"
	StatusNotFound = "not_found"
)

// ChatEntry is a single transcript line. Entries are append-only.
type ChatEntry struct {
	Text string `json:"text"`
	At   int64  `json:"at"`
	Name string `json:"name,omitempty"`
}

// AcceptedBy records which operator claimed a session. Set at most once.
type AcceptedBy struct {
	OperatorChatID string `json:"operatorChatId"`
	OperatorName   string `json:"operatorName,omitempty"`
	AcceptedAt     int64  `json:"acceptedAt"`
}

// Session tracks one escalated visitor-operator conversation.
// Timestamps are epoch milliseconds and never move backwards.
type Session struct {
	SessionID      string      `json:"sessionId"`
	VisitorName    string      `json:"visitorName"`
	Email          string      `json:"email,omitempty"`
	PageURL        string      `json:"pageUrl,omitempty"`
	Message        string      `json:"message"`
	CreatedAt      int64       `json:"createdAt"`
	LastActivityAt int64       `json:"lastActivityAt"`
	Accepted       bool        `json:"accepted"`
	AcceptedBy     *AcceptedBy `json:"acceptedBy,omitempty"`
	EndedAt        int64       `json:"endedAt,omitempty"`
	EndedBy        string      `json:"endedBy,omitempty"`
	UserMessages   []ChatEntry `json:"userMessages"`
	OwnerMessages  []ChatEntry `json:"ownerMessages"`
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Status derives the lifecycle state: pending, accepted or ended.
func (s *Session) Status() string {
	switch {
	case s.EndedAt != 0:
		return StatusEnded
	case s.Accepted:
		return StatusAccepted
	default:
		return StatusPending
	}
}

// Live reports whether visitor messages should be forwarded to the operator.
func (s *Session) Live() bool {
	return s.Accepted && s.EndedAt == 0 && s.AcceptedBy != nil && s.AcceptedBy.OperatorChatID != ""
}

// Touch bumps LastActivityAt, keeping it monotonically non-decreasing.
func (s *Session) Touch() {
	if now := NowMillis(); now > s.LastActivityAt {
		s.LastActivityAt = now
	}
}

// AppendUserMessage records a visitor transcript line and touches the session.
func (s *Session) AppendUserMessage(text, name string) {
	s.UserMessages = append(s.UserMessages, ChatEntry{Text: text, At: NowMillis(), Name: name})
	s.Touch()
}

// AppendOwnerMessage records an operator transcript line and touches the session.
func (s *Session) AppendOwnerMessage(text, name string) {
	s.OwnerMessages = append(s.OwnerMessages, ChatEntry{Text: text, At: NowMillis(), Name: name})
	s.Touch()
}
