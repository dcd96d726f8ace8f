package flow

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role-tagged entry in a thread's conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

type ClarityStatus string

const (
	ClarityClear              ClarityStatus = "clear"
	ClarityNeedsClarification ClarityStatus = "needs_clarification"
)

func ParseClarityStatus(s string) (ClarityStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clear":
		return ClarityClear, nil
	case "needs_clarification", "needs-clarification":
		return ClarityNeedsClarification, nil
	default:
		return "", fmt.Errorf("invalid clarity status: %q", s)
	}
}

type ValidationResult string

const (
	ValidationSufficient   ValidationResult = "sufficient"
	ValidationInsufficient ValidationResult = "insufficient"
)

func ParseValidationResult(s string) (ValidationResult, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sufficient":
		return ValidationSufficient, nil
	case "insufficient":
		return ValidationInsufficient, nil
	default:
		return "", fmt.Errorf("invalid validation result: %q", s)
	}
}

// PendingResume marks a suspended thread: which stage raised the suspension,
// where control re-enters on resume, and the payload surfaced to the caller.
type PendingResume struct {
	Stage       string `json:"stage"`
	TargetStage string `json:"target_stage"`
	Payload     any    `json:"payload"`
}

// ThreadState is the durable per-thread record. A thread is "suspended" while
// Pending is non-nil and "settled" otherwise; Invoke is only valid on settled
// threads and Resume only on suspended ones.
type ThreadState struct {
	ThreadID string `json:"thread_id"`

	// Messages and Visited are append-only; everything else is overwritten
	// field-by-field by stage updates (see reducer.go).
	Messages []Message `json:"messages"`
	Visited  []string  `json:"visited"`

	Query                 string           `json:"query,omitempty"`
	Subject               string           `json:"subject,omitempty"`
	LastResolvedSubject   string           `json:"last_resolved_subject,omitempty"`
	ClarityStatus         ClarityStatus    `json:"clarity_status,omitempty"`
	ClarificationQuestion string           `json:"clarification_question,omitempty"`
	Findings              string           `json:"findings,omitempty"`
	Confidence            *float64         `json:"confidence,omitempty"`
	Validation            ValidationResult `json:"validation,omitempty"`
	Attempts              int              `json:"attempts"`
	FinalResponse         string           `json:"final_response,omitempty"`

	Pending *PendingResume `json:"pending,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewThreadState(threadID string) *ThreadState {
	return &ThreadState{ThreadID: threadID}
}

func (s *ThreadState) Suspended() bool {
	return s != nil && s.Pending != nil
}

// Clone returns a deep copy of the state. Suspension payloads are treated as
// immutable and copied by reference.
func (s *ThreadState) Clone() *ThreadState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Visited = append([]string(nil), s.Visited...)
	if s.Confidence != nil {
		v := *s.Confidence
		out.Confidence = &v
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return &out
}
