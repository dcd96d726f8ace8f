package flow

import "fmt"

// Field names one ThreadState field that stage updates may target. Every
// field carries a declared merge policy; applying an update that names an
// undeclared field is an error, never a silent overwrite.
type Field string

const (
	FieldMessages              Field = "messages"
	FieldQuery                 Field = "query"
	FieldSubject               Field = "subject"
	FieldLastResolvedSubject   Field = "last_resolved_subject"
	FieldClarityStatus         Field = "clarity_status"
	FieldClarificationQuestion Field = "clarification_question"
	FieldFindings              Field = "findings"
	FieldConfidence            Field = "confidence"
	FieldValidation            Field = "validation"
	FieldAttempts              Field = "attempts"
	FieldFinalResponse         Field = "final_response"
)

type MergePolicy int

const (
	PolicyOverwrite MergePolicy = iota
	PolicyAppend
)

var mergePolicies = map[Field]MergePolicy{
	FieldMessages:              PolicyAppend,
	FieldQuery:                 PolicyOverwrite,
	FieldSubject:               PolicyOverwrite,
	FieldLastResolvedSubject:   PolicyOverwrite,
	FieldClarityStatus:         PolicyOverwrite,
	FieldClarificationQuestion: PolicyOverwrite,
	FieldFindings:              PolicyOverwrite,
	FieldConfidence:            PolicyOverwrite,
	FieldValidation:            PolicyOverwrite,
	FieldAttempts:              PolicyOverwrite,
	FieldFinalResponse:         PolicyOverwrite,
}

// applyOrder fixes the merge order so appends are deterministic regardless of
// map iteration.
var applyOrder = []Field{
	FieldMessages,
	FieldQuery,
	FieldSubject,
	FieldLastResolvedSubject,
	FieldClarityStatus,
	FieldClarificationQuestion,
	FieldFindings,
	FieldConfidence,
	FieldValidation,
	FieldAttempts,
	FieldFinalResponse,
}

// PolicyFor reports the declared merge policy for a field.
func PolicyFor(f Field) (MergePolicy, bool) {
	p, ok := mergePolicies[f]
	return p, ok
}

// Update is a partial ThreadState: a mapping from fields to new values. An
// absent field leaves the prior value untouched.
type Update map[Field]any

func (u Update) AppendMessage(m Message) Update {
	prev, _ := u[FieldMessages].([]Message)
	u[FieldMessages] = append(prev, m)
	return u
}

func (u Update) Set(f Field, v any) Update {
	u[f] = v
	return u
}

// UserTurn is the standard input delta for a new turn: the query text is
// recorded in history and overwrites the active query.
func UserTurn(query string) Update {
	return Update{}.AppendMessage(UserMessage(query)).Set(FieldQuery, query)
}

// Apply merges an update into the state under the per-field policy table.
// Append fields concatenate in order; overwrite fields replace. The state is
// not modified when an error is returned.
func Apply(s *ThreadState, u Update) error {
	if len(u) == 0 {
		return nil
	}
	for f := range u {
		if _, ok := mergePolicies[f]; !ok {
			return fmt.Errorf("no merge policy declared for field %q", f)
		}
	}
	staged := *s
	for _, f := range applyOrder {
		v, ok := u[f]
		if !ok {
			continue
		}
		if err := applyField(&staged, f, v); err != nil {
			return err
		}
	}
	*s = staged
	return nil
}

func applyField(s *ThreadState, f Field, v any) error {
	switch f {
	case FieldMessages:
		ms, ok := v.([]Message)
		if !ok {
			return typeError(f, "[]Message", v)
		}
		s.Messages = append(append([]Message(nil), s.Messages...), ms...)
	case FieldQuery:
		return assignString(&s.Query, f, v)
	case FieldSubject:
		return assignString(&s.Subject, f, v)
	case FieldLastResolvedSubject:
		return assignString(&s.LastResolvedSubject, f, v)
	case FieldClarityStatus:
		cs, ok := v.(ClarityStatus)
		if !ok {
			return typeError(f, "ClarityStatus", v)
		}
		s.ClarityStatus = cs
	case FieldClarificationQuestion:
		return assignString(&s.ClarificationQuestion, f, v)
	case FieldFindings:
		return assignString(&s.Findings, f, v)
	case FieldConfidence:
		switch t := v.(type) {
		case nil:
			s.Confidence = nil
		case float64:
			s.Confidence = &t
		case *float64:
			s.Confidence = t
		default:
			return typeError(f, "float64", v)
		}
	case FieldValidation:
		vr, ok := v.(ValidationResult)
		if !ok {
			return typeError(f, "ValidationResult", v)
		}
		s.Validation = vr
	case FieldAttempts:
		n, ok := v.(int)
		if !ok {
			return typeError(f, "int", v)
		}
		if n < 0 {
			return fmt.Errorf("attempts must be >= 0, got %d", n)
		}
		s.Attempts = n
	case FieldFinalResponse:
		return assignString(&s.FinalResponse, f, v)
	}
	return nil
}

func assignString(dst *string, f Field, v any) error {
	str, ok := v.(string)
	if !ok {
		return typeError(f, "string", v)
	}
	*dst = str
	return nil
}

func typeError(f Field, want string, got any) error {
	return fmt.Errorf("field %q wants %s, got %T", f, want, got)
}

// ResetTurn clears the per-turn pipeline fields. The executor applies it
// before merging the turn-start stage's own output, so each turn begins with
// a clean downstream pipeline while history and the sticky subject survive.
func ResetTurn(s *ThreadState) {
	s.Attempts = 0
	s.Validation = ""
	s.Confidence = nil
	s.Findings = ""
	s.FinalResponse = ""
}
