package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structured-output contracts for the LLM calls. Each schema is sent to the
// provider as the response schema and enforced again locally before decoding,
// so a model that drifts from the contract fails loudly instead of leaking
// malformed values into thread state.

const clarityResultSchema = `{
	"type": "object",
	"properties": {
		"clarity_status": {
			"type": "string",
			"enum": ["clear", "needs_clarification"],
			"description": "Whether the query identifies a researchable company"
		},
		"company_name": {
			"type": "string",
			"description": "The resolved company name when clarity_status is clear"
		},
		"clarification_question": {
			"type": "string",
			"description": "Follow-up question to ask when clarification is needed"
		}
	},
	"required": ["clarity_status"]
}`

const confidenceAssessmentSchema = `{
	"type": "object",
	"properties": {
		"confidence_score": {
			"type": "number",
			"description": "Confidence score from 0-10 on how well the research answers the query"
		},
		"reasoning": {
			"type": "string",
			"description": "Brief explanation of the confidence assessment"
		}
	},
	"required": ["confidence_score", "reasoning"]
}`

const validationAssessmentSchema = `{
	"type": "object",
	"properties": {
		"validation_result": {
			"type": "string",
			"enum": ["sufficient", "insufficient"],
			"description": "Whether the research adequately answers the query"
		},
		"critique": {
			"type": "string",
			"description": "Brief critique of the research quality"
		},
		"suggestions": {
			"type": "string",
			"description": "Suggestions for improvement if validation is insufficient"
		}
	},
	"required": ["validation_result", "critique", "suggestions"]
}`

type clarityResult struct {
	ClarityStatus         string `json:"clarity_status"`
	CompanyName           string `json:"company_name,omitempty"`
	ClarificationQuestion string `json:"clarification_question,omitempty"`
}

type confidenceAssessment struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
}

type validationAssessment struct {
	ValidationResult string `json:"validation_result"`
	Critique         string `json:"critique"`
	Suggestions      string `json:"suggestions"`
}

var (
	claritySchema    = mustCompileSchema("clarity_result.json", clarityResultSchema)
	confidenceSchema = mustCompileSchema("confidence_assessment.json", confidenceAssessmentSchema)
	validationSchema = mustCompileSchema("validation_assessment.json", validationAssessmentSchema)
)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, raw)
}

// schemaMap renders a schema literal as the map form providers expect in a
// response-format request.
func schemaMap(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(fmt.Sprintf("invalid schema literal: %v", err))
	}
	return m
}

// decodeStructured strips markdown code fences from a model reply, checks the
// payload against the schema, and decodes it into out.
func decodeStructured(schema *jsonschema.Schema, text string, out any) error {
	cleaned := stripCodeFences(text)
	var generic any
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("structured output failed schema validation: %w", err)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}

// stripCodeFences removes a surrounding ```json ... ``` (or bare ```) fence.
// Models occasionally wrap JSON output even when asked not to.
func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:nl])
		if first == "" || strings.EqualFold(first, "json") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
