package ai

import (
	"fmt"
	"strings"

	"github.com/diagnobuddy/backend/internal/model/persona"
)

var contextRules = []string{
	"Never present an answer as a diagnosis; describe possibilities and typical next steps.",
	"Tell the user to contact emergency services for chest pain, breathing difficulty, heavy bleeding or loss of consciousness.",
	"Ask one short follow-up question when the symptom description is too vague to help.",
	"Keep answers short and use plain language.",
}

// BuildSystemPrompt renders the system prompt for p.
func BuildSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, a %s.

Tone: %s
Guidance: %s
Areas: %s

Rules:
- %s

Every conversation opened with: %s
Always remember: %s`,
		p.Name,
		strings.ToLower(p.Title),
		p.Tone,
		p.PromptHint,
		strings.Join(p.Expertise, ", "),
		strings.Join(contextRules, "\n- "),
		p.Greeting,
		p.Disclaimer,
	)
}
