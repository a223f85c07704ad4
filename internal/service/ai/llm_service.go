package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/model/persona"
)

const historyLimit = 10

// ArkCompleter answers through an eino chain (prompt template + chat model),
// giving the model the persona prompt and recent history for the email.
type ArkCompleter struct {
	persona persona.Persona
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter compiles the chat chain around chatModel.
func NewArkCompleter(ctx context.Context, chatModel model.ChatModel, p persona.Persona) (*ArkCompleter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model must not be nil")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkCompleter{
		persona: p,
		chain:   runnable,
	}, nil
}

// Complete runs the chain and wraps the reply in the hosted model's
// {"AI_out": ...} shape so callers see one payload format.
func (s *ArkCompleter) Complete(ctx context.Context, req Request) (chat.Completion, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(&s.persona, req))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return chat.Completion{}, fmt.Errorf("%w: empty model response", ErrMalformedPayload)
	}

	raw, err := json.Marshal(map[string]string{"AI_out": response.Content})
	if err != nil {
		return chat.Completion{}, fmt.Errorf("encode completion: %w", err)
	}

	log.Printf("[ai] ark completion for persona=%s, length=%d", s.persona.ID, len(response.Content))
	return chat.Completion{AIOut: response.Content, Raw: raw}, nil
}

func buildChainInput(p *persona.Persona, req Request) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": buildHistoryMessages(req.History),
		"query":   req.Message,
	}
}

func buildHistoryMessages(entries []chat.HistoryEntry) []*schema.Message {
	if len(entries) == 0 {
		return nil
	}

	startIdx := 0
	if len(entries) > historyLimit {
		startIdx = len(entries) - historyLimit
	}

	history := make([]*schema.Message, 0, 2*(len(entries)-startIdx))
	for _, entry := range entries[startIdx:] {
		history = append(history, schema.UserMessage(entry.Message))
		if reply, err := DecodeCompletion(entry.Response); err == nil && reply.AIOut != "" {
			history = append(history, schema.AssistantMessage(reply.AIOut, nil))
		}
	}
	return history
}
