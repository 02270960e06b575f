package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ragchat/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// GeneratorOptions bounds every completion.
type GeneratorOptions struct {
	Temperature  float32
	MaxTokens    int
	HistoryTurns int
}

// Generator answers a question from retrieved context and recent history.
type Generator struct {
	chatModel model.BaseChatModel
	opts      GeneratorOptions
}

func NewGenerator(chatModel model.BaseChatModel, opts GeneratorOptions) *Generator {
	return &Generator{chatModel: chatModel, opts: opts}
}

// BuildMessages returns the system prompt, the last HistoryTurns prior messages and a
// user turn that combines context and question.
func (g *Generator) BuildMessages(systemPrompt string, history []models.Message, contextText, question string) []*schema.Message {
	if n := g.opts.HistoryTurns; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	msgs = append(msgs, convertMessages(history)...)
	msgs = append(msgs, schema.UserMessage(
		fmt.Sprintf("Context information is below:\n\n%s\n\nQuestion: %s", contextText, question)))
	return msgs
}

func (g *Generator) callOptions() []model.Option {
	opts := make([]model.Option, 0, 2)
	if g.opts.Temperature > 0 {
		opts = append(opts, model.WithTemperature(g.opts.Temperature))
	}
	if g.opts.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(g.opts.MaxTokens))
	}
	return opts
}

// Generate returns the whole completion at once.
func (g *Generator) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	resp, err := g.chatModel.Generate(ctx, msgs, g.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("generate chat response: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate chat response: empty response")
	}
	return resp.Content, nil
}

// Stream delivers fragments to onFragment in arrival order and returns their
// concatenation. An upstream error after some fragments is still returned.
func (g *Generator) Stream(ctx context.Context, msgs []*schema.Message, onFragment func(string) error) (string, error) {
	reader, err := g.chatModel.Stream(ctx, msgs, g.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("open chat stream: %w", err)
	}
	defer reader.Close()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("read chat stream: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if onFragment != nil {
			if err := onFragment(chunk.Content); err != nil {
				return full.String(), err
			}
		}
	}
}

func convertMessages(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
