package ai

import (
	"context"
	"encoding/json"
	"strings"

	"ragchat/internal/logging"
	"ragchat/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// NameFinderPrompt instructs the model to report the user's name as JSON.
const NameFinderPrompt = `You're a marketing assistant for **Paloma The Grandeur**, a luxurious real estate project in Kanpur by **Paloma Realty**.
Based on the chat going so far, you need to find out the name of the user, if mentioned by user.
Understand the entire conversation and find out the name of the user, if mentioned by user in the latest message.
Always use the following JSON format to return the name:
` + "```json" + `
{
    "user_name": "string" or null // If name present then return the name, else return null
}
` + "```"

// NameExtractor asks the model whether the latest message mentions the user's name.
type NameExtractor struct {
	chatModel   model.BaseChatModel
	prompt      string
	temperature float32
	logger      *zap.Logger
}

func NewNameExtractor(chatModel model.BaseChatModel, temperature float32, logger *zap.Logger) *NameExtractor {
	return &NameExtractor{
		chatModel:   chatModel,
		prompt:      NameFinderPrompt,
		temperature: temperature,
		logger:      logging.OrNop(logger),
	}
}

// Extract returns the name or "" when none was found. Failures count as no name.
func (n *NameExtractor) Extract(ctx context.Context, history []models.Message, latest string) string {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(n.prompt))
	msgs = append(msgs, convertMessages(history)...)
	msgs = append(msgs, schema.UserMessage(latest))

	var opts []model.Option
	if n.temperature > 0 {
		opts = append(opts, model.WithTemperature(n.temperature))
	}
	resp, err := n.chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		n.logger.Warn("name extraction failed", zap.Error(err))
		return ""
	}
	if resp == nil {
		return ""
	}
	name, ok := ParseUserName(resp.Content)
	if !ok {
		n.logger.Debug("name extraction output not parseable", zap.String("output", resp.Content))
	}
	return name
}

// ParseUserName reads {"user_name": ...} from raw, bare or inside a fenced block.
// ok is false when raw holds no parseable object.
func ParseUserName(raw string) (string, bool) {
	body := strings.TrimSpace(raw)
	if start := strings.Index(body, "```"); start >= 0 {
		rest := body[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		body = strings.TrimSpace(rest)
	}
	// models sometimes copy the inline comment from the prompt
	body = stripLineComments(body)

	var out struct {
		UserName *string `json:"user_name"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", false
	}
	if out.UserName == nil {
		return "", true
	}
	return strings.TrimSpace(*out.UserName), true
}

func stripLineComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 && !insideString(line, idx) {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func insideString(line string, pos int) bool {
	in := false
	for i := 0; i < pos; i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			in = !in
		}
	}
	return in
}
