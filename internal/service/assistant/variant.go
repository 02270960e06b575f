package assistant

import (
	"fmt"
	"strings"

	"ragchat/internal/config"
	"ragchat/internal/models"
)

// Greeting is the opening exchange a new conversation is seeded with.
type Greeting struct {
	User      string
	Assistant string
}

func (g *Greeting) messages() []models.Message {
	if g == nil {
		return nil
	}
	return []models.Message{
		models.NewMessage(models.RoleUser, g.User),
		models.NewMessage(models.RoleAssistant, g.Assistant),
	}
}

// Variant selects how one route group behaves.
type Variant struct {
	Name         string
	RoutePrefix  string
	SystemPrompt string
	TopK         int
	// CaptureContact forwards first_name and phone_number of new conversations.
	CaptureContact bool
	// ExtractName asks the model for the user's name on every turn.
	ExtractName bool
	Stream      bool
	Greeting    *Greeting
}

// Preset returns a built-in variant.
func Preset(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "plain":
		return Variant{Name: "plain", SystemPrompt: DocumentPrompt, TopK: 5}, nil
	case "leads":
		return Variant{Name: "leads", SystemPrompt: DocumentPrompt, TopK: 5, CaptureContact: true}, nil
	case "concierge":
		return Variant{
			Name:         "concierge",
			SystemPrompt: ConciergePrompt,
			TopK:         10,
			ExtractName:  true,
			Stream:       true,
			Greeting:     &Greeting{User: conciergeGreetingUser, Assistant: conciergeGreetingAssistant},
		}, nil
	default:
		return Variant{}, fmt.Errorf("unknown variant preset: %s", name)
	}
}

// VariantFromConfig starts from the preset and applies the configured overrides.
func VariantFromConfig(cfg config.VariantConfig) (Variant, error) {
	preset := cfg.Preset
	if preset == "" {
		preset = cfg.Name
	}
	v, err := Preset(preset)
	if err != nil {
		return Variant{}, err
	}
	if cfg.Name != "" {
		v.Name = cfg.Name
	}
	v.RoutePrefix = strings.TrimRight(cfg.RoutePrefix, "/")
	if v.RoutePrefix != "" && !strings.HasPrefix(v.RoutePrefix, "/") {
		v.RoutePrefix = "/" + v.RoutePrefix
	}
	if cfg.SystemPrompt != "" {
		v.SystemPrompt = cfg.SystemPrompt
	}
	if cfg.TopK > 0 {
		v.TopK = cfg.TopK
	}
	return v, nil
}
