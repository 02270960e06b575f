package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/conversation"
	"ragchat/internal/lead"
	"ragchat/internal/logging"
	"ragchat/internal/models"
	"ragchat/internal/service/retrieval"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
}

type Generator interface {
	BuildMessages(systemPrompt string, history []models.Message, contextText, question string) []*schema.Message
	Generate(ctx context.Context, msgs []*schema.Message) (string, error)
	Stream(ctx context.Context, msgs []*schema.Message, onFragment func(string) error) (string, error)
}

type NameExtractor interface {
	Extract(ctx context.Context, history []models.Message, latest string) string
}

type LeadLogger interface {
	Log(ctx context.Context, c lead.Contact)
}

// Deps are the collaborators of a Service. Names may be nil unless the variant
// extracts names; Leads may be nil to disable lead forwarding.
type Deps struct {
	Store    conversation.Store
	Embedder Embedder
	Searcher Searcher
	Gen      Generator
	Names    NameExtractor
	Leads    LeadLogger
	Logger   *zap.Logger
}

// Service runs chat turns for one variant.
type Service struct {
	variant Variant
	deps    Deps
	locker  *conversation.Locker
	logger  *zap.Logger
}

func NewService(v Variant, deps Deps) (*Service, error) {
	if deps.Store == nil || deps.Embedder == nil || deps.Searcher == nil || deps.Gen == nil {
		return nil, errors.New("assistant: store, embedder, searcher and generator are required")
	}
	if v.ExtractName && deps.Names == nil {
		return nil, fmt.Errorf("assistant: variant %s extracts names but has no extractor", v.Name)
	}
	return &Service{
		variant: v,
		deps:    deps,
		locker:  conversation.NewLocker(),
		logger:  logging.OrNop(deps.Logger).With(zap.String("variant", v.Name)),
	}, nil
}

func (s *Service) Variant() Variant { return s.variant }

// Turn is one user request. ConversationID is empty for a new conversation.
type Turn struct {
	Message        string
	FirstName      string
	PhoneNumber    string
	ConversationID string
	TopK           int
}

// prepared is the state of a turn once retrieval has run.
type prepared struct {
	id       string
	history  []models.Message
	userName string
	matches  []models.Match
	unlock   func()
}

// prepare covers everything up to and including the vector search. The returned
// unlock must be called when err is nil.
func (s *Service) prepare(ctx context.Context, turn Turn) (*prepared, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	topK := turn.TopK
	if topK <= 0 {
		topK = s.variant.TopK
	}

	id := turn.ConversationID
	if id == "" {
		created, err := s.deps.Store.Create(ctx, s.variant.Greeting.messages()...)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		id = created
		s.logger.Debug("conversation created", zap.String("conversation_id", id))
		if s.variant.CaptureContact && turn.FirstName != "" && turn.PhoneNumber != "" {
			s.logLead(ctx, lead.Contact{FirstName: turn.FirstName, PhoneNumber: turn.PhoneNumber})
		}
	}

	unlock := s.locker.Lock(id)
	p, err := s.retrieve(ctx, id, turn, topK)
	if err != nil {
		unlock()
		return nil, err
	}
	p.unlock = unlock
	return p, nil
}

func (s *Service) retrieve(ctx context.Context, id string, turn Turn, topK int) (*prepared, error) {
	history, err := s.deps.Store.Get(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if err := s.deps.Store.Append(ctx, id, models.NewMessage(models.RoleUser, turn.Message)); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	p := &prepared{id: id, history: history}
	if s.variant.ExtractName {
		p.userName = s.deps.Names.Extract(ctx, history, turn.Message)
		if p.userName != "" {
			s.logger.Info("user name found", zap.String("conversation_id", id), zap.String("user_name", p.userName))
			s.logLead(ctx, lead.Contact{FirstName: p.userName, Message: turn.Message})
		}
	}

	vector := s.deps.Embedder.Embed(ctx, turn.Message)
	if len(vector) == 0 {
		return nil, ErrEmbedding
	}
	matches, err := s.deps.Searcher.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}
	p.matches = matches
	return p, nil
}

func (s *Service) logLead(ctx context.Context, c lead.Contact) {
	if s.deps.Leads == nil {
		return
	}
	s.deps.Leads.Log(ctx, c)
}

func (s *Service) appendAnswer(ctx context.Context, id, answer string) error {
	if err := s.deps.Store.Append(ctx, id, models.NewMessage(models.RoleAssistant, answer)); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}
	return nil
}

// Chat runs one blocking turn.
func (s *Service) Chat(ctx context.Context, turn Turn) (*models.ChatResponse, error) {
	p, err := s.prepare(ctx, turn)
	if err != nil {
		return nil, err
	}
	defer p.unlock()

	if len(p.matches) == 0 {
		if err := s.appendAnswer(ctx, p.id, NoMatchAnswer); err != nil {
			return nil, err
		}
		return &models.ChatResponse{Answer: NoMatchAnswer, Sources: models.Sources{}, ConversationID: p.id}, nil
	}

	msgs := s.deps.Gen.BuildMessages(s.variant.SystemPrompt, p.history, retrieval.FormatContext(p.matches), turn.Message)
	answer, err := s.deps.Gen.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := s.appendAnswer(ctx, p.id, answer); err != nil {
		return nil, err
	}
	return &models.ChatResponse{
		Answer:         answer,
		Sources:        retrieval.GroupSources(p.matches),
		ConversationID: p.id,
	}, nil
}

// ChatStream runs one streaming turn. Frames go to emit in order: conversation id,
// user name, then text fragments. Nothing is emitted when the turn fails before the
// first fragment; the assistant message is stored only after the stream completes.
func (s *Service) ChatStream(ctx context.Context, turn Turn, emit func(models.Frame) error) error {
	p, err := s.prepare(ctx, turn)
	if err != nil {
		return err
	}
	defer p.unlock()

	headerSent := false
	sendHeader := func() error {
		if headerSent {
			return nil
		}
		headerSent = true
		if err := emit(models.ConversationIDFrame(p.id)); err != nil {
			return err
		}
		return emit(models.UserNameFrame(p.userName))
	}

	if len(p.matches) == 0 {
		if err := s.appendAnswer(ctx, p.id, NoMatchAnswer); err != nil {
			return err
		}
		if err := sendHeader(); err != nil {
			return err
		}
		return emit(models.MessageFrame(NoMatchAnswer))
	}

	msgs := s.deps.Gen.BuildMessages(s.variant.SystemPrompt, p.history, retrieval.FormatContext(p.matches), turn.Message)
	full, err := s.deps.Gen.Stream(ctx, msgs, func(fragment string) error {
		if err := sendHeader(); err != nil {
			return err
		}
		return emit(models.MessageFrame(fragment))
	})
	if err != nil {
		s.logger.Warn("stream failed", zap.String("conversation_id", p.id), zap.Bool("partial", headerSent), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := sendHeader(); err != nil {
		return err
	}
	return s.appendAnswer(ctx, p.id, full)
}

// Conversation returns the stored history of id.
func (s *Service) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	msgs, err := s.deps.Store.Get(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &models.Conversation{ID: id, Messages: msgs}, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]string, error) {
	ids, err := s.deps.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return ids, nil
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	unlock := s.locker.Lock(id)
	defer unlock()
	err := s.deps.Store.Delete(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
