package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"ragchat/internal/conversation"
	"ragchat/internal/lead"
	"ragchat/internal/models"
	"ragchat/internal/service/ai"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeEmbedder struct {
	fail  bool
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) []float32 {
	f.calls++
	if f.fail {
		return nil
	}
	return []float32{1, 0, 0}
}

type fakeSearcher struct {
	matches []models.Match
	err     error
	topK    int
}

func (f *fakeSearcher) Query(_ context.Context, _ []float32, topK int) ([]models.Match, error) {
	f.topK = topK
	return f.matches, f.err
}

type fakeChatModel struct {
	reply     string
	fragments []string
	err       error
	streamErr error
	calls     int
	lastInput []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.fragments) + 1)
	go func() {
		defer sw.Close()
		for _, frag := range f.fragments {
			sw.Send(schema.AssistantMessage(frag, nil), nil)
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

type fakeNames struct{ name string }

func (f fakeNames) Extract(context.Context, []models.Message, string) string { return f.name }

type recordingLeads struct {
	mu       sync.Mutex
	contacts []lead.Contact
}

func (r *recordingLeads) Log(_ context.Context, c lead.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts = append(r.contacts, c)
}

type harness struct {
	svc      *Service
	store    *conversation.MemoryStore
	embedder *fakeEmbedder
	searcher *fakeSearcher
	model    *fakeChatModel
	leads    *recordingLeads
}

func newHarness(t *testing.T, preset string, userName string) *harness {
	t.Helper()
	v, err := Preset(preset)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	h := &harness{
		store:    conversation.NewMemoryStore(),
		embedder: &fakeEmbedder{},
		searcher: &fakeSearcher{matches: []models.Match{
			{Filename: "brochure", Page: 2, Content: "Infinity pool and spa.", Score: 0.91},
		}},
		model: &fakeChatModel{reply: "There is an infinity pool.", fragments: []string{"There is ", "an infinity pool."}},
		leads: &recordingLeads{},
	}
	svc, err := NewService(v, Deps{
		Store:    h.store,
		Embedder: h.embedder,
		Searcher: h.searcher,
		Gen:      ai.NewGenerator(h.model, ai.GeneratorOptions{Temperature: 0.3, MaxTokens: 1000, HistoryTurns: 10}),
		Names:    fakeNames{name: userName},
		Leads:    h.leads,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) messages(t *testing.T, id string) []models.Message {
	t.Helper()
	conv, err := h.svc.Conversation(context.Background(), id)
	if err != nil {
		t.Fatalf("conversation %s: %v", id, err)
	}
	return conv.Messages
}

func TestChatNewConversationStoresQuestionAndAnswer(t *testing.T) {
	h := newHarness(t, "plain", "")
	resp, err := h.svc.Chat(context.Background(), Turn{Message: "What amenities are offered?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.ConversationID == "" || resp.Answer != "There is an infinity pool." {
		t.Fatalf("unexpected response %+v", resp)
	}
	pages := resp.Sources["brochure"]
	if len(pages) != 1 || pages[0].Page != 3 || pages[0].Text != "Infinity pool and spa." {
		t.Fatalf("unexpected sources %+v", resp.Sources)
	}
	if h.searcher.topK != 5 {
		t.Fatalf("expected default top_k 5, got %d", h.searcher.topK)
	}

	msgs := h.messages(t, resp.ConversationID)
	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "What amenities are offered?" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != resp.Answer {
		t.Fatalf("unexpected second message %+v", msgs[1])
	}

	input := h.model.lastInput
	if len(input) != 2 {
		t.Fatalf("expected system prompt and question only, got %d messages", len(input))
	}
	if !strings.Contains(input[1].Content, "[brochure (Page 3, relevance: 0.91)]") {
		t.Fatalf("context not passed to the model: %q", input[1].Content)
	}
}

func TestChatFollowUpSendsPriorHistory(t *testing.T) {
	h := newHarness(t, "plain", "")
	ctx := context.Background()
	first, err := h.svc.Chat(ctx, Turn{Message: "Is there a pool?"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := h.svc.Chat(ctx, Turn{Message: "And a gym?", ConversationID: first.ConversationID, TopK: 3}); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if h.searcher.topK != 3 {
		t.Fatalf("request top_k not honoured, got %d", h.searcher.topK)
	}
	input := h.model.lastInput
	if len(input) != 4 {
		t.Fatalf("expected system + 2 prior + question, got %d", len(input))
	}
	if input[1].Content != "Is there a pool?" || input[2].Role != schema.Assistant {
		t.Fatalf("prior history not passed in order: %+v", input)
	}
	if got := len(h.messages(t, first.ConversationID)); got != 4 {
		t.Fatalf("expected 4 stored messages, got %d", got)
	}
}

func TestChatUnknownConversationLeavesStoreUnchanged(t *testing.T) {
	h := newHarness(t, "plain", "")
	_, err := h.svc.Chat(context.Background(), Turn{Message: "Hello", ConversationID: conversation.NewID()})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	ids, _ := h.store.List(context.Background())
	if len(ids) != 0 {
		t.Fatalf("expected no conversations, got %v", ids)
	}
	if h.embedder.calls != 0 {
		t.Fatalf("embedding should not run for unknown conversations")
	}
}

func TestChatEmbeddingFailureKeepsUserMessageOnly(t *testing.T) {
	h := newHarness(t, "plain", "")
	ctx := context.Background()
	first, err := h.svc.Chat(ctx, Turn{Message: "Is there a pool?"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	h.embedder.fail = true
	_, err = h.svc.Chat(ctx, Turn{Message: "And a gym?", ConversationID: first.ConversationID})
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	msgs := h.messages(t, first.ConversationID)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after failed turn, got %d", len(msgs))
	}
	if last := msgs[2]; last.Role != models.RoleUser || last.Content != "And a gym?" {
		t.Fatalf("failed turn should keep only the user message, got %+v", last)
	}
}

func TestChatSearchAndGenerationErrors(t *testing.T) {
	h := newHarness(t, "plain", "")
	h.searcher.err = errors.New("index unavailable")
	if _, err := h.svc.Chat(context.Background(), Turn{Message: "pool?"}); !errors.Is(err, ErrSearch) {
		t.Fatalf("expected ErrSearch, got %v", err)
	}

	h = newHarness(t, "plain", "")
	h.model.err = errors.New("rate limited")
	_, err := h.svc.Chat(context.Background(), Turn{Message: "pool?"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	ids, _ := h.store.List(context.Background())
	if len(ids) != 1 {
		t.Fatalf("expected the conversation to exist, got %v", ids)
	}
	if msgs := h.messages(t, ids[0]); len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Fatalf("no assistant message expected after generation failure: %+v", msgs)
	}
}

func TestChatNoMatchesUsesCannedAnswerWithoutModel(t *testing.T) {
	h := newHarness(t, "plain", "")
	h.searcher.matches = nil
	resp, err := h.svc.Chat(context.Background(), Turn{Message: "Do you sell cars?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Answer != NoMatchAnswer || len(resp.Sources) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if h.model.calls != 0 {
		t.Fatalf("model should not be called without matches")
	}
	if msgs := h.messages(t, resp.ConversationID); len(msgs) != 2 || msgs[1].Content != NoMatchAnswer {
		t.Fatalf("canned answer not stored: %+v", msgs)
	}
}

func TestChatRejectsBlankMessage(t *testing.T) {
	h := newHarness(t, "plain", "")
	if _, err := h.svc.Chat(context.Background(), Turn{Message: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLeadsVariantCapturesContactOnNewConversation(t *testing.T) {
	h := newHarness(t, "leads", "")
	ctx := context.Background()
	resp, err := h.svc.Chat(ctx, Turn{Message: "Hi", FirstName: "Asha", PhoneNumber: "98765"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(h.leads.contacts) != 1 || h.leads.contacts[0].FirstName != "Asha" || h.leads.contacts[0].PhoneNumber != "98765" {
		t.Fatalf("unexpected leads %+v", h.leads.contacts)
	}

	if _, err := h.svc.Chat(ctx, Turn{Message: "More", FirstName: "Asha", PhoneNumber: "98765", ConversationID: resp.ConversationID}); err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if _, err := h.svc.Chat(ctx, Turn{Message: "Hi", FirstName: "Ravi"}); err != nil {
		t.Fatalf("chat without phone: %v", err)
	}
	if len(h.leads.contacts) != 1 {
		t.Fatalf("contact should only be captured for new conversations with name and phone, got %d", len(h.leads.contacts))
	}
}

func TestPlainVariantDoesNotCaptureContact(t *testing.T) {
	h := newHarness(t, "plain", "")
	if _, err := h.svc.Chat(context.Background(), Turn{Message: "Hi", FirstName: "Asha", PhoneNumber: "98765"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(h.leads.contacts) != 0 {
		t.Fatalf("plain variant should not log leads")
	}
}

func collectFrames(t *testing.T, h *harness, turn Turn) ([]models.Frame, error) {
	t.Helper()
	var frames []models.Frame
	err := h.svc.ChatStream(context.Background(), turn, func(f models.Frame) error {
		frames = append(frames, f)
		return nil
	})
	return frames, err
}

func TestChatStreamFrameOrder(t *testing.T) {
	h := newHarness(t, "concierge", "")
	frames, err := collectFrames(t, h, Turn{Message: "What amenities are offered?"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("expected id, name and 2 fragments, got %d", len(frames))
	}
	if frames[0].Kind != models.FrameConversationID || frames[0].Value == "" {
		t.Fatalf("first frame should carry the id: %+v", frames[0])
	}
	if frames[1].Kind != models.FrameUserName || !frames[1].Null {
		t.Fatalf("second frame should be a null user name: %+v", frames[1])
	}
	var text strings.Builder
	for _, f := range frames[2:] {
		if f.Kind != models.FrameMessage {
			t.Fatalf("unexpected frame %+v", f)
		}
		text.WriteString(f.Value)
	}
	if text.String() != "There is an infinity pool." {
		t.Fatalf("fragments do not concatenate to the answer: %q", text.String())
	}
	if h.searcher.topK != 10 {
		t.Fatalf("expected concierge top_k 10, got %d", h.searcher.topK)
	}

	msgs := h.messages(t, frames[0].Value)
	if len(msgs) != 4 {
		t.Fatalf("expected greeting, question and answer, got %d", len(msgs))
	}
	if msgs[0].Content != "Hi" || !strings.HasPrefix(msgs[1].Content, "Welcome to the Paloma Concierge.") {
		t.Fatalf("conversation not seeded with the greeting: %+v", msgs[:2])
	}
	if msgs[3].Role != models.RoleAssistant || msgs[3].Content != "There is an infinity pool." {
		t.Fatalf("complete answer not stored: %+v", msgs[3])
	}
}

func TestChatStreamNameTriggersLeadEvenWithoutMatches(t *testing.T) {
	h := newHarness(t, "concierge", "Asha")
	h.searcher.matches = nil

	frames, err := collectFrames(t, h, Turn{Message: "My name is Asha"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(h.leads.contacts) != 1 {
		t.Fatalf("expected one lead, got %d", len(h.leads.contacts))
	}
	if c := h.leads.contacts[0]; c.FirstName != "Asha" || c.Message != "My name is Asha" {
		t.Fatalf("unexpected lead %+v", c)
	}
	if len(frames) != 3 || frames[1].Value != "Asha" || frames[2].Value != NoMatchAnswer {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestChatStreamNameLoggedOnEveryTurn(t *testing.T) {
	h := newHarness(t, "concierge", "Asha")
	frames, err := collectFrames(t, h, Turn{Message: "I'm Asha"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := collectFrames(t, h, Turn{Message: "Asha again", ConversationID: frames[0].Value}); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if len(h.leads.contacts) != 2 {
		t.Fatalf("expected a lead per turn, got %d", len(h.leads.contacts))
	}
}

func TestChatStreamFailureBeforeFirstFragmentEmitsNothing(t *testing.T) {
	h := newHarness(t, "concierge", "")
	h.model.err = errors.New("upstream down")
	frames, err := collectFrames(t, h, Turn{Message: "pool?"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %+v", frames)
	}
}

func TestChatStreamMidStreamFailureDoesNotStorePartialAnswer(t *testing.T) {
	h := newHarness(t, "concierge", "")
	h.model.fragments = []string{"There is "}
	h.model.streamErr = errors.New("connection reset")

	frames, err := collectFrames(t, h, Turn{Message: "pool?"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected header and one fragment before failure, got %+v", frames)
	}
	msgs := h.messages(t, frames[0].Value)
	if last := msgs[len(msgs)-1]; last.Role != models.RoleUser {
		t.Fatalf("partial answer must not be stored, last message %+v", last)
	}
}

func TestConcurrentTurnsOnOneConversationAreSerialized(t *testing.T) {
	h := newHarness(t, "plain", "")
	ctx := context.Background()
	first, err := h.svc.Chat(ctx, Turn{Message: "start"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Chat(ctx, Turn{Message: "again", ConversationID: first.ConversationID}); err != nil {
				t.Errorf("concurrent turn: %v", err)
			}
		}()
	}
	wg.Wait()

	msgs := h.messages(t, first.ConversationID)
	if len(msgs) != 22 {
		t.Fatalf("expected 22 messages, got %d", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != models.RoleUser || msgs[i+1].Role != models.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %s then %s", i, msgs[i].Role, msgs[i+1].Role)
		}
	}
}

func TestDeleteConversation(t *testing.T) {
	h := newHarness(t, "plain", "")
	ctx := context.Background()
	resp, err := h.svc.Chat(ctx, Turn{Message: "pool?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := h.svc.DeleteConversation(ctx, resp.ConversationID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := h.svc.DeleteConversation(ctx, resp.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound on second delete, got %v", err)
	}
	ids, err := h.svc.ListConversations(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no conversations, got %v %v", ids, err)
	}
}

func TestNewServiceRequiresExtractorForConcierge(t *testing.T) {
	v, _ := Preset("concierge")
	_, err := NewService(v, Deps{
		Store:    conversation.NewMemoryStore(),
		Embedder: &fakeEmbedder{},
		Searcher: &fakeSearcher{},
		Gen:      ai.NewGenerator(&fakeChatModel{}, ai.GeneratorOptions{}),
	})
	if err == nil {
		t.Fatalf("expected error without name extractor")
	}
}
