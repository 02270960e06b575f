package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ragchat/internal/conversation"
	"ragchat/internal/logging"
	"ragchat/internal/models"
	"ragchat/internal/service/assistant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// chatTimeout bounds a whole turn including upstream calls.
const chatTimeout = 2 * time.Minute

// Handler wires one route group per chat variant.
type Handler struct {
	services []*assistant.Service
	logger   *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(services []*assistant.Service, logger *zap.Logger) *Handler {
	return &Handler{services: services, logger: logging.OrNop(logger)}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.healthz)
	for _, svc := range h.services {
		vr := &variantRoutes{svc: svc, logger: h.logger.With(zap.String("variant", svc.Variant().Name))}
		group := router.Group(svc.Variant().RoutePrefix)
		group.POST("/chat", vr.chat)
		group.GET("/conversations", vr.listConversations)
		group.GET("/conversations/:id", vr.getConversation)
		group.DELETE("/conversations/:id", vr.deleteConversation)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type variantRoutes struct {
	svc    *assistant.Service
	logger *zap.Logger
}

type chatRequest struct {
	Message        string  `json:"message"`
	FirstName      string  `json:"first_name"`
	PhoneNumber    string  `json:"phone_number"`
	ConversationID *string `json:"conversation_id"`
	TopK           *int    `json:"top_k"`
}

func (r chatRequest) turn() (assistant.Turn, error) {
	turn := assistant.Turn{
		Message:     r.Message,
		FirstName:   strings.TrimSpace(r.FirstName),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
	if strings.TrimSpace(r.Message) == "" {
		return turn, errors.New("message is required")
	}
	if r.ConversationID != nil && strings.TrimSpace(*r.ConversationID) != "" {
		id, err := conversation.NormalizeID(*r.ConversationID)
		if err != nil {
			return turn, errors.New("conversation_id must be a valid UUID")
		}
		turn.ConversationID = id
	}
	if r.TopK != nil {
		if *r.TopK <= 0 {
			return turn, errors.New("top_k must be positive")
		}
		turn.TopK = *r.TopK
	}
	return turn, nil
}

func (vr *variantRoutes) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	turn, err := req.turn()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	if vr.svc.Variant().Stream {
		vr.chatStream(ctx, c, turn)
		return
	}
	resp, err := vr.svc.Chat(ctx, turn)
	if err != nil {
		vr.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// chatStream writes newline-delimited JSON frames. Headers are sent with the first
// frame so failures before it still get a proper status code.
func (vr *variantRoutes) chatStream(ctx context.Context, c *gin.Context, turn assistant.Turn) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	started := false
	writeFrame := func(f models.Frame) error {
		if !started {
			started = true
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write(append(data, '\n')); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := vr.svc.ChatStream(ctx, turn, writeFrame)
	if err == nil {
		return
	}
	if !started {
		vr.writeError(c, err)
		return
	}
	_, msg := errorStatus(err)
	vr.logger.Warn("stream ended with error", zap.Error(err))
	_ = writeFrame(models.ErrorFrame(msg))
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, assistant.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, assistant.ErrConversationNotFound):
		return http.StatusNotFound, assistant.NotFoundMessage
	case errors.Is(err, assistant.ErrEmbedding):
		return http.StatusInternalServerError, "Failed to generate embedding for the query text."
	case errors.Is(err, assistant.ErrSearch):
		return http.StatusInternalServerError, "Error querying vector index"
	case errors.Is(err, assistant.ErrGeneration):
		return http.StatusInternalServerError, "Error generating chat response"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (vr *variantRoutes) writeError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		vr.logger.Error("chat turn failed", zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func (vr *variantRoutes) pathID(c *gin.Context) (string, bool) {
	id, err := conversation.NormalizeID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return "", false
	}
	return id, true
}

func (vr *variantRoutes) getConversation(c *gin.Context) {
	id, ok := vr.pathID(c)
	if !ok {
		return
	}
	conv, err := vr.svc.Conversation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, assistant.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		vr.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (vr *variantRoutes) listConversations(c *gin.Context) {
	ids, err := vr.svc.ListConversations(c.Request.Context())
	if err != nil {
		vr.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (vr *variantRoutes) deleteConversation(c *gin.Context) {
	id, ok := vr.pathID(c)
	if !ok {
		return
	}
	if err := vr.svc.DeleteConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, assistant.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		vr.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Conversation " + id + " deleted",
	})
}
