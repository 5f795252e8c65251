package assistant

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
)

// degradedReply is returned with a 200 when inference is unavailable. The
// chat UI renders it inline; surfacing a 5xx would break the conversation
// flow for a non-critical feature.
const degradedReply = "I'm having trouble reaching the medical assistant service right now. " +
	"Please try again in a moment, or use the doctor directory to book a consultation directly."

// Handler exposes the assistant over HTTP.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// ChatRequest is the POST /api/v1/assistant/chat body.
type ChatRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1"`
}

// ChatResponse carries the assistant reply. Degraded is set when the reply
// is a canned fallback rather than model output.
type ChatResponse struct {
	Reply    string `json:"reply"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Chat handles POST /api/v1/assistant/chat.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages array is required"})
		return
	}

	reply, err := h.client.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		logging.Warn(c.Request.Context(), "Assistant chat degraded", zap.Error(err))
		c.JSON(http.StatusOK, ChatResponse{Reply: degradedReply, Degraded: true})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// SpecialtiesRequest is the POST /api/v1/assistant/specialties body.
type SpecialtiesRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1"`
}

// SpecialtiesResponse lists the recommended specialties, possibly the
// general-practice fallback.
type SpecialtiesResponse struct {
	Specialties []string `json:"specialties"`
}

// Specialties handles POST /api/v1/assistant/specialties.
func (h *Handler) Specialties(c *gin.Context) {
	var req SpecialtiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages array is required"})
		return
	}

	specialties := h.client.RecommendSpecialties(c.Request.Context(), req.Messages)
	c.JSON(http.StatusOK, SpecialtiesResponse{Specialties: specialties})
}
