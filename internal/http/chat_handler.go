package httpapi

import (
	"net/http"

	"github.com/LuisSimiao/Riada-Care-System/internal/service"

	"go.uber.org/zap"
)

// ChatHandler 聊天代理 + 护理记录审核接口
type ChatHandler struct {
	chat   *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
	Model          string `json:"model"`
}

// Chat POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	reply, convID, model, err := h.chat.Chat(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(chatResponse{Reply: reply, ConversationID: convID, Model: model}))
}

type noteCheckRequest struct {
	Note   string                  `json:"note"`
	Checks []service.NoteCheckRule `json:"checks"`
}

// NoteCheck POST /api/note-check
func (h *ChatHandler) NoteCheck(w http.ResponseWriter, r *http.Request) {
	var req noteCheckRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	result, err := h.chat.NoteCheck(r.Context(), req.Note, req.Checks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}
