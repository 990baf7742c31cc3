// Package chatapi exposes the chat session surface: starting sessions,
// sending messages with a streamed reply, and reading session state.
package chatapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/contenox/chatlog/apiframework"
	"github.com/contenox/chatlog/chatservice"
)

func AddChatRoutes(mux *http.ServeMux, chatService chatservice.Service) {
	h := &handler{service: chatService}

	mux.HandleFunc("POST /chat", h.startSession)
	mux.HandleFunc("GET /chat/{session}", h.snapshot)
	mux.HandleFunc("POST /chat/{session}/messages", h.sendMessage)
}

type handler struct {
	service chatservice.Service
}

type sendMessageRequest struct {
	// The user message to append to the conversation.
	Message string `json:"message" example:"Hello"`
}

// ChatStreamChunk is one SSE event of a streamed reply. Exactly one of
// Content and Error is set.
type ChatStreamChunk struct {
	Content string `json:"content,omitempty" example:"Hi there!"`
	Error   string `json:"error,omitempty"`
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.StartSession(r.Context())
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}
	_ = apiframework.Encode(w, r, http.StatusCreated, snapshot) // @response chatservice.SessionSnapshot
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := apiframework.GetPathParam(r, "session", "The conversation ID of the session.")
	snapshot, err := h.service.Snapshot(r.Context(), sessionID)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.GetOperation)
		return
	}
	_ = apiframework.Encode(w, r, http.StatusOK, snapshot) // @response chatservice.SessionSnapshot
}

// Streams the assistant reply over Server-Sent Events.
//
// Each fragment arrives as 'data: {"content":"..."}'. A terminal failure of
// the completion service arrives as 'data: {"error":"..."}' and ends the
// stream without a [DONE] marker. A successful reply ends with 'data: [DONE]'.
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := apiframework.GetPathParam(r, "session", "The conversation ID of the session.")
	req, err := apiframework.Decode[sendMessageRequest](r) // @request chatapi.sendMessageRequest
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	parcels, err := h.service.SendMessage(ctx, sessionID, req.Message)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.CreateOperation)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = apiframework.Error(w, r, fmt.Errorf("streaming unsupported"), apiframework.CreateOperation)
		return
	}

	failed := false
	for parcel := range parcels {
		chunk := ChatStreamChunk{Content: parcel.Data}
		if parcel.Error != nil {
			chunk = ChatStreamChunk{Error: parcel.Error.Error()}
			failed = true
		}
		jsonData, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", jsonData)
		flusher.Flush()
		if failed {
			return
		}
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}
