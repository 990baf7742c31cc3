// Package adminapi exposes the operator surface: password login, the
// conversation overview, transcripts, CSV export, and a live event feed.
// Everything except login requires a bearer token.
package adminapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/contenox/chatlog/adminservice"
	"github.com/contenox/chatlog/apiframework"
	"github.com/contenox/chatlog/chatservice"
	"github.com/contenox/chatlog/libauth"
	"github.com/contenox/chatlog/libbus"
	"github.com/contenox/chatlog/libcipher"
)

// AdminIdentity is the identity carried by admin tokens. There is a single
// shared operator account.
const AdminIdentity = "admin"

func AddAdminRoutes(
	mux *http.ServeMux,
	adminService adminservice.Service,
	authManager *libauth.Manager,
	passwordHash string,
	pubsub libbus.Messenger,
) {
	h := &handler{
		service:      adminService,
		authManager:  authManager,
		passwordHash: passwordHash,
		pubsub:       pubsub,
	}

	mux.HandleFunc("POST /admin/login", h.login)
	mux.HandleFunc("GET /admin/conversations", h.authenticated(h.listConversations))
	mux.HandleFunc("GET /admin/conversations/{id}", h.authenticated(h.transcript))
	mux.HandleFunc("GET /admin/conversations/{id}/export", h.authenticated(h.exportCSV))
	mux.HandleFunc("GET /admin/events", h.authenticated(h.events))
}

type handler struct {
	service      adminservice.Service
	authManager  *libauth.Manager
	passwordHash string
	pubsub       libbus.Messenger
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// authenticated wraps a handler with bearer token verification.
func (h *handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := h.authManager.FromRequest(r)
		if err != nil {
			_ = apiframework.Error(w, r, err, apiframework.AuthorizeOperation)
			return
		}
		next(w, r.WithContext(ctx))
	}
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	req, err := apiframework.Decode[loginRequest](r) // @request adminapi.loginRequest
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.AuthorizeOperation)
		return
	}
	if h.passwordHash == "" {
		_ = apiframework.Error(w, r, fmt.Errorf("%w: admin login is not configured", apiframework.ErrUnauthorized), apiframework.AuthorizeOperation)
		return
	}
	if err := libcipher.CheckPasswordHash(h.passwordHash, req.Password); err != nil {
		if errors.Is(err, libcipher.ErrPasswordMismatch) {
			err = fmt.Errorf("%w: wrong password", apiframework.ErrUnauthorized)
		}
		_ = apiframework.Error(w, r, err, apiframework.AuthorizeOperation)
		return
	}
	token, err := h.authManager.CreateToken(AdminIdentity)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.AuthorizeOperation)
		return
	}
	_ = apiframework.Encode(w, r, http.StatusOK, loginResponse{Token: token}) // @response adminapi.loginResponse
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.ListConversations(r.Context())
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.ListOperation)
		return
	}
	_ = apiframework.Encode(w, r, http.StatusOK, infos) // @response []messagestore.ConversationInfo
}

func (h *handler) transcript(w http.ResponseWriter, r *http.Request) {
	conversationID := apiframework.GetPathParam(r, "id", "The conversation to read.")
	messages, err := h.service.Transcript(r.Context(), conversationID)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.GetOperation)
		return
	}
	_ = apiframework.Encode(w, r, http.StatusOK, messages) // @response []messagestore.Message
}

func (h *handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	conversationID := apiframework.GetPathParam(r, "id", "The conversation to export.")
	data, err := h.service.ExportCSV(r.Context(), conversationID)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.GetOperation)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "conversation_"+conversationID+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Streams message-appended events over Server-Sent Events until the client
// disconnects.
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = apiframework.Error(w, r, fmt.Errorf("streaming unsupported"), apiframework.GetOperation)
		return
	}

	events := make(chan []byte, 16)
	sub, err := h.pubsub.Stream(ctx, chatservice.MessageAppendedSubject, events)
	if err != nil {
		_ = apiframework.Error(w, r, err, apiframework.GetOperation)
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case payload := <-events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
