package chatapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contenox/chatlog/chatservice"
	"github.com/contenox/chatlog/internal/chatapi"
	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	snapshot *chatservice.SessionSnapshot
	parcels  []*modelrepo.StreamParcel
	sendErr  error
	snapErr  error
}

func (f *fakeChatService) StartSession(ctx context.Context) (*chatservice.SessionSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeChatService) SendMessage(ctx context.Context, conversationID string, content string) (<-chan *modelrepo.StreamParcel, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	ch := make(chan *modelrepo.StreamParcel, len(f.parcels))
	for _, parcel := range f.parcels {
		ch <- parcel
	}
	close(ch)
	return ch, nil
}

func (f *fakeChatService) Snapshot(ctx context.Context, conversationID string) (*chatservice.SessionSnapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snapshot, nil
}

func setupMux(svc chatservice.Service) *http.ServeMux {
	mux := http.NewServeMux()
	chatapi.AddChatRoutes(mux, svc)
	return mux
}

func TestUnit_ChatAPI_StartSession(t *testing.T) {
	svc := &fakeChatService{snapshot: &chatservice.SessionSnapshot{
		ConversationID: "conv-1",
		State:          chatservice.StateIdle,
	}}
	mux := setupMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"conversation_id":"conv-1"`)
	require.Contains(t, rec.Body.String(), `"state":"idle"`)
}

func TestUnit_ChatAPI_Snapshot(t *testing.T) {
	svc := &fakeChatService{snapshot: &chatservice.SessionSnapshot{
		ConversationID: "conv-2",
		State:          chatservice.StateAwaitingReply,
		Summary:        "要約",
	}}
	mux := setupMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/conv-2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"state":"awaiting_reply"`)
}

func TestUnit_ChatAPI_SnapshotNotFound(t *testing.T) {
	svc := &fakeChatService{snapErr: chatservice.ErrSessionNotFound}
	mux := setupMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"not_found"`)
}

func TestUnit_ChatAPI_SendMessageStreams(t *testing.T) {
	svc := &fakeChatService{parcels: []*modelrepo.StreamParcel{
		{Data: "Hi"},
		{Data: " there!"},
	}}
	mux := setupMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(`{"message":"Hello"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, "data: {\"content\":\"Hi\"}\n\n")
	require.Contains(t, body, "data: {\"content\":\" there!\"}\n\n")
	require.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestUnit_ChatAPI_SendMessageStreamFailure(t *testing.T) {
	svc := &fakeChatService{parcels: []*modelrepo.StreamParcel{
		{Data: "par"},
		{Error: fmt.Errorf("%w: upstream reset", modelrepo.ErrCompletionService)},
	}}
	mux := setupMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(`{"message":"Hello"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, `"content":"par"`)
	require.Contains(t, body, `"error":`)
	require.NotContains(t, body, "[DONE]", "a failed stream must not signal completion")
}

func TestUnit_ChatAPI_SendMessageBusySession(t *testing.T) {
	svc := &fakeChatService{sendErr: chatservice.ErrReplyInProgress}
	mux := setupMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", strings.NewReader(`{"message":"Hello"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"conflict"`)
}

func TestUnit_ChatAPI_SendMessageEmptyBody(t *testing.T) {
	svc := &fakeChatService{}
	mux := setupMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/chat/conv-1/messages", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

var _ chatservice.Service = (*fakeChatService)(nil)
