package chatservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/contenox/chatlog/chatservice"
	"github.com/contenox/chatlog/internal/modelrepo"
	libdb "github.com/contenox/chatlog/libdbexec"
	"github.com/contenox/chatlog/libbus"
	"github.com/contenox/chatlog/messagestore"
	"github.com/contenox/chatlog/summarizer"
	"github.com/stretchr/testify/require"
)

// fakeStreamClient replays a scripted parcel sequence and records the history
// it was called with.
type fakeStreamClient struct {
	parcels     []*modelrepo.StreamParcel
	startErr    error
	lastHistory []modelrepo.Message
	release     chan struct{} // when non-nil, the stream stalls until closed
}

func (f *fakeStreamClient) ChatStream(ctx context.Context, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (<-chan *modelrepo.StreamParcel, error) {
	f.lastHistory = messages
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan *modelrepo.StreamParcel)
	go func() {
		defer close(ch)
		if f.release != nil {
			<-f.release
		}
		for _, parcel := range f.parcels {
			select {
			case ch <- parcel:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

type fakeSummarizer struct {
	summary     string
	err         error
	lastHistory []*messagestore.Message
	calls       int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, history []*messagestore.Message) (string, error) {
	f.calls++
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func setupStore(t *testing.T) messagestore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := libdb.NewSQLiteDBManager(context.TODO(), path, messagestore.SchemaSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return messagestore.New(db.WithoutTransaction())
}

func drain(t *testing.T, parcels <-chan *modelrepo.StreamParcel) (string, error) {
	t.Helper()
	var reply string
	for parcel := range parcels {
		if parcel.Error != nil {
			return reply, parcel.Error
		}
		reply += parcel.Data
	}
	return reply, nil
}

func TestUnit_ChatService_ReplyCycle(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	stream := &fakeStreamClient{parcels: []*modelrepo.StreamParcel{
		{Data: "Hi"},
		{Data: " there!"},
	}}
	sum := &fakeSummarizer{summary: "挨拶の会話"}
	svc := chatservice.New(store, stream, sum, libbus.NewInMem())

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, started.ConversationID)
	require.Equal(t, chatservice.StateIdle, started.State)

	parcels, err := svc.SendMessage(ctx, started.ConversationID, "Hello")
	require.NoError(t, err)
	reply, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)
	require.Equal(t, "Hi there!", reply)

	// The stream saw exactly the user turn.
	require.Equal(t, []modelrepo.Message{{Role: "user", Content: "Hello"}}, stream.lastHistory)

	// Both turns are committed in order.
	persisted, err := store.ListMessages(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	require.Equal(t, messagestore.RoleUser, persisted[0].Role)
	require.Equal(t, "Hello", persisted[0].Content)
	require.Equal(t, messagestore.RoleAssistant, persisted[1].Role)
	require.Equal(t, "Hi there!", persisted[1].Content)

	// The summary was recomputed over the full exchange.
	require.Eventually(t, func() bool {
		snapshot, err := svc.Snapshot(ctx, started.ConversationID)
		return err == nil && snapshot.Summary == "挨拶の会話" && snapshot.State == chatservice.StateIdle
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, sum.calls)
	require.Len(t, sum.lastHistory, 2)

	snapshot, err := svc.Snapshot(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 2)
}

func TestUnit_ChatService_MidStreamFailureKeepsUserTurnOnly(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	cause := fmt.Errorf("%w: upstream reset", modelrepo.ErrCompletionService)
	stream := &fakeStreamClient{parcels: []*modelrepo.StreamParcel{
		{Data: "par"},
		{Error: cause},
	}}
	sum := &fakeSummarizer{summary: "unused"}
	svc := chatservice.New(store, stream, sum, libbus.NewInMem())

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)

	parcels, err := svc.SendMessage(ctx, started.ConversationID, "Hello")
	require.NoError(t, err)
	partial, streamErr := drain(t, parcels)
	require.Equal(t, "par", partial)
	require.True(t, errors.Is(streamErr, modelrepo.ErrCompletionService))

	// No assistant row, no summary refresh; the session is ready again.
	persisted, err := store.ListMessages(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.Equal(t, messagestore.RoleUser, persisted[0].Role)
	require.Zero(t, sum.calls)

	require.Eventually(t, func() bool {
		snapshot, err := svc.Snapshot(ctx, started.ConversationID)
		return err == nil && snapshot.State == chatservice.StateIdle
	}, time.Second, 5*time.Millisecond)
}

func TestUnit_ChatService_StreamStartFailure(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	stream := &fakeStreamClient{startErr: fmt.Errorf("%w: connect refused", modelrepo.ErrCompletionService)}
	svc := chatservice.New(store, stream, &fakeSummarizer{}, libbus.NewInMem())

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, started.ConversationID, "Hello")
	require.Error(t, err)
	require.True(t, errors.Is(err, modelrepo.ErrCompletionService))

	// The user turn stays committed even though the cycle failed.
	persisted, err := store.ListMessages(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	// And a retry is possible immediately.
	stream.startErr = nil
	stream.parcels = []*modelrepo.StreamParcel{{Data: "ok"}}
	parcels, err := svc.SendMessage(ctx, started.ConversationID, "Hello again")
	require.NoError(t, err)
	_, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)
}

func TestUnit_ChatService_RejectsConcurrentTurn(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	release := make(chan struct{})
	stream := &fakeStreamClient{
		parcels: []*modelrepo.StreamParcel{{Data: "slow reply"}},
		release: release,
	}
	svc := chatservice.New(store, stream, &fakeSummarizer{summary: "要約"}, libbus.NewInMem())

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)

	parcels, err := svc.SendMessage(ctx, started.ConversationID, "first")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, started.ConversationID, "second")
	require.ErrorIs(t, err, chatservice.ErrReplyInProgress)

	close(release)
	_, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)

	// The rejected turn left no trace; only the first cycle persisted.
	count, err := store.CountMessages(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestUnit_ChatService_EmptyMessageRejected(t *testing.T) {
	svc := chatservice.New(setupStore(t), &fakeStreamClient{}, &fakeSummarizer{}, libbus.NewInMem())
	_, err := svc.SendMessage(context.Background(), "conv", "   ")
	require.ErrorIs(t, err, chatservice.ErrEmptyMessage)
}

func TestUnit_ChatService_SnapshotUnknownSession(t *testing.T) {
	svc := chatservice.New(setupStore(t), &fakeStreamClient{}, &fakeSummarizer{}, libbus.NewInMem())
	_, err := svc.Snapshot(context.Background(), "no-such-conversation")
	require.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestUnit_ChatService_RehydratesPersistedHistory(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, err := store.Append(ctx, "conv-old", messagestore.RoleUser, "earlier question")
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-old", messagestore.RoleAssistant, "earlier answer")
	require.NoError(t, err)

	stream := &fakeStreamClient{parcels: []*modelrepo.StreamParcel{{Data: "continued"}}}
	svc := chatservice.New(store, stream, &fakeSummarizer{summary: "要約"}, libbus.NewInMem())

	snapshot, err := svc.Snapshot(ctx, "conv-old")
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 2)

	parcels, err := svc.SendMessage(ctx, "conv-old", "follow-up")
	require.NoError(t, err)
	_, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)

	// The completion saw the rehydrated history plus the new turn.
	require.Len(t, stream.lastHistory, 3)
	require.Equal(t, "earlier question", stream.lastHistory[0].Content)
	require.Equal(t, "follow-up", stream.lastHistory[2].Content)
}

func TestUnit_ChatService_SummaryFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	stream := &fakeStreamClient{parcels: []*modelrepo.StreamParcel{{Data: "fine"}}}
	sum := &fakeSummarizer{err: fmt.Errorf("%w: overloaded", modelrepo.ErrCompletionService)}
	svc := chatservice.New(store, stream, sum, libbus.NewInMem())

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)

	parcels, err := svc.SendMessage(ctx, started.ConversationID, "Hello")
	require.NoError(t, err)
	_, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)

	// Assistant turn committed despite the summarizer failing.
	count, err := store.CountMessages(ctx, started.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.Eventually(t, func() bool {
		snapshot, err := svc.Snapshot(ctx, started.ConversationID)
		return err == nil && snapshot.State == chatservice.StateIdle && snapshot.Summary == ""
	}, time.Second, 5*time.Millisecond)
}

func TestUnit_ChatService_PublishesAppendedEvents(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	pubsub := libbus.NewInMem()
	events := make(chan []byte, 8)
	sub, err := pubsub.Stream(ctx, chatservice.MessageAppendedSubject, events)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	stream := &fakeStreamClient{parcels: []*modelrepo.StreamParcel{{Data: "Hi"}}}
	svc := chatservice.New(store, stream, &fakeSummarizer{summary: "要約"}, pubsub)

	started, err := svc.StartSession(ctx)
	require.NoError(t, err)
	parcels, err := svc.SendMessage(ctx, started.ConversationID, "Hello")
	require.NoError(t, err)
	_, streamErr := drain(t, parcels)
	require.NoError(t, streamErr)

	var got []chatservice.MessageAppendedEvent
	for i := 0; i < 2; i++ {
		select {
		case payload := <-events:
			var event chatservice.MessageAppendedEvent
			require.NoError(t, json.Unmarshal(payload, &event))
			got = append(got, event)
		case <-time.After(time.Second):
			t.Fatalf("expected 2 events, got %d", len(got))
		}
	}
	require.Equal(t, started.ConversationID, got[0].ConversationID)
	require.Equal(t, messagestore.RoleUser, got[0].Role)
	require.Equal(t, messagestore.RoleAssistant, got[1].Role)
}

var _ summarizer.Service = (*fakeSummarizer)(nil)
var _ modelrepo.LLMStreamClient = (*fakeStreamClient)(nil)
