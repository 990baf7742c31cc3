package adminservice_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/contenox/chatlog/adminservice"
	libdb "github.com/contenox/chatlog/libdbexec"
	"github.com/contenox/chatlog/messagestore"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (context.Context, messagestore.Store, adminservice.Service) {
	t.Helper()
	ctx := context.TODO()
	path := filepath.Join(t.TempDir(), "admin.db")
	db, err := libdb.NewSQLiteDBManager(ctx, path, messagestore.SchemaSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	store := messagestore.New(db.WithoutTransaction())
	return ctx, store, adminservice.New(store)
}

func TestUnit_Admin_ListConversations(t *testing.T) {
	ctx, store, svc := setup(t)

	_, err := store.Append(ctx, "conv-a", messagestore.RoleUser, "a1")
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-b", messagestore.RoleUser, "b1")
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-b", messagestore.RoleAssistant, "b2")
	require.NoError(t, err)

	infos, err := svc.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "conv-b", infos[0].ConversationID, "most recent activity first")
	require.Equal(t, 2, infos[0].MessageCount)
	require.Equal(t, "conv-a", infos[1].ConversationID)
}

func TestUnit_Admin_Transcript(t *testing.T) {
	ctx, store, svc := setup(t)

	_, err := store.Append(ctx, "conv-t", messagestore.RoleUser, "question")
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-t", messagestore.RoleAssistant, "answer")
	require.NoError(t, err)

	messages, err := svc.Transcript(ctx, "conv-t")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "question", messages[0].Content)
	require.Equal(t, "answer", messages[1].Content)
}

func TestUnit_Admin_TranscriptNotFound(t *testing.T) {
	ctx, _, svc := setup(t)
	_, err := svc.Transcript(ctx, "no-such-conversation")
	require.ErrorIs(t, err, adminservice.ErrConversationNotFound)
}

func TestUnit_Admin_ExportCSV(t *testing.T) {
	ctx, store, svc := setup(t)

	_, err := store.Append(ctx, "conv-e", messagestore.RoleUser, "plain text")
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-e", messagestore.RoleAssistant, "line one\nline two, with comma and \"quotes\"")
	require.NoError(t, err)

	data, err := svc.ExportCSV(ctx, "conv-e")
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"role", "content", "ts"}, records[0])
	require.Equal(t, messagestore.RoleUser, records[1][0])
	require.Equal(t, "plain text", records[1][1])
	require.Equal(t, "line one\nline two, with comma and \"quotes\"", records[2][1], "quoting must round-trip")

	// ts column parses back with the canonical layout.
	for _, record := range records[1:] {
		require.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{9}Z$`, record[2])
	}
}

func TestUnit_Admin_ExportCSVNotFound(t *testing.T) {
	ctx, _, svc := setup(t)
	_, err := svc.ExportCSV(ctx, "no-such-conversation")
	require.ErrorIs(t, err, adminservice.ErrConversationNotFound)
}
