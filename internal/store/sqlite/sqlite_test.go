package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/privchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seed creates alice, bob, carol and one dialog for alice and bob.
func seed(t *testing.T, st *SQLiteStore) (alice, bob, carol *store.User, dialog *store.Dialog) {
	t.Helper()
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "hash-a")
	require.NoError(t, err)
	bob, err = st.CreateUser(ctx, "bob", "hash-b")
	require.NoError(t, err)
	carol, err = st.CreateUser(ctx, "carol", "hash-c")
	require.NoError(t, err)

	dialog, err = st.CreateDialog(ctx, "alice-bob", []int64{alice.ID, bob.ID})
	require.NoError(t, err)
	return alice, bob, carol, dialog
}

func TestUserLookups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := st.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Username, byID.Username)

	byName, err := st.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = st.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.CreateUser(ctx, "alice", "other")
	assert.Error(t, err, "duplicate username must be rejected")
}

func TestDialogMembership(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, bob, carol, dialog := seed(t, st)

	got, err := st.DialogByPK(ctx, dialog.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice-bob", got.Name)
	assert.Equal(t, []int64{alice.ID, bob.ID}, got.UserIDs)

	_, err = st.DialogByPK(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ids, err := st.DialogsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{dialog.ID}, ids)

	ids, err = st.DialogsForUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	list, err := st.ListDialogs(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, dialog.ID, list[0].ID)
	assert.Equal(t, []int64{alice.ID, bob.ID}, list[0].UserIDs)
}

func TestSaveTextMessageCreatesReceipts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, bob, _, dialog := seed(t, st)

	msg, err := st.SaveTextMessage(ctx, "hello", alice.ID, dialog.ID)
	require.NoError(t, err)
	assert.Positive(t, msg.ID)
	assert.Equal(t, "hello", msg.Text)
	assert.Nil(t, msg.FileID)
	assert.Equal(t, dialog.ID, msg.DialogID)
	assert.Equal(t, alice.ID, msg.SenderID)

	// Receipt for bob only; the sender's own message counts as read.
	count, err := st.UnreadCount(ctx, dialog.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = st.UnreadCount(ctx, dialog.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	read, err := st.MessageReadFlag(ctx, msg.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, read)

	read, err = st.MessageReadFlag(ctx, msg.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, read, "no receipt means read")
}

func TestMarkMessageRead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, bob, _, dialog := seed(t, st)

	first, err := st.SaveTextMessage(ctx, "one", alice.ID, dialog.ID)
	require.NoError(t, err)
	_, err = st.SaveTextMessage(ctx, "two", alice.ID, dialog.ID)
	require.NoError(t, err)

	count, err := st.UnreadCount(ctx, dialog.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, st.MarkMessageRead(ctx, first.ID, bob.ID))
	count, err = st.UnreadCount(ctx, dialog.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Marking again changes nothing.
	require.NoError(t, st.MarkMessageRead(ctx, first.ID, bob.ID))
	count, err = st.UnreadCount(ctx, dialog.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	read, err := st.MessageReadFlag(ctx, first.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, read)
}

func TestMessageByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, _, _, dialog := seed(t, st)

	msg, err := st.SaveTextMessage(ctx, "hello", alice.ID, dialog.ID)
	require.NoError(t, err)

	dialogID, senderID, err := st.MessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, dialog.ID, dialogID)
	assert.Equal(t, alice.ID, senderID)

	_, _, err = st.MessageByID(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveFileMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, bob, _, dialog := seed(t, st)

	file := &store.UploadedFile{
		ID:         "f-1",
		UploadedBy: alice.ID,
		URL:        "/media/f-1_doc.pdf",
		Size:       1024,
		Name:       "doc.pdf",
	}
	require.NoError(t, st.SaveFile(ctx, file))

	got, err := st.FileByID(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, file.URL, got.URL)
	assert.Equal(t, file.Size, got.Size)
	assert.Equal(t, file.Name, got.Name)
	assert.False(t, got.UploadedAt.IsZero())

	_, err = st.FileByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	msg, err := st.SaveFileMessage(ctx, "f-1", alice.ID, dialog.ID)
	require.NoError(t, err)
	require.NotNil(t, msg.FileID)
	assert.Equal(t, "f-1", *msg.FileID)
	assert.Empty(t, msg.Text)

	count, err := st.UnreadCount(ctx, dialog.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, _, _, dialog := seed(t, st)

	var ids []int64
	for _, text := range []string{"one", "two", "three", "four"} {
		msg, err := st.SaveTextMessage(ctx, text, alice.ID, dialog.ID)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Newest first.
	msgs, err := st.ListMessages(ctx, dialog.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "four", msgs[0].Text)
	assert.Equal(t, "one", msgs[3].Text)

	// Limit applies after ordering.
	msgs, err = st.ListMessages(ctx, dialog.ID, 2, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "four", msgs[0].Text)
	assert.Equal(t, "three", msgs[1].Text)

	// Pagination by before-id excludes the boundary.
	msgs, err = st.ListMessages(ctx, dialog.ID, 10, &ids[2])
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Text)
	assert.Equal(t, "one", msgs[1].Text)
}

func TestLastMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice, _, _, dialog := seed(t, st)

	_, err := st.LastMessage(ctx, dialog.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.SaveTextMessage(ctx, "first", alice.ID, dialog.ID)
	require.NoError(t, err)
	latest, err := st.SaveTextMessage(ctx, "second", alice.ID, dialog.ID)
	require.NoError(t, err)

	got, err := st.LastMessage(ctx, dialog.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
	assert.Equal(t, "second", got.Text)
}
