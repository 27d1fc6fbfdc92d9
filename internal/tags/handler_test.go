package tags

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumo-bot/tsukumo/internal/chat/mocks"
	"github.com/tsukumo-bot/tsukumo/internal/log"
	"github.com/tsukumo-bot/tsukumo/internal/storage"
	"github.com/tsukumo-bot/tsukumo/internal/store"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func setupTestHandler(t *testing.T) (*Handler, *store.Store, *mocks.MockPermissionService, *mocks.MockMemberResolver) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	perms := mocks.NewMockPermissionService(ctrl)
	members := mocks.NewMockMemberResolver(ctrl)
	return NewHandler(st, perms, members), st, perms, members
}

func TestCreateThenShow(t *testing.T) {
	h, _, _, members := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "Hello {{ author }}!", "u1"))

	members.EXPECT().DisplayName(gomock.Any(), "g1", "u1").Return("Bea", true)

	info, err := h.Show(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Equal(t, "greet", info.Name)
	assert.Equal(t, "Bea", info.Owner)
	assert.Equal(t, "Hello {{ author }}!", info.Content)
	assert.False(t, info.LastModified.IsZero())
}

func TestShowUnknownOwner(t *testing.T) {
	h, _, _, members := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "hi", "u-gone"))

	members.EXPECT().DisplayName(gomock.Any(), "g1", "u-gone").Return("", false)

	info, err := h.Show(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Equal(t, "<Unknown>", info.Owner)
}

func TestShowMissingTag(t *testing.T) {
	h, _, _, _ := setupTestHandler(t)

	_, err := h.Show(context.Background(), "g1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEscapesBroadcastMentions(t *testing.T) {
	h, st, _, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "ping", "hey @everyone and @here", "u1"))

	tag, err := st.GetTag(ctx, "g1", "ping")
	require.NoError(t, err)
	assert.Equal(t, "hey @\u200beveryone and @\u200bhere", tag.Content)
	assert.NotContains(t, tag.Content, "@everyone")
}

func TestEditByNonOwnerDenied(t *testing.T) {
	h, st, perms, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "original", "owner"))

	perms.EXPECT().IsAdministrator(gomock.Any(), "g1", "intruder").Return(false, nil)

	err := h.CreateOrEdit(ctx, "g1", "greet", "hijacked", "intruder")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// The stored tag is untouched.
	tag, err := st.GetTag(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Equal(t, "original", tag.Content)
	assert.Equal(t, "owner", tag.OwnerID)
}

func TestAdminEditPreservesOwner(t *testing.T) {
	h, st, perms, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "original", "owner"))

	perms.EXPECT().IsAdministrator(gomock.Any(), "g1", "admin").Return(true, nil)

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "moderated", "admin"))

	tag, err := st.GetTag(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Equal(t, "moderated", tag.Content)
	assert.Equal(t, "owner", tag.OwnerID, "admin edits never claim the tag")
}

func TestOwnerEditNeedsNoPermissionCheck(t *testing.T) {
	h, st, _, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "v1", "u1"))
	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "v2", "u1"))

	tag, err := st.GetTag(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Equal(t, "v2", tag.Content)
}

func TestDeleteRules(t *testing.T) {
	h, st, perms, _ := setupTestHandler(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.Delete(ctx, "g1", "ghost", "u1"), ErrNotFound)

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "greet", "hi", "owner"))

	perms.EXPECT().IsAdministrator(gomock.Any(), "g1", "intruder").Return(false, nil)
	assert.ErrorIs(t, h.Delete(ctx, "g1", "greet", "intruder"), ErrPermissionDenied)

	require.NoError(t, h.Delete(ctx, "g1", "greet", "owner"))
	tag, err := st.GetTag(ctx, "g1", "greet")
	require.NoError(t, err)
	assert.Nil(t, tag)
}

func TestList(t *testing.T) {
	h, _, _, _ := setupTestHandler(t)
	ctx := context.Background()

	names, err := h.List(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, h.CreateOrEdit(ctx, "g1", "zeta", "z", "u1"))
	require.NoError(t, h.CreateOrEdit(ctx, "g1", "alpha", "a", "u1"))

	names, err = h.List(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}
