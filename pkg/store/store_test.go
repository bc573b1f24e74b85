package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUserDuplicate(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash", "hi")
	req.NoError(err)
	req.NotZero(u.ID)
	req.Equal("alice", u.Username)

	_, err = s.CreateUser(ctx, "alice", "other@example.com", "hash", "")
	req.ErrorIs(err, ErrDuplicate)

	_, err = s.CreateUser(ctx, "alice2", "alice@example.com", "hash", "")
	req.ErrorIs(err, ErrDuplicate)
}

func TestUserLookup(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "bob", "bob@example.com", "secret-hash", "")
	req.NoError(err)

	byName, hash, err := s.UserByUsername(ctx, "bob")
	req.NoError(err)
	req.Equal(created.ID, byName.ID)
	req.Equal("secret-hash", hash)

	byID, err := s.UserByID(ctx, created.ID)
	req.NoError(err)
	req.Equal("bob", byID.Username)

	_, _, err = s.UserByUsername(ctx, "nobody")
	req.ErrorIs(err, ErrNotFound)

	updated, err := s.UpdateUserBio(ctx, created.ID, "new bio")
	req.NoError(err)
	req.Equal("new bio", updated.Bio)
}

func TestGroupMembership(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "owner", "owner@example.com", "h", "")
	req.NoError(err)
	other, err := s.CreateUser(ctx, "other", "other@example.com", "h", "")
	req.NoError(err)

	g, err := s.CreateGroup(ctx, owner.ID, "climbers", "climb", "weekly group")
	req.NoError(err)

	// The owner is a member from creation.
	member, err := s.IsMember(ctx, g.ID, owner.ID)
	req.NoError(err)
	req.True(member)

	member, err = s.IsMember(ctx, g.ID, other.ID)
	req.NoError(err)
	req.False(member)

	req.NoError(s.AddMember(ctx, g.ID, other.ID))
	req.NoError(s.AddMember(ctx, g.ID, other.ID)) // joining twice is fine

	members, err := s.Members(ctx, g.ID)
	req.NoError(err)
	req.Len(members, 2)

	req.NoError(s.RemoveMember(ctx, g.ID, other.ID))
	member, err = s.IsMember(ctx, g.ID, other.ID)
	req.NoError(err)
	req.False(member)

	err = s.AddMember(ctx, 999, other.ID)
	req.ErrorIs(err, ErrNotFound)
}

func TestGroupsForUser(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "carol", "carol@example.com", "h", "")
	req.NoError(err)

	g1, err := s.CreateGroup(ctx, u.ID, "first", "", "")
	req.NoError(err)
	g2, err := s.CreateGroup(ctx, u.ID, "second", "", "")
	req.NoError(err)

	groups, err := s.GroupsForUser(ctx, u.ID)
	req.NoError(err)
	req.Len(groups, 2)

	ids := []int64{groups[0].ID, groups[1].ID}
	req.Contains(ids, g1.ID)
	req.Contains(ids, g2.ID)
}

func TestAppendMessage(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "dave", "dave@example.com", "h", "")
	req.NoError(err)
	g, err := s.CreateGroup(ctx, u.ID, "chat", "", "")
	req.NoError(err)

	first, err := s.AppendMessage(ctx, g.ID, u.ID, "hello")
	req.NoError(err)
	req.NotZero(first.ID)
	req.False(first.CreatedAt.IsZero())

	second, err := s.AppendMessage(ctx, g.ID, u.ID, "world")
	req.NoError(err)
	req.Greater(second.ID, first.ID, "ids are time-sortable")

	messages, err := s.MessagesForGroup(ctx, g.ID)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("hello", messages[0].Content)
	req.Equal("world", messages[1].Content)

	_, err = s.AppendMessage(ctx, 999, u.ID, "into the void")
	req.ErrorIs(err, ErrNotFound)
}

func TestDeleteGroupCascades(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "erin", "erin@example.com", "h", "")
	req.NoError(err)
	g, err := s.CreateGroup(ctx, u.ID, "doomed", "", "")
	req.NoError(err)
	_, err = s.AppendMessage(ctx, g.ID, u.ID, "last words")
	req.NoError(err)

	req.NoError(s.DeleteGroup(ctx, g.ID))

	_, err = s.GroupByID(ctx, g.ID)
	req.ErrorIs(err, ErrNotFound)

	member, err := s.IsMember(ctx, g.ID, u.ID)
	req.NoError(err)
	req.False(member)

	// The group vanished mid-session: appends now fail like the channel
	// expects.
	_, err = s.AppendMessage(ctx, g.ID, u.ID, "too late")
	req.ErrorIs(err, ErrNotFound)

	req.ErrorIs(s.DeleteGroup(ctx, g.ID), ErrNotFound)
}

func TestImages(t *testing.T) {
	req := require.New(t)
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "frank", "frank@example.com", "h", "")
	req.NoError(err)
	stranger, err := s.CreateUser(ctx, "grace", "grace@example.com", "h", "")
	req.NoError(err)

	img, err := s.CreateImage(ctx, u.ID, "sunset", "over the bay", "abc123.jpg")
	req.NoError(err)

	got, err := s.ImageByID(ctx, img.ID, u.ID)
	req.NoError(err)
	req.Equal("sunset", got.Title)

	// Scoped reads: another user cannot see it.
	_, err = s.ImageByID(ctx, img.ID, stranger.ID)
	req.ErrorIs(err, ErrNotFound)

	title := "dawn"
	updated, err := s.UpdateImage(ctx, img.ID, u.ID, &title, nil)
	req.NoError(err)
	req.Equal("dawn", updated.Title)
	req.Equal("over the bay", updated.Description)

	deleted, err := s.DeleteImage(ctx, img.ID, u.ID)
	req.NoError(err)
	req.Equal("abc123.jpg", deleted.ObjectName)

	_, err = s.ImageByID(ctx, img.ID, u.ID)
	req.ErrorIs(err, ErrNotFound)
}
