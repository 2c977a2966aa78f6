package db

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/models"
)

// setupTestDB creates a store backed by a temp sqlite file.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	tmpfile.Close()
	os.Remove(tmpfile.Name()) // sqlite recreates it

	database, err := New(tmpfile.Name())
	require.NoError(t, err)

	t.Cleanup(func() {
		database.Close()
		os.Remove(tmpfile.Name())
	})

	return database
}

func addUser(t *testing.T, database *DB, id, account, nickname string) {
	t.Helper()
	err := database.CreateUser(&models.User{
		ID:         id,
		Account:    account,
		Nickname:   nickname,
		Avatar:     "#123456",
		CreateTime: time.Now().UTC(),
	}, "password123")
	require.NoError(t, err)
}

func TestUserLifecycle(t *testing.T) {
	database := setupTestDB(t)
	addUser(t, database, "u1", "alice", "Alice")

	user, err := database.FindUserByAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, database.CheckPassword(user, "password123"))
	assert.False(t, database.CheckPassword(user, "wrong"))

	_, err = database.FindUserByAccount("nobody")
	assert.ErrorIs(t, err, ErrNoRows)

	require.NoError(t, database.UpdatePassword("u1", "newpass"))
	user, err = database.FindUserByID("u1")
	require.NoError(t, err)
	assert.True(t, database.CheckPassword(user, "newpass"))

	require.NoError(t, database.UpdateUserInfo("u1", "Alice2", "#654321"))
	user, err = database.FindUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice2", user.Nickname)
	assert.Equal(t, "#654321", user.Avatar)

	assert.ErrorIs(t, database.UpdateUserInfo("missing", "x", "y"), ErrNoRows)
}

// TestFriendRequestLifecycle covers the pending -> accepted transition and
// that resolving twice fails the second time.
func TestFriendRequestLifecycle(t *testing.T) {
	database := setupTestDB(t)
	addUser(t, database, "a", "alice", "Alice")
	addUser(t, database, "b", "bob", "Bob")

	pending, err := database.HasPendingRequest("a", "b")
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, database.CreateFriendRequest("a", "b"))

	pending, err = database.HasPendingRequest("a", "b")
	require.NoError(t, err)
	assert.True(t, pending)

	reqs, err := database.PendingRequestsFor("b")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "a", reqs[0].SenderID)

	require.NoError(t, database.ResolveFriendRequest("a", "b", models.RequestAccepted))

	// No pending request left to action.
	assert.ErrorIs(t, database.ResolveFriendRequest("a", "b", models.RequestAccepted), ErrNoRows)

	reqs, err = database.PendingRequestsFor("b")
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestFriendshipSymmetry(t *testing.T) {
	database := setupTestDB(t)
	addUser(t, database, "a", "alice", "Alice")
	addUser(t, database, "b", "bob", "Bob")

	require.NoError(t, database.AddFriendship("a", "b"))
	require.NoError(t, database.AddFriendship("b", "a"))
	// Duplicate edges are ignored, not errors.
	require.NoError(t, database.AddFriendship("a", "b"))

	ab, err := database.AreFriends("a", "b")
	require.NoError(t, err)
	ba, err := database.AreFriends("b", "a")
	require.NoError(t, err)
	assert.True(t, ab)
	assert.True(t, ba)

	friends, err := database.Friends("a")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "b", friends[0].ID)
}

// TestUndeliveredOrdering checks the replay query: ascending send time,
// direct messages only, delivered ones excluded.
func TestUndeliveredOrdering(t *testing.T) {
	database := setupTestDB(t)

	save := func(id string, sendTime int64, isGroup, delivered bool) {
		require.NoError(t, database.SaveMessage(&models.Message{
			ID:         id,
			SenderID:   "a",
			ReceiverID: "b",
			Content:    "msg " + id,
			SendTime:   sendTime,
			IsGroup:    isGroup,
			Delivered:  delivered,
		}))
	}

	save("m3", 300, false, false)
	save("m1", 100, false, false)
	save("m2", 200, false, false)
	save("g1", 150, true, false) // group, never queued for replay
	save("d1", 50, false, true)  // already delivered

	msgs, err := database.UndeliveredMessages("b")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, "m3", msgs[2].ID)

	require.NoError(t, database.MarkDelivered("m1"))

	msgs, err = database.UndeliveredMessages("b")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
}

func TestGroups(t *testing.T) {
	database := setupTestDB(t)
	addUser(t, database, "a", "alice", "Alice")
	addUser(t, database, "b", "bob", "Bob")

	group := &models.Group{ID: "g1", Name: "team", OwnerID: "a", CreateTime: time.Now().UTC()}
	require.NoError(t, database.CreateGroup(group, []string{"a", "b"}))

	groups, err := database.GroupsFor("b")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "team", groups[0].Name)

	ids, err := database.GroupMemberIDs("g1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	members, err := database.GroupMembers("g1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
