package notification

import (
	"os"
	"testing"
	"time"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	"github.com/Luismorlan/birdnest/utils/dotenv"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

// Tests run without Redis attached; the status store is an optional overlay
// and every path must work from Postgres alone.
func newTestService(t *testing.T) *Service {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	utils.TestCreateUserAndValidate(t, db, "actor", "alice")
	utils.TestCreateUserAndValidate(t, db, "target", "bob")
	return NewService(db, nil)
}

func createFollow(t *testing.T, service *Service, fromUserId string, toUserId string) string {
	t.Helper()
	var actor model.User
	require.NoError(t, service.DB.Where("id = ?", fromUserId).First(&actor).Error)
	id, err := service.CreateFollowNotification(fromUserId, toUserId, &actor)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func TestCreateFollowNotificationSnapshotsActor(t *testing.T) {
	service := newTestService(t)
	id := createFollow(t, service, "actor", "target")

	var stored model.Notification
	require.NoError(t, service.DB.Where("id = ?", id).First(&stored).Error)
	require.Equal(t, model.NotificationTypeFollow, stored.Type)
	require.Equal(t, "actor", stored.FromUserId)
	require.Equal(t, "target", stored.ToUserId)
	require.Equal(t, "alice", stored.FromUsername)
	require.Contains(t, stored.Message, "started following you")
	require.False(t, stored.IsRead)

	// The snapshot is taken at creation time; later profile edits must not
	// rewrite existing notifications.
	require.NoError(t, service.DB.Model(&model.User{}).
		Where("id = ?", "actor").Update("username", "renamed").Error)
	require.NoError(t, service.DB.Where("id = ?", id).First(&stored).Error)
	require.Equal(t, "alice", stored.FromUsername)
}

func TestGetNotificationsOrderAndLimit(t *testing.T) {
	service := newTestService(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, createFollow(t, service, "actor", "target"))
		time.Sleep(5 * time.Millisecond)
	}

	notifications, err := service.GetNotifications("target", 0)
	require.NoError(t, err)
	require.Len(t, notifications, 3)
	require.Equal(t, ids[2], notifications[0].Id)
	require.Equal(t, ids[0], notifications[2].Id)

	limited, err := service.GetNotifications("target", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	none, err := service.GetNotifications("actor", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMarkAsReadAndUnreadCount(t *testing.T) {
	service := newTestService(t)
	first := createFollow(t, service, "actor", "target")
	createFollow(t, service, "actor", "target")

	count, err := service.GetUnreadCount("target")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, service.MarkAsRead(first))
	count, err = service.GetUnreadCount("target")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Marking an already read notification stays a no-op success.
	require.NoError(t, service.MarkAsRead(first))
	require.ErrorIs(t, service.MarkAsRead("no-such-id"), ErrNotificationNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	service := newTestService(t)
	for i := 0; i < 3; i++ {
		createFollow(t, service, "actor", "target")
	}

	require.NoError(t, service.MarkAllAsRead("target"))
	count, err := service.GetUnreadCount("target")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// No unread left: second pass does nothing.
	require.NoError(t, service.MarkAllAsRead("target"))
}

func TestDeleteNotification(t *testing.T) {
	service := newTestService(t)
	id := createFollow(t, service, "actor", "target")

	require.NoError(t, service.DeleteNotification(id))
	notifications, err := service.GetNotifications("target", 0)
	require.NoError(t, err)
	require.Empty(t, notifications)
	require.ErrorIs(t, service.DeleteNotification(id), ErrNotificationNotFound)
}
