package notification

import (
	"errors"
	"fmt"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	Logger "github.com/Luismorlan/birdnest/utils/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotificationNotFound is returned when the referenced notification does
// not exist.
var ErrNotificationNotFound = errors.New("notification not found")

// Service stores and serves in-app notifications. Postgres is authoritative;
// when a RedisStatusStore is attached, read state is additionally written
// through to Redis and overlaid on reads so other sessions of the same user
// observe it promptly.
type Service struct {
	DB          *gorm.DB
	StatusStore *utils.RedisStatusStore
}

func NewService(db *gorm.DB, statusStore *utils.RedisStatusStore) *Service {
	return &Service{DB: db, StatusStore: statusStore}
}

// CreateFollowNotification records that actor started following toUserId,
// snapshotting the actor's display attributes at creation time. Satisfies
// follow.Notifier.
func (s *Service) CreateFollowNotification(fromUserId string, toUserId string, actor *model.User) (string, error) {
	notification := model.Notification{
		Id:              uuid.New().String(),
		Type:            model.NotificationTypeFollow,
		FromUserId:      fromUserId,
		ToUserId:        toUserId,
		FromDisplayName: actor.DisplayName,
		FromUsername:    actor.Username,
		FromAvatarUrl:   actor.AvatarUrl,
		Message:         fmt.Sprintf("%s started following you", actor.DisplayName),
	}
	if err := s.DB.Create(&notification).Error; err != nil {
		return "", err
	}
	return notification.Id, nil
}

// GetNotifications returns up to limit notifications for a user, newest
// first, with the Redis read-status overlay applied when available.
func (s *Service) GetNotifications(toUserId string, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []*model.Notification
	if err := s.DB.Where("to_user_id = ?", toUserId).
		Order("created_at desc").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	s.overlayReadStatus(toUserId, notifications)
	return notifications, nil
}

// MarkAsRead flips one notification to read.
func (s *Service) MarkAsRead(notificationId string) error {
	var notification model.Notification
	res := s.DB.Where("id = ?", notificationId).First(&notification)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	if res.Error != nil {
		return res.Error
	}
	if err := s.DB.Model(&model.Notification{}).Where("id = ?", notificationId).
		Update("is_read", true).Error; err != nil {
		return err
	}
	s.writeThroughReadStatus(notification.ToUserId, []string{notificationId})
	return nil
}

// MarkAllAsRead flips every unread notification of a user to read.
func (s *Service) MarkAllAsRead(toUserId string) error {
	var unreadIds []string
	if err := s.DB.Model(&model.Notification{}).
		Where("to_user_id = ? AND is_read = ?", toUserId, false).
		Pluck("id", &unreadIds).Error; err != nil {
		return err
	}
	if len(unreadIds) == 0 {
		return nil
	}
	if err := s.DB.Model(&model.Notification{}).Where("id IN ?", unreadIds).
		Update("is_read", true).Error; err != nil {
		return err
	}
	s.writeThroughReadStatus(toUserId, unreadIds)
	return nil
}

// GetUnreadCount counts the user's unread notifications.
func (s *Service) GetUnreadCount(toUserId string) (int, error) {
	var count int64
	if err := s.DB.Model(&model.Notification{}).
		Where("to_user_id = ? AND is_read = ?", toUserId, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteNotification removes a notification.
func (s *Service) DeleteNotification(notificationId string) error {
	res := s.DB.Where("id = ?", notificationId).Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotificationNotFound
	}
	return nil
}

// overlayReadStatus ORs cached read state into the fetched rows. The cache is
// advisory, any failure falls back to the Postgres values.
func (s *Service) overlayReadStatus(toUserId string, notifications []*model.Notification) {
	if s.StatusStore == nil || len(notifications) == 0 {
		return
	}
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.Id)
	}
	statuses, err := s.StatusStore.GetItemsReadStatus(ids, toUserId)
	if err != nil {
		Logger.Log.Info("cannot read notification status cache: ", err)
		return
	}
	if len(statuses) != len(notifications) {
		return
	}
	for i, read := range statuses {
		if read {
			notifications[i].IsRead = true
		}
	}
}

func (s *Service) writeThroughReadStatus(toUserId string, notificationIds []string) {
	if s.StatusStore == nil {
		return
	}
	if err := s.StatusStore.SetItemsReadStatus(notificationIds, toUserId, true); err != nil {
		Logger.Log.Info("cannot write notification status cache: ", err)
	}
}
