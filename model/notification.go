package model

import (
	"time"

	"gorm.io/gorm"
)

// NotificationTypeFollow is emitted when a user starts following another user.
const NotificationTypeFollow = "follow"

/*

Notification is an in-app notification delivered to a single user

Id: primary key
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Type: notification kind, currently only "follow"
FromUserId: user whose action produced the notification
ToUserId: user receiving the notification

FromDisplayName:
FromUsername:
FromAvatarUrl: denormalized snapshot of the actor at creation time, kept
inline so rendering a notification never requires a user lookup. The snapshot
can go stale if the actor later renames, which is accepted.

Message: precomputed human readable text
IsRead: read-state toggle, the only mutable field after creation

*/
type Notification struct {
	Id              string         `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time      `json:"created_at"`
	DeletedAt       gorm.DeletedAt `json:"-"`
	Type            string         `json:"type"`
	FromUserId      string         `json:"from_user_id"`
	ToUserId        string         `json:"to_user_id" gorm:"index"`
	FromDisplayName string         `json:"from_display_name"`
	FromUsername    string         `json:"from_username"`
	FromAvatarUrl   string         `json:"from_avatar_url"`
	Message         string         `json:"message"`
	IsRead          bool           `json:"is_read"`
}
