package model

import (
	"time"

	"gorm.io/gorm"
)

/*

User is a data model for a registered member

Id: primary key, use to identify a user
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

Username: unique handle, immutable after registration
DisplayName: name shown in the UI, denormalized into notifications
AvatarUrl: profile image url
Bio: short self description
IsVerified: whether the user carries a verification badge, flipped by the
verification policy and never revoked automatically

Followers: users following this user, "many-to-many" self relation through UserFollow
Following: users this user follows, inverse side of the same relation
LikedPosts: posts this user liked, "many-to-many" relation through UserPostLike
SavedPosts: posts this user saved, "many-to-many" relation through UserPostSave

Followers/Following are sets: uniqueness is enforced by the follow service via
the join table primary key, ordering carries no meaning.

*/
type User struct {
	Id          string         `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"-"`
	Username    string         `json:"username" gorm:"uniqueIndex"`
	DisplayName string         `json:"display_name"`
	AvatarUrl   string         `json:"avatar_url"`
	Bio         string         `json:"bio"`
	IsVerified  bool           `json:"is_verified"`
	Followers   []*User `json:"followers,omitempty" gorm:"many2many:user_follows;foreignKey:Id;joinForeignKey:UserID;References:Id;joinReferences:FollowerID"`
	Following   []*User `json:"following,omitempty" gorm:"many2many:user_follows;foreignKey:Id;joinForeignKey:FollowerID;References:Id;joinReferences:UserID"`
	LikedPosts  []*Post `json:"liked_posts,omitempty" gorm:"many2many:user_post_likes;"`
	SavedPosts  []*Post `json:"saved_posts,omitempty" gorm:"many2many:user_post_saves;"`
}
