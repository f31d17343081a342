package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*

Post is a piece of content a user published to the feed

Id: primary key, use to identify a post
CreatedAt: time when entity is created
UpdatedAt: time when entity is last edited
DeletedAt: time when entity is deleted

AuthorID:
Author: user who published this post, "belongs-to" relation
Content: post body in plain text
ImageUrl: optional attached image
Hashtags: jsonb array of hashtag strings, queried with jsonb containment

LikeCount: number of users currently liking this post
SaveCount: number of users currently saving this post
ShareCount: number of times this post has been shared

The three counters are only ever moved inside the same transaction that
creates or deletes the corresponding join/share record, so they cannot drift
from the authoritative relation.

LikedByUsers: users who liked this post, "many-to-many" relation
SavedByUsers: users who saved this post, "many-to-many" relation

IsEdited: set once the post is updated after creation
Cursor: the auto-inc global-unique index to keep the relative order of posts

*/
type Post struct {
	Id           string         `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"`
	AuthorID     string         `json:"author_id" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Author       User           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Content      string         `json:"content"`
	ImageUrl     string         `json:"image_url"`
	Hashtags     datatypes.JSON `json:"hashtags"`
	LikeCount    int64          `json:"like_count"`
	SaveCount    int64          `json:"save_count"`
	ShareCount   int64          `json:"share_count"`
	LikedByUsers []*User        `json:"liked_by_users,omitempty" gorm:"many2many:user_post_likes;"`
	SavedByUsers []*User        `json:"saved_by_users,omitempty" gorm:"many2many:user_post_saves;"`
	IsEdited     bool           `json:"is_edited"`
	Cursor       int32          `json:"cursor" gorm:"autoIncrement"`
}
