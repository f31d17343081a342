package model

import "time"

/*

PostShare is an event record of a user sharing a post

Id: primary key
PostID: shared post
UserID: user who shared
ShareType: how the post was shared, e.g. "repost" or "external"
CreatedAt: time when the share happened

Unlike likes and saves there is no uniqueness here, a user may share the same
post any number of times and every share bumps the post's ShareCount.

*/
type PostShare struct {
	Id        string `gorm:"primaryKey"`
	PostID    string `gorm:"index"`
	UserID    string
	ShareType string
	CreatedAt time.Time
}
