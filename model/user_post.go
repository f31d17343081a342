package model

import (
	"time"

	"gorm.io/gorm"
)

/*

UserPostLike is a "many-to-many" relation of user like a post

UserID: user id
PostID: post id
CreatedAt: time when relation is created

*/
type UserPostLike struct {
	UserID    string `gorm:"primaryKey"`
	PostID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (UserPostLike) BeforeCreate(db *gorm.DB) error {
	return nil
}

/*

UserPostSave is a "many-to-many" relation of user save a post

UserID: user id
PostID: post id
CreatedAt: time when relation is created

Like UserFollow, both join tables are hard deleted so that a later re-like or
re-save never collides with a tombstone row on the composite primary key.

*/
type UserPostSave struct {
	UserID    string `gorm:"primaryKey"`
	PostID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (UserPostSave) BeforeCreate(db *gorm.DB) error {
	return nil
}
