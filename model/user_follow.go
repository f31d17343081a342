package model

import (
	"time"

	"gorm.io/gorm"
)

/*

UserFollow is a "many-to-many" self relation of one user following another

UserID: user being followed (the edge target)
FollowerID: user who follows (the edge actor)
CreatedAt: time when relation is created

Rows are hard deleted on unfollow. A soft-deleted edge would collide with the
composite primary key when the same user follows again, so this join table
intentionally carries no DeletedAt.

*/
type UserFollow struct {
	UserID     string `gorm:"primaryKey"`
	FollowerID string `gorm:"primaryKey"`
	CreatedAt  time.Time
}

func (UserFollow) BeforeCreate(db *gorm.DB) error {
	return nil
}
