package utils

import (
	"testing"
	"time"

	"github.com/Luismorlan/birdnest/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// create user with the given username, do sanity checks and return it
func TestCreateUserAndValidate(t *testing.T, db *gorm.DB, userId string, username string) *model.User {
	t.Helper()
	user := model.User{
		Id:          userId,
		Username:    username,
		DisplayName: username,
		AvatarUrl:   "https://robohash.org/" + userId + "?set=set4&bgset=&size=400x400",
	}
	require.NoError(t, db.Create(&user).Error)

	var stored model.User
	queryResult := db.Where("id = ?", userId).First(&stored)
	require.Equal(t, int64(1), queryResult.RowsAffected)
	require.Equal(t, username, stored.Username)
	require.False(t, stored.IsVerified)
	require.Truef(t, time.Now().UnixNano() > stored.CreatedAt.UnixNano(), "time created wrong")

	return &stored
}

// create a post authored by userId, do sanity checks and return it
func TestCreatePostAndValidate(t *testing.T, db *gorm.DB, authorId string, content string) *model.Post {
	t.Helper()
	post := model.Post{
		Id:       uuid.New().String(),
		AuthorID: authorId,
		Content:  content,
		Hashtags: []byte(`[]`),
	}
	require.NoError(t, db.Create(&post).Error)

	var stored model.Post
	queryResult := db.Where("id = ?", post.Id).First(&stored)
	require.Equal(t, int64(1), queryResult.RowsAffected)
	require.Equal(t, content, stored.Content)
	require.Equal(t, int64(0), stored.LikeCount)
	require.Equal(t, int64(0), stored.SaveCount)
	require.Equal(t, int64(0), stored.ShareCount)
	require.NotZero(t, stored.Cursor)

	return &stored
}
