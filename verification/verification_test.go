package verification

import (
	"fmt"
	"os"
	"testing"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	"github.com/Luismorlan/birdnest/utils/dotenv"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	utils.TestCreateUserAndValidate(t, db, "creator", "carol")
	return NewService(db)
}

func seedPosts(t *testing.T, db *gorm.DB, authorId string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		utils.TestCreatePostAndValidate(t, db, authorId, fmt.Sprintf("post %d", i))
	}
}

func seedFollowers(t *testing.T, db *gorm.DB, userId string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		followerId := fmt.Sprintf("fan_%d", i)
		utils.TestCreateUserAndValidate(t, db, followerId, followerId)
		require.NoError(t, db.Create(&model.UserFollow{UserID: userId, FollowerID: followerId}).Error)
	}
}

func requireVerified(t *testing.T, db *gorm.DB, userId string, want bool) {
	t.Helper()
	var user model.User
	require.NoError(t, db.Where("id = ?", userId).First(&user).Error)
	require.Equal(t, want, user.IsVerified)
}

func TestThresholdsAreStrictlyGreater(t *testing.T) {
	service := newTestService(t)
	seedPosts(t, service.DB, "creator", MinPostsForVerification+1)

	// Exactly at the follower threshold does not qualify.
	result, err := service.CheckAndAutoVerify("creator", MinFollowersForVerification)
	require.NoError(t, err)
	require.False(t, result.Verified)
	requireVerified(t, service.DB, "creator", false)

	result, err = service.CheckAndAutoVerify("creator", MinFollowersForVerification+1)
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.False(t, result.AlreadyVerified)
	requireVerified(t, service.DB, "creator", true)
}

func TestPostThresholdAlsoStrictlyGreater(t *testing.T) {
	service := newTestService(t)
	seedPosts(t, service.DB, "creator", MinPostsForVerification)

	result, err := service.CheckAndAutoVerify("creator", MinFollowersForVerification+5)
	require.NoError(t, err)
	require.False(t, result.Verified)
	requireVerified(t, service.DB, "creator", false)
}

func TestVerificationIsSticky(t *testing.T) {
	service := newTestService(t)
	seedPosts(t, service.DB, "creator", MinPostsForVerification+1)

	_, err := service.CheckAndAutoVerify("creator", MinFollowersForVerification+1)
	require.NoError(t, err)

	// Counts dropping back below threshold never revokes the badge.
	result, err := service.CheckAndAutoVerify("creator", 0)
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.True(t, result.AlreadyVerified)
	requireVerified(t, service.DB, "creator", true)
}

func TestAutoVerifyDisabled(t *testing.T) {
	service := newTestService(t)
	service.AutoVerifyDisabled = true
	seedPosts(t, service.DB, "creator", MinPostsForVerification+1)

	result, err := service.CheckAndAutoVerify("creator", MinFollowersForVerification+1)
	require.NoError(t, err)
	require.False(t, result.Verified)
	requireVerified(t, service.DB, "creator", false)

	// Manual action still works and sticks.
	require.NoError(t, service.SetVerificationStatus("creator", true))
	result, err = service.CheckAndAutoVerify("creator", 0)
	require.NoError(t, err)
	require.True(t, result.AlreadyVerified)
}

func TestCheckAndAutoVerifyUnknownUser(t *testing.T) {
	service := newTestService(t)
	_, err := service.CheckAndAutoVerify("ghost", 100)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, service.SetVerificationStatus("ghost", true), ErrUserNotFound)
}

func TestGetVerificationDetails(t *testing.T) {
	service := newTestService(t)
	seedPosts(t, service.DB, "creator", 3)
	seedFollowers(t, service.DB, "creator", 2)

	details := service.GetVerificationDetails("creator")
	require.False(t, details.IsVerified)
	require.Equal(t, 2, details.Followers)
	require.Equal(t, 3, details.Posts)
	require.False(t, details.MeetsRequirements)

	require.Equal(t, Details{}, service.GetVerificationDetails("ghost"))
}
