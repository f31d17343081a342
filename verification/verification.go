package verification

import (
	"errors"

	"github.com/Luismorlan/birdnest/follow"
	"github.com/Luismorlan/birdnest/model"
	Logger "github.com/Luismorlan/birdnest/utils/log"
	"gorm.io/gorm"
)

const (
	// MinFollowersForVerification is the follower threshold for automatic
	// verification. Users must have strictly more than this many followers.
	MinFollowersForVerification = 10

	// MinPostsForVerification is the post threshold for automatic verification.
	// Users must have strictly more than this many posts.
	MinPostsForVerification = 10
)

// ErrUserNotFound is returned when the checked user does not exist.
var ErrUserNotFound = errors.New("user not found")

// Details describes a user's current standing against the policy.
type Details struct {
	IsVerified        bool `json:"is_verified"`
	Followers         int  `json:"followers"`
	Posts             int  `json:"posts"`
	MeetsRequirements bool `json:"meets_requirements"`
}

// Service evaluates and applies the auto-verification policy: a user gets the
// badge once they exceed both the follower and the post threshold, and keeps
// it even if the counts later drop.
type Service struct {
	DB *gorm.DB

	// AutoVerifyDisabled turns CheckAndAutoVerify into a read-only check,
	// leaving verification to manual admin action.
	AutoVerifyDisabled bool
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// CheckAndAutoVerify evaluates the policy for userId using the caller
// supplied follower count (computed by the follow service after its
// mutation) and flips the badge when the user newly qualifies. Satisfies
// follow.Verifier.
func (s *Service) CheckAndAutoVerify(userId string, followerCount int) (follow.VerificationResult, error) {
	var user model.User
	res := s.DB.Where("id = ?", userId).First(&user)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return follow.VerificationResult{}, ErrUserNotFound
	}
	if res.Error != nil {
		return follow.VerificationResult{}, res.Error
	}

	// Once verified, the badge sticks even when counts drop below threshold.
	if user.IsVerified {
		return follow.VerificationResult{Verified: true, AlreadyVerified: true}, nil
	}
	if s.AutoVerifyDisabled {
		return follow.VerificationResult{}, nil
	}
	if followerCount <= MinFollowersForVerification {
		return follow.VerificationResult{}, nil
	}

	postsCount, err := s.getUserPostsCount(userId)
	if err != nil {
		return follow.VerificationResult{}, err
	}
	if postsCount <= MinPostsForVerification {
		return follow.VerificationResult{}, nil
	}

	if err := s.SetVerificationStatus(userId, true); err != nil {
		return follow.VerificationResult{}, err
	}
	return follow.VerificationResult{Verified: true, AlreadyVerified: false}, nil
}

// GetVerificationDetails reports the user's standing; a missing user reads as
// all zero values.
func (s *Service) GetVerificationDetails(userId string) Details {
	var user model.User
	res := s.DB.Where("id = ?", userId).First(&user)
	if res.Error != nil {
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			Logger.Log.Error("fail to get verification details: ", res.Error)
		}
		return Details{}
	}

	var followers int64
	s.DB.Model(&model.UserFollow{}).Where("user_id = ?", userId).Count(&followers)
	posts, err := s.getUserPostsCount(userId)
	if err != nil {
		Logger.Log.Error("fail to count posts: ", err)
	}

	return Details{
		IsVerified: user.IsVerified,
		Followers:  int(followers),
		Posts:      posts,
		MeetsRequirements: int(followers) > MinFollowersForVerification &&
			posts > MinPostsForVerification,
	}
}

// SetVerificationStatus overrides the badge directly, used by auto
// verification and by manual admin action.
func (s *Service) SetVerificationStatus(userId string, verified bool) error {
	res := s.DB.Model(&model.User{}).Where("id = ?", userId).Update("is_verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) getUserPostsCount(userId string) (int, error) {
	var count int64
	if err := s.DB.Model(&model.Post{}).Where("author_id = ?", userId).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
