package follow

import (
	"errors"
	"strings"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	Logger "github.com/Luismorlan/birdnest/utils/log"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("you cannot follow yourself")
	// ErrUserNotFound is returned when either side of the edge does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrConcurrentModification is returned when the database gave up the
	// transaction due to a conflicting concurrent writer. The caller may retry.
	ErrConcurrentModification = errors.New("follow update aborted by concurrent modification")
)

// Notifier creates the follow notification emitted after a successful follow
// transition. Implemented by the notification service.
type Notifier interface {
	CreateFollowNotification(fromUserId string, toUserId string, actor *model.User) (string, error)
}

// VerificationResult reports the outcome of an auto-verification check.
type VerificationResult struct {
	Verified        bool
	AlreadyVerified bool
}

// Verifier evaluates the auto-verification policy against a user after their
// follower count changed. Implemented by the verification service.
type Verifier interface {
	CheckAndAutoVerify(userId string, followerCount int) (VerificationResult, error)
}

// Result is the outcome of UpdateFollowStatus.
type Result struct {
	NewStatus     bool `json:"new_status"`
	FollowerCount int  `json:"follower_count"`
}

// Stats is the pair of counts returned by GetFollowStats.
type Stats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// Service maintains the mutual follow relation between users. The two user
// rows and the edge are only ever touched inside a single transaction; the
// notification and verification side effects run after commit and are best
// effort.
type Service struct {
	DB       *gorm.DB
	Notifier Notifier
	Verifier Verifier
}

func NewService(db *gorm.DB, notifier Notifier, verifier Verifier) *Service {
	return &Service{DB: db, Notifier: notifier, Verifier: verifier}
}

// UpdateFollowStatus follows (isFollowing == false) or unfollows
// (isFollowing == true) targetId on behalf of actorId and returns the new
// state together with the target's follower count derived after the mutation.
func (s *Service) UpdateFollowStatus(actorId string, targetId string, isFollowing bool) (*Result, error) {
	if actorId == targetId {
		return nil, ErrSelfFollow
	}

	var (
		actor         model.User
		followerCount int64
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Lock both user rows in a stable order so that two opposing
		// transactions on the same pair cannot deadlock.
		for _, id := range lockOrder(actorId, targetId) {
			var user model.User
			res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&user)
			if res.Error != nil {
				if errors.Is(res.Error, gorm.ErrRecordNotFound) {
					return ErrUserNotFound
				}
				return res.Error
			}
			if id == actorId {
				actor = user
			}
		}

		if isFollowing {
			// Currently following, so unfollow. Hard delete keeps the edge a set.
			if err := tx.Where("user_id = ? AND follower_id = ?", targetId, actorId).
				Delete(&model.UserFollow{}).Error; err != nil {
				return err
			}
		} else {
			// Currently not following, so follow. ON CONFLICT DO NOTHING keeps a
			// stale precondition from producing a duplicate edge.
			edge := model.UserFollow{UserID: targetId, FollowerID: actorId}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
				return err
			}
		}

		// Derive the follower count from the join table after the mutation
		// instead of trusting an independently maintained tally.
		return tx.Model(&model.UserFollow{}).Where("user_id = ?", targetId).
			Count(&followerCount).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		if isConcurrencyAbort(err) {
			return nil, ErrConcurrentModification
		}
		return nil, pkgerrors.Wrap(err, "fail to update follow status")
	}

	count := int(followerCount)
	if count < 0 {
		count = 0
	}
	result := &Result{NewStatus: !isFollowing, FollowerCount: count}
	if result.NewStatus {
		utils.EmitCounter("birdnest.follow.update", []string{"transition:follow"})
	} else {
		utils.EmitCounter("birdnest.follow.update", []string{"transition:unfollow"})
	}

	// Side effects below are advisory: log and swallow every failure, the
	// committed edge mutation must never be reported as failed because of them.
	if result.NewStatus && s.Notifier != nil {
		if _, err := s.Notifier.CreateFollowNotification(actorId, targetId, &actor); err != nil {
			Logger.Log.Error("fail to create follow notification: ", err)
		}
	}
	if s.Verifier != nil {
		verification, err := s.Verifier.CheckAndAutoVerify(targetId, result.FollowerCount)
		if err != nil {
			Logger.Log.Error("fail to check auto-verification: ", err)
		} else if verification.Verified && !verification.AlreadyVerified {
			Logger.Log.Info("user ", targetId, " has been auto-verified with ", result.FollowerCount, " followers")
		}
	}

	return result, nil
}

// GetFollowStatus returns whether actorId currently follows targetId. A
// missing user reads as not following.
func (s *Service) GetFollowStatus(actorId string, targetId string) bool {
	return utils.ContainsString(s.GetFollowing(actorId), targetId)
}

// GetFollowers returns the ids of all users following userId, empty for a
// missing user.
func (s *Service) GetFollowers(userId string) []string {
	ids := []string{}
	if err := s.DB.Model(&model.UserFollow{}).Where("user_id = ?", userId).
		Pluck("follower_id", &ids).Error; err != nil {
		Logger.Log.Error("fail to get followers: ", err)
		return []string{}
	}
	return ids
}

// GetFollowing returns the ids of all users userId follows, empty for a
// missing user.
func (s *Service) GetFollowing(userId string) []string {
	ids := []string{}
	if err := s.DB.Model(&model.UserFollow{}).Where("follower_id = ?", userId).
		Pluck("user_id", &ids).Error; err != nil {
		Logger.Log.Error("fail to get following: ", err)
		return []string{}
	}
	return ids
}

// GetFollowStats returns follower and following counts, zero for a missing
// user.
func (s *Service) GetFollowStats(userId string) Stats {
	var followers, following int64
	if err := s.DB.Model(&model.UserFollow{}).Where("user_id = ?", userId).
		Count(&followers).Error; err != nil {
		Logger.Log.Error("fail to count followers: ", err)
	}
	if err := s.DB.Model(&model.UserFollow{}).Where("follower_id = ?", userId).
		Count(&following).Error; err != nil {
		Logger.Log.Error("fail to count following: ", err)
	}
	return Stats{Followers: int(followers), Following: int(following)}
}

func lockOrder(a string, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}

// isConcurrencyAbort matches the Postgres failures produced when conflicting
// writers force a transaction abort (serialization failure or deadlock).
func isConcurrencyAbort(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}
