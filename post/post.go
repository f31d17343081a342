package post

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// PostsPerPage is the page size for GetPosts.
	PostsPerPage = 10

	// DefaultQueryCursor starts pagination from the newest post.
	DefaultQueryCursor = math.MaxInt32
)

var (
	// ErrAuthRequired is returned if the acting user id is missing or anonymous.
	ErrAuthRequired = errors.New("authentication required")
	// ErrPostNotFound is returned when the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrAlreadyExists is returned on a duplicate like or save.
	ErrAlreadyExists = errors.New("interaction already exists")
	// ErrNotExists is returned when removing a like or save that is not there.
	ErrNotExists = errors.New("interaction does not exist")
)

// NewPostInput carries the caller supplied fields of a new post.
type NewPostInput struct {
	AuthorID string   `json:"author_id"`
	Content  string   `json:"content"`
	ImageUrl string   `json:"image_url"`
	Hashtags []string `json:"hashtags"`
}

// UpdatePostInput carries the editable fields of a post.
type UpdatePostInput struct {
	Content  string   `json:"content"`
	ImageUrl string   `json:"image_url"`
	Hashtags []string `json:"hashtags"`
}

// PostsFilter narrows GetPosts. Zero values mean no filtering.
type PostsFilter struct {
	AuthorID string
	Hashtag  string
}

// Service owns post CRUD and the like/save/share interactions. Every
// interaction moves the join (or share) record and the post counter inside
// one transaction, so the counter can never drift from the relation it
// counts.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// CreatePost publishes a new post with zeroed counters and returns it.
func (s *Service) CreatePost(input NewPostInput) (*model.Post, error) {
	if !isAuthenticated(input.AuthorID) {
		return nil, ErrAuthRequired
	}
	var user model.User
	res := s.DB.Where("id = ?", input.AuthorID).First(&user)
	if res.RowsAffected != 1 {
		return nil, errors.New("invalid user id")
	}

	hashtags, err := marshalHashtags(input.Hashtags)
	if err != nil {
		return nil, err
	}
	post := model.Post{
		Id:       uuid.New().String(),
		AuthorID: input.AuthorID,
		Content:  input.Content,
		ImageUrl: input.ImageUrl,
		Hashtags: hashtags,
	}
	if err := s.DB.Create(&post).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "fail to create post")
	}
	return &post, nil
}

// GetPost returns a post by id, ErrPostNotFound when absent.
func (s *Service) GetPost(postId string) (*model.Post, error) {
	var post model.Post
	res := s.DB.Where("id = ?", postId).First(&post)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &post, nil
}

// GetPosts returns one page of posts older than the given cursor, newest
// first. Pass DefaultQueryCursor for the first page; the caller feeds the
// smallest returned cursor back in to fetch the next page.
func (s *Service) GetPosts(cursor int32, filter PostsFilter) ([]*model.Post, error) {
	var posts []*model.Post
	query := s.DB.Model(&model.Post{}).Where("cursor < ?", cursor)
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Hashtag != "" {
		tag, err := marshalHashtags([]string{filter.Hashtag})
		if err != nil {
			return nil, err
		}
		query = query.Where("hashtags @> ?", tag)
	}
	if err := query.Order("cursor desc").Limit(PostsPerPage).Find(&posts).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "fail to query posts")
	}
	return posts, nil
}

// UpdatePost replaces the editable fields and marks the post edited.
func (s *Service) UpdatePost(postId string, input UpdatePostInput) (*model.Post, error) {
	post, err := s.GetPost(postId)
	if err != nil {
		return nil, err
	}
	hashtags, err := marshalHashtags(input.Hashtags)
	if err != nil {
		return nil, err
	}
	post.Content = input.Content
	post.ImageUrl = input.ImageUrl
	post.Hashtags = hashtags
	post.IsEdited = true
	if err := s.DB.Save(post).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "fail to update post")
	}
	return post, nil
}

// DeletePost soft deletes a post.
func (s *Service) DeletePost(postId string) error {
	res := s.DB.Where("id = ?", postId).Delete(&model.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrPostNotFound
	}
	return nil
}

// LikePost records userId liking postId. Duplicate likes fail with
// ErrAlreadyExists and leave the counter untouched.
func (s *Service) LikePost(postId string, userId string) error {
	err := s.addInteraction(postId, userId, "like_count", func(tx *gorm.DB, now time.Time) (int64, error) {
		var existing int64
		if err := tx.Model(&model.UserPostLike{}).
			Where("post_id = ? AND user_id = ?", postId, userId).Count(&existing).Error; err != nil {
			return 0, err
		}
		if existing > 0 {
			return 0, ErrAlreadyExists
		}
		res := tx.Create(&model.UserPostLike{UserID: userId, PostID: postId, CreatedAt: now})
		return res.RowsAffected, res.Error
	})
	if err == nil {
		utils.EmitCounter("birdnest.post.interaction", []string{"kind:like"})
	}
	return err
}

// UnlikePost removes a like, ErrNotExists when the user never liked the post.
func (s *Service) UnlikePost(postId string, userId string) error {
	return s.removeInteraction(postId, userId, "like_count", func(tx *gorm.DB) (int64, error) {
		res := tx.Where("post_id = ? AND user_id = ?", postId, userId).Delete(&model.UserPostLike{})
		return res.RowsAffected, res.Error
	})
}

// SavePost records userId saving postId, same contract as LikePost.
func (s *Service) SavePost(postId string, userId string) error {
	err := s.addInteraction(postId, userId, "save_count", func(tx *gorm.DB, now time.Time) (int64, error) {
		var existing int64
		if err := tx.Model(&model.UserPostSave{}).
			Where("post_id = ? AND user_id = ?", postId, userId).Count(&existing).Error; err != nil {
			return 0, err
		}
		if existing > 0 {
			return 0, ErrAlreadyExists
		}
		res := tx.Create(&model.UserPostSave{UserID: userId, PostID: postId, CreatedAt: now})
		return res.RowsAffected, res.Error
	})
	if err == nil {
		utils.EmitCounter("birdnest.post.interaction", []string{"kind:save"})
	}
	return err
}

// UnsavePost removes a save, same contract as UnlikePost.
func (s *Service) UnsavePost(postId string, userId string) error {
	return s.removeInteraction(postId, userId, "save_count", func(tx *gorm.DB) (int64, error) {
		res := tx.Where("post_id = ? AND user_id = ?", postId, userId).Delete(&model.UserPostSave{})
		return res.RowsAffected, res.Error
	})
}

// SharePost records a share event. Shares are not a toggle: every call adds a
// record and bumps the counter.
func (s *Service) SharePost(postId string, userId string, shareType string) error {
	if !isAuthenticated(userId) {
		return ErrAuthRequired
	}
	if shareType == "" {
		shareType = "repost"
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postId); err != nil {
			return err
		}
		share := model.PostShare{
			Id:        uuid.New().String(),
			PostID:    postId,
			UserID:    userId,
			ShareType: shareType,
		}
		if err := tx.Create(&share).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Where("id = ?", postId).
			Update("share_count", gorm.Expr("share_count + 1")).Error
	})
	if err == nil {
		utils.EmitCounter("birdnest.post.interaction", []string{"kind:share"})
	}
	return err
}

// IsPostLiked reports whether the user currently likes the post.
func (s *Service) IsPostLiked(postId string, userId string) bool {
	var count int64
	s.DB.Model(&model.UserPostLike{}).Where("post_id = ? AND user_id = ?", postId, userId).Count(&count)
	return count > 0
}

// IsPostSaved reports whether the user currently saves the post.
func (s *Service) IsPostSaved(postId string, userId string) bool {
	var count int64
	s.DB.Model(&model.UserPostSave{}).Where("post_id = ? AND user_id = ?", postId, userId).Count(&count)
	return count > 0
}

func (s *Service) addInteraction(postId string, userId string, counterColumn string, create func(tx *gorm.DB, now time.Time) (int64, error)) error {
	if !isAuthenticated(userId) {
		return ErrAuthRequired
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postId); err != nil {
			return err
		}
		affected, err := create(tx, time.Now())
		if err != nil {
			return err
		}
		if affected != 1 {
			return ErrAlreadyExists
		}
		return tx.Model(&model.Post{}).Where("id = ?", postId).
			Update(counterColumn, gorm.Expr(counterColumn+" + 1")).Error
	})
}

func (s *Service) removeInteraction(postId string, userId string, counterColumn string, remove func(tx *gorm.DB) (int64, error)) error {
	if !isAuthenticated(userId) {
		return ErrAuthRequired
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postId); err != nil {
			return err
		}
		affected, err := remove(tx)
		if err != nil {
			return err
		}
		if affected != 1 {
			return ErrNotExists
		}
		// GREATEST clamps at zero in case the counter was ever seeded stale.
		return tx.Model(&model.Post{}).Where("id = ?", postId).
			Update(counterColumn, gorm.Expr("GREATEST("+counterColumn+" - 1, 0)")).Error
	})
}

// lockPost takes a row lock on the post so the counter update and the join
// record move together even under concurrent interactions.
func lockPost(tx *gorm.DB, postId string) error {
	var post model.Post
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", postId).First(&post)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return ErrPostNotFound
	}
	return res.Error
}

func isAuthenticated(userId string) bool {
	return userId != "" && userId != "anonymous"
}

func marshalHashtags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
