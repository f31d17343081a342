package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Luismorlan/birdnest/follow"
	"github.com/Luismorlan/birdnest/history"
	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/notification"
	"github.com/Luismorlan/birdnest/post"
	"github.com/Luismorlan/birdnest/verification"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// Server bundles all services behind the REST surface. The follow service is
// wired with the notification and verification services as its side-effect
// collaborators.
type Server struct {
	DB            *gorm.DB
	Follow        *follow.Service
	Posts         *post.Service
	History       *history.Service
	Notifications *notification.Service
	Verification  *verification.Service
}

func NewServer(db *gorm.DB, notifications *notification.Service) *Server {
	verifications := verification.NewService(db)
	return &Server{
		DB:            db,
		Follow:        follow.NewService(db, notifications, verifications),
		Posts:         post.NewService(db),
		History:       history.NewService(db),
		Notifications: notifications,
		Verification:  verifications,
	}
}

// RegisterRoutes attaches every API route to the router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.POST("/users", s.createUser)
	router.GET("/users/:id", s.getUser)
	router.GET("/users/:id/followers", s.getFollowers)
	router.GET("/users/:id/following", s.getFollowing)
	router.GET("/users/:id/follow_stats", s.getFollowStats)
	router.GET("/users/:id/follow_status", s.getFollowStatus)
	router.GET("/users/:id/verification", s.getVerificationDetails)
	router.POST("/follow", s.updateFollowStatus)

	router.POST("/posts", s.createPost)
	router.GET("/posts", s.getPosts)
	router.GET("/posts/:id", s.getPost)
	router.PUT("/posts/:id", s.updatePost)
	router.DELETE("/posts/:id", s.deletePost)
	router.POST("/posts/:id/like", s.interaction(func(postId, userId string) error {
		return s.Posts.LikePost(postId, userId)
	}))
	router.POST("/posts/:id/unlike", s.interaction(func(postId, userId string) error {
		return s.Posts.UnlikePost(postId, userId)
	}))
	router.POST("/posts/:id/save", s.interaction(func(postId, userId string) error {
		return s.Posts.SavePost(postId, userId)
	}))
	router.POST("/posts/:id/unsave", s.interaction(func(postId, userId string) error {
		return s.Posts.UnsavePost(postId, userId)
	}))
	router.POST("/posts/:id/share", s.sharePost)

	router.GET("/notifications", s.getNotifications)
	router.GET("/notifications/unread_count", s.getUnreadCount)
	router.POST("/notifications/:id/read", s.markNotificationRead)
	router.POST("/notifications/read_all", s.markAllNotificationsRead)
	router.DELETE("/notifications/:id", s.deleteNotification)

	router.POST("/history", s.recordView)
	router.GET("/history", s.getHistory)
	router.GET("/history/stats", s.getHistoryStats)
	router.DELETE("/history/:key", s.deleteHistoryEntry)
	router.DELETE("/history", s.clearHistory)
}

// NewUserInput is the registration payload.
type NewUserInput struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url"`
	Bio         string `json:"bio"`
}

func (s *Server) createUser(c *gin.Context) {
	var input NewUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if input.Id == "" || input.Username == "" {
		badRequest(c, errors.New("id and username are required"))
		return
	}

	// Creation is idempotent on id: re-registering returns the existing user.
	var existing model.User
	res := s.DB.Where("id = ?", input.Id).First(&existing)
	if res.RowsAffected == 1 {
		c.JSON(http.StatusOK, &existing)
		return
	}

	var user model.User
	if err := copier.Copy(&user, &input); err != nil {
		internalError(c, err)
		return
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	if user.AvatarUrl == "" {
		user.AvatarUrl = "https://robohash.org/" + user.Id + "?set=set4&bgset=&size=400x400"
	}
	if err := s.DB.Create(&user).Error; err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, &user)
}

func (s *Server) getUser(c *gin.Context) {
	var user model.User
	res := s.DB.Where("id = ?", c.Param("id")).First(&user)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": "user not found"})
		return
	}
	if res.Error != nil {
		internalError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, &user)
}

// FollowInput is the body of POST /follow. IsFollowing carries the caller's
// view of the current state, the handler flips it.
type FollowInput struct {
	TargetId    string `json:"target_id"`
	IsFollowing bool   `json:"is_following"`
}

func (s *Server) updateFollowStatus(c *gin.Context) {
	var input FollowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.Follow.UpdateFollowStatus(actingUser(c), input.TargetId, input.IsFollowing)
	if err != nil {
		switch {
		case errors.Is(err, follow.ErrSelfFollow):
			badRequest(c, err)
		case errors.Is(err, follow.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		case errors.Is(err, follow.ErrConcurrentModification):
			c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
		default:
			internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getFollowers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"followers": s.Follow.GetFollowers(c.Param("id"))})
}

func (s *Server) getFollowing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"following": s.Follow.GetFollowing(c.Param("id"))})
}

func (s *Server) getFollowStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Follow.GetFollowStats(c.Param("id")))
}

func (s *Server) getFollowStatus(c *gin.Context) {
	status := s.Follow.GetFollowStatus(actingUser(c), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"is_following": status})
}

func (s *Server) getVerificationDetails(c *gin.Context) {
	c.JSON(http.StatusOK, s.Verification.GetVerificationDetails(c.Param("id")))
}

func (s *Server) createPost(c *gin.Context) {
	var input post.NewPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	input.AuthorID = actingUser(c)
	created, err := s.Posts.CreatePost(input)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getPosts(c *gin.Context) {
	cursor := int64(post.DefaultQueryCursor)
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			badRequest(c, err)
			return
		}
		cursor = parsed
	}
	posts, err := s.Posts.GetPosts(int32(cursor), post.PostsFilter{
		AuthorID: c.Query("author_id"),
		Hashtag:  c.Query("hashtag"),
	})
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) getPost(c *gin.Context) {
	found, err := s.Posts.GetPost(c.Param("id"))
	if errors.Is(err, post.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) updatePost(c *gin.Context) {
	var input post.UpdatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := s.Posts.UpdatePost(c.Param("id"), input)
	if errors.Is(err, post.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deletePost(c *gin.Context) {
	if err := s.Posts.DeletePost(c.Param("id")); err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// interaction wraps the four like/save toggle endpoints with shared error
// mapping.
func (s *Server) interaction(invoke func(postId string, userId string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := invoke(c.Param("id"), actingUser(c))
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, post.ErrAuthRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
		case errors.Is(err, post.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
		case errors.Is(err, post.ErrAlreadyExists), errors.Is(err, post.ErrNotExists):
			c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
		default:
			internalError(c, err)
		}
	}
}

// ShareInput is the optional body of POST /posts/:id/share.
type ShareInput struct {
	ShareType string `json:"share_type"`
}

func (s *Server) sharePost(c *gin.Context) {
	var input ShareInput
	// The body is optional, ignore bind errors on an empty payload.
	_ = c.ShouldBindJSON(&input)
	err := s.Posts.SharePost(c.Param("id"), actingUser(c), input.ShareType)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, post.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	case errors.Is(err, post.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	default:
		internalError(c, err)
	}
}

func (s *Server) getNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	notifications, err := s.Notifications.GetNotifications(actingUser(c), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (s *Server) getUnreadCount(c *gin.Context) {
	count, err := s.Notifications.GetUnreadCount(actingUser(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	if err := s.Notifications.MarkAsRead(c.Param("id")); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	if err := s.Notifications.MarkAllAsRead(actingUser(c)); err != nil {
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteNotification(c *gin.Context) {
	if err := s.Notifications.DeleteNotification(c.Param("id")); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordViewInput is the body of POST /history.
type RecordViewInput struct {
	Subject  history.BirdSnapshot `json:"subject"`
	ViewKind string               `json:"view_kind"`
}

func (s *Server) recordView(c *gin.Context) {
	var input RecordViewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if input.ViewKind == "" {
		input.ViewKind = model.SearchTypeSearch
	}
	result, err := s.History.RecordView(actingUser(c), input.Subject, input.ViewKind)
	if err != nil {
		if errors.Is(err, history.ErrInvalidArgument) {
			badRequest(c, err)
			return
		}
		internalError(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (s *Server) getHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := s.History.GetHistory(actingUser(c), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (s *Server) getHistoryStats(c *gin.Context) {
	stats, err := s.History.GetStats(actingUser(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) deleteHistoryEntry(c *gin.Context) {
	if err := s.History.DeleteEntry(actingUser(c), c.Param("key")); err != nil {
		if errors.Is(err, history.ErrInvalidArgument) {
			badRequest(c, err)
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearHistory(c *gin.Context) {
	deleted, err := s.History.ClearHistory(actingUser(c))
	if err != nil {
		if errors.Is(err, history.ErrInvalidArgument) {
			badRequest(c, err)
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

// actingUser reads the user id the JWT middleware stored in the "sub" header.
func actingUser(c *gin.Context) string {
	return c.Request.Header.Get("sub")
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
}
