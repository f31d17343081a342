package post

import (
	"context"
)

// The adapters below expose the interaction endpoints in the
// activate/deactivate shape the optimistic controller drives. Each one is
// bound to the acting user.

// LikeRemote settles like toggles against the post service.
type LikeRemote struct {
	Service *Service
	UserId  string
}

func (r LikeRemote) Activate(ctx context.Context, postId string) error {
	return r.Service.LikePost(postId, r.UserId)
}

func (r LikeRemote) Deactivate(ctx context.Context, postId string) error {
	return r.Service.UnlikePost(postId, r.UserId)
}

// SaveRemote settles save toggles against the post service.
type SaveRemote struct {
	Service *Service
	UserId  string
}

func (r SaveRemote) Activate(ctx context.Context, postId string) error {
	return r.Service.SavePost(postId, r.UserId)
}

func (r SaveRemote) Deactivate(ctx context.Context, postId string) error {
	return r.Service.UnsavePost(postId, r.UserId)
}

// ShareRemote settles share increments against the post service. Deactivate
// exists only to satisfy the endpoint shape, shares cannot be withdrawn.
type ShareRemote struct {
	Service *Service
	UserId  string
}

func (r ShareRemote) Activate(ctx context.Context, postId string) error {
	return r.Service.SharePost(postId, r.UserId, "repost")
}

func (r ShareRemote) Deactivate(ctx context.Context, postId string) error {
	return nil
}
