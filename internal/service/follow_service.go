package service

import (
	"context"

	"artenis/internal/models"
	"artenis/internal/notifications"
	"artenis/internal/repository"
	"artenis/internal/reputation"
)

type FollowService struct {
	follows  repository.FollowRepository
	users    repository.UserRepository
	notifier Notifier
	now      clock
}

func NewFollowService(follows repository.FollowRepository, users repository.UserRepository, notifier Notifier) *FollowService {
	return &FollowService{follows: follows, users: users, notifier: notifier, now: utcNow}
}

func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	follower, err := s.users.GetByID(ctx, followerID)
	if err != nil {
		return err
	}
	if !follower.IsActive() {
		return models.NewForbiddenError("Your account is not active")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !target.IsActive() {
		return models.NewValidationError("Cannot follow an inactive account")
	}

	exists, err := s.follows.Exists(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return models.NewConflictError("Already following this user")
	}

	following, err := s.follows.CountFollowing(ctx, followerID)
	if err != nil {
		return err
	}
	if following >= reputation.FollowLimit(follower.IsPremiumActive(s.now())) {
		return models.NewValidationError("Following limit reached")
	}

	if err := s.follows.Create(ctx, followerID, targetID); err != nil {
		return err
	}

	if target.ShouldReceiveNotification() {
		notify(ctx, s.notifier, targetID, notifications.Event{
			Type:    notifications.EventFollowCreated,
			ActorID: followerID,
			Payload: map[string]any{"username": follower.Username},
		})
	}
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	removed, err := s.follows.Delete(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewNotFoundError("Follow", targetID)
	}
	return nil
}

func (s *FollowService) Followers(ctx context.Context, userID uint, p Pagination) (PageResult[models.User], error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return PageResult[models.User]{}, err
	}
	users, total, err := s.follows.ListFollowers(ctx, userID, p.repoPage())
	if err != nil {
		return PageResult[models.User]{}, err
	}
	return newPageResult(users, total, p), nil
}

func (s *FollowService) Following(ctx context.Context, userID uint, p Pagination) (PageResult[models.User], error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return PageResult[models.User]{}, err
	}
	users, total, err := s.follows.ListFollowing(ctx, userID, p.repoPage())
	if err != nil {
		return PageResult[models.User]{}, err
	}
	return newPageResult(users, total, p), nil
}
