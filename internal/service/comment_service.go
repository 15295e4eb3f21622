package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"artenis/internal/models"
	"artenis/internal/notifications"
	"artenis/internal/repository"
)

const maxCommentLen = 1000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	notifier Notifier
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, users repository.UserRepository, notifier Notifier) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, notifier: notifier}
}

func (s *CommentService) Create(ctx context.Context, userID, postID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 1000 characters)")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPublished {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if !post.AllowComments {
		return nil, models.NewForbiddenError("Comments are disabled for this post")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, models.NewForbiddenError("Your account is not active")
	}

	comment := &models.Comment{PostID: postID, UserID: userID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.User = user

	if post.UserID != userID {
		notify(ctx, s.notifier, post.UserID, notifications.Event{
			Type:    notifications.EventPostCommented,
			ActorID: userID,
			Payload: map[string]any{"post_id": postID, "comment_id": comment.ID},
		})
	}
	return comment, nil
}

func (s *CommentService) List(ctx context.Context, postID uint, p Pagination) (PageResult[*models.Comment], error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return PageResult[*models.Comment]{}, err
	}
	if post.Status == models.PostStatusDeleted {
		return PageResult[*models.Comment]{}, models.NewNotFoundError("Post", postID)
	}
	comments, total, err := s.comments.ListByPost(ctx, postID, p.repoPage())
	if err != nil {
		return PageResult[*models.Comment]{}, err
	}
	return newPageResult(comments, total, p), nil
}

// Delete is allowed for the comment author and admins.
func (s *CommentService) Delete(ctx context.Context, actorID, postID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.PostID != postID {
		return models.NewNotFoundError("Comment", commentID)
	}
	if comment.UserID != actorID {
		if err := requireAdmin(ctx, s.users, actorID); err != nil {
			if models.IsCode(err, models.CodeForbidden) {
				return models.NewForbiddenError("Only the author can delete this comment")
			}
			return err
		}
	}
	return s.comments.Delete(ctx, comment)
}
