package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sakif/gallery/internal/apperror"
	"github.com/sakif/gallery/internal/model"
	"github.com/sakif/gallery/internal/repository"
	"github.com/sakif/gallery/internal/storage"
)

// PostService handles the upload flow and post CRUD, including the
// ownership rule on mutation and deletion.
type PostService struct {
	posts    repository.PostRepository
	uploader storage.Uploader
	logger   *slog.Logger
}

// NewPostService creates a PostService.
func NewPostService(posts repository.PostRepository, uploader storage.Uploader, logger *slog.Logger) *PostService {
	return &PostService{
		posts:    posts,
		uploader: uploader,
		logger:   logger,
	}
}

// Upload sends the file to the storage provider, then records the post.
//
// Order matters: the delegate call completes first, and only a success
// creates a row. A delegate failure aborts the whole operation — there is
// never a post without a URL. (The converse can happen: if the row insert
// fails after a successful upload, the remote file is orphaned. Accepted;
// there is no reconciliation.)
func (s *PostService) Upload(ctx context.Context, owner *model.User, file io.Reader, fileName, contentType string, caption *string) (*model.Post, error) {
	if fileName == "" {
		return nil, apperror.ValidationFailed("file", "file name is required")
	}
	if contentType == "" {
		return nil, apperror.ValidationFailed("file", "file content type is required")
	}

	result, err := s.uploader.Upload(ctx, file, fileName, contentType)
	if err != nil {
		s.logger.Error("upload delegate failed",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("file upload failed", err)
	}

	post := &model.Post{
		URL:      result.URL,
		FileType: contentType,
		FileName: fileName,
		Caption:  caption,
	}
	if owner != nil {
		post.UserID = &owner.ID
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("file_name", post.FileName),
		slog.String("url", post.URL),
	)

	return post, nil
}

// List returns all posts, newest first.
func (s *PostService) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// Get returns one post by id.
//
// The id must parse as a UUID before any store lookup happens; a malformed
// id is a validation error (400), not a missing resource (404).
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, id)
}

// UpdateCaption sets a post's caption on behalf of requester.
//
// OWNERSHIP RULE:
// A post with an owner may only be mutated by that owner. A post without
// an owner carries no ownership check at all — any authenticated user may
// edit it. That asymmetry is inherited from the original data (posts that
// predate accounts) and is preserved deliberately.
func (s *PostService) UpdateCaption(ctx context.Context, id string, caption *string, requester *model.User) (*model.Post, error) {
	post, err := s.authorize(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	if err := s.posts.UpdateCaption(ctx, id, caption); err != nil {
		return nil, fmt.Errorf("updating post %s: %w", id, err)
	}
	post.Caption = caption

	s.logger.Info("post caption updated",
		slog.String("id", id),
		slog.String("requester", requester.Username),
	)

	return post, nil
}

// Delete permanently removes a post on behalf of requester, applying the
// same ownership rule as UpdateCaption. The removal is not idempotent in
// result: a second delete of the same id reports NotFound.
func (s *PostService) Delete(ctx context.Context, id string, requester *model.User) error {
	if _, err := s.authorize(ctx, id, requester); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("post deleted",
		slog.String("id", id),
		slog.String("requester", requester.Username),
	)

	return nil
}

// authorize validates the id, loads the post, and applies the ownership
// check for a mutating operation.
func (s *PostService) authorize(ctx context.Context, id string, requester *model.User) (*model.Post, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if post.UserID != nil && (requester == nil || !post.OwnedBy(requester.ID)) {
		return nil, apperror.Forbidden("you do not own this post")
	}

	return post, nil
}

// validateID rejects anything that is not a well-formed textual UUID.
// uuid.Parse accepts a few exotic encodings (urn prefix, braces); the
// length check pins this to the canonical 36-character form the API hands
// out, so truncated or padded ids fail too.
func validateID(id string) error {
	if len(id) != 36 {
		return apperror.ValidationFailed("id", "id must be a valid UUID")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperror.ValidationFailed("id", "id must be a valid UUID")
	}
	return nil
}
