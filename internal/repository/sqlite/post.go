package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/gallery/internal/apperror"
	"github.com/sakif/gallery/internal/model"
	"github.com/sakif/gallery/internal/repository"
)

// PostStore implements repository.PostRepository on the shared pool.
type PostStore struct {
	conn *sql.DB
}

var _ repository.PostRepository = (*PostStore)(nil)

// Create inserts a new post row. The id (a fresh UUID) and creation
// timestamp are generated here and written back to the caller's struct.
func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	post.ID = uuid.NewString()
	post.CreatedAt = time.Now().UTC()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO posts (id, url, file_type, file_name, caption, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.URL,
		post.FileType,
		post.FileName,
		post.Caption,
		post.UserID,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	return nil
}

// GetByID retrieves a single post.
// Returns apperror.ErrNotFound if no row matches.
func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, url, file_type, file_name, caption, user_id, created_at
		 FROM posts
		 WHERE id = ?`,
		id,
	)

	post, err := scanPost(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	return post, nil
}

// List returns all posts ordered newest first. Same-timestamp rows are
// ordered by id descending so the listing is stable across calls.
func (s *PostStore) List(ctx context.Context) ([]model.Post, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, url, file_type, file_name, caption, user_id, created_at
		 FROM posts
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		post, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// UpdateCaption sets the caption on an existing post. Every other column
// is immutable and left untouched. RowsAffected distinguishes "no such
// post" from a successful no-op caption write.
func (s *PostStore) UpdateCaption(ctx context.Context, id string, caption *string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE posts SET caption = ? WHERE id = ?`,
		caption,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// Delete permanently removes a post. Deleting an already-deleted id
// reports NotFound, so the second of two identical deletes fails.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM posts WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// scanPost reads one post row. caption and user_id are nullable, so they
// go through sql.NullString before landing in the model's pointer fields.
func scanPost(scan func(dest ...any) error) (*model.Post, error) {
	var (
		p       model.Post
		caption sql.NullString
		userID  sql.NullString
	)

	if err := scan(
		&p.ID,
		&p.URL,
		&p.FileType,
		&p.FileName,
		&caption,
		&userID,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}

	if caption.Valid {
		p.Caption = &caption.String
	}
	if userID.Valid {
		p.UserID = &userID.String
	}

	return &p, nil
}
