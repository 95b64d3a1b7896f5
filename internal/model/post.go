package model

import "time"

// Post is the metadata record for one uploaded file.
//
// URL, FileType, and FileName are immutable after creation — URL comes back
// from the upload delegate, the other two describe the original file.
// Caption is the only mutable field.
//
// UserID is a pointer because ownership is optional: posts created before
// accounts existed have no owner, and a nil UserID means no ownership check
// applies to them. Once set, an owner is never reassigned.
type Post struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	FileType  string    `json:"file_type"`
	FileName  string    `json:"file_name"`
	Caption   *string   `json:"caption"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedBy reports whether the post belongs to the given user ID.
// A post without an owner is owned by nobody.
func (p *Post) OwnedBy(userID string) bool {
	return p.UserID != nil && *p.UserID == userID
}
