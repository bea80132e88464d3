package post

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  string `json:"userId"`
	// Author is the owner's username, filled on read.
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("post not found")

type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,notblank,max=200"`
	Content string `json:"content" binding:"required,notblank"`
}

// empty or blank fields keep the stored value
type UpdatePostRequest struct {
	Title   string `json:"title" binding:"omitempty,max=200"`
	Content string `json:"content"`
}

// NewForOwner is the only constructor: ownership always comes from the caller's identity.
func NewForOwner(ownerID string, req CreatePostRequest, now time.Time) Post {
	return Post{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   strings.TrimSpace(req.Content),
		UserID:    ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
