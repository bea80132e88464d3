package media

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindMusic Kind = "music"
	KindVideo Kind = "video"
)

type Item struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Artist      string    `json:"artist,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateMusicRequest struct {
	Title  string `json:"title" binding:"required,notblank,max=200"`
	URL    string `json:"url" binding:"required,url"`
	Artist string `json:"artist" binding:"omitempty,max=200"`
}

type CreateVideoRequest struct {
	Title       string `json:"title" binding:"required,notblank,max=200"`
	URL         string `json:"url" binding:"required,url"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

func NewMusic(ownerID string, req CreateMusicRequest, now time.Time) Item {
	return Item{
		ID:        uuid.NewString(),
		Kind:      KindMusic,
		UserID:    ownerID,
		Title:     req.Title,
		URL:       req.URL,
		Artist:    req.Artist,
		CreatedAt: now,
	}
}

func NewVideo(ownerID string, req CreateVideoRequest, now time.Time) Item {
	return Item{
		ID:          uuid.NewString(),
		Kind:        KindVideo,
		UserID:      ownerID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		CreatedAt:   now,
	}
}
