package domain

import "time"

// Item is the domain object materialized from a completed task: one media
// attachment on a post, keyed by the generated output id.
type Item struct {
	ID          int64        `json:"id"`
	PostID      int64        `json:"post_id"`
	Caption     string       `json:"caption"`
	OutputID    string       `json:"output_id"`
	Target      TargetFormat `json:"target"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	AspectRatio int          `json:"aspect_ratio"`
	CreatedAt   time.Time    `json:"created_at"`
}
