package models

import "time"

// Review holds user annotations for one block. One review per block
// id; absence means the block is pending review. Skipped is a review
// state, not a separate entity, and can be cleared by a later upsert.
type Review struct {
	BlockID    string   `db:"block_id" json:"block_id"`
	Skipped    bool     `db:"skipped" json:"skipped"`
	SkipReason string   `db:"skip_reason" json:"skip_reason,omitempty"`
	Doing      string   `db:"doing" json:"doing,omitempty"`
	Output     string   `db:"output" json:"output,omitempty"`
	Next       string   `db:"next" json:"next,omitempty"`
	Tags       []string `db:"tags" json:"tags"`
	UpdatedAt  int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Review.
func (Review) TableName() string {
	return "reviews"
}

// Touch updates the UpdatedAt timestamp.
func (r *Review) Touch() {
	r.UpdatedAt = time.Now().Unix()
}
