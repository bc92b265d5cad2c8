package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID   string `bun:"user_id,pk"`
	Username string `bun:"username,notnull"`
	Country  string `bun:"country,notnull,default:'US'"`

	DateAdded time.Time `bun:"date_added,notnull,default:current_timestamp"`

	// Engagement lifecycle. NeedsUpdateResponse is true iff UpdateDeadline is
	// set and the deadline sweep has not yet processed the user.
	LastUpdateReminder  *time.Time `bun:"last_update_reminder"`
	UpdateDeadline      *time.Time `bun:"update_deadline"`
	NeedsUpdateResponse bool       `bun:"needs_update_response,notnull,default:false"`
}
