package model

import "time"

// Statistics is the monotonic per-user counter set. LoginCount and
// PostCount may only move upward across successful updates.
type Statistics struct {
	LoginCount    int        `gorm:"column:login_count;not null;default:0"`
	PostCount     int        `gorm:"column:post_count;not null;default:0"`
	LastLoginAt   *time.Time `gorm:"column:last_login_at"`
	LastPostAt    *time.Time `gorm:"column:last_post_at"`
	LastUpdatedAt time.Time  `gorm:"column:last_updated_at"`
}

// User is the relational-store record a worker row updates.
type User struct {
	UserID     string `gorm:"column:user_id;primaryKey;size:16"`
	Username   string `gorm:"column:username;size:255"`
	Email      string `gorm:"column:email;size:255"`
	Active     bool   `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Statistics `gorm:"embedded"`
}

func (User) TableName() string {
	return "users"
}
