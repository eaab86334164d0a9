package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	// Display identity attached to comments posted without a token.
	AnonymousUsername = "anonymous"
	AnonymousEmail    = "anonymous@example.com"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"` // stored lowercased
	PasswordHash string    `gorm:"not null" json:"-"`                 // json:"-" prevents password from being exposed in API
	Role         string    `gorm:"not null" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// StringList stores an ordered list of strings as a JSON column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

type Article struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	AuthorID      uint       `gorm:"not null;index" json:"-"`
	Author        User       `gorm:"foreignKey:AuthorID" json:"author"`
	Tags          StringList `gorm:"type:text" json:"tags"`
	IsPublished   bool       `json:"isPublished"`
	ViewCount     int        `json:"viewCount"`
	FeaturedImage string     `json:"featuredImage"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Comment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ArticleID  uint      `gorm:"not null;index" json:"articleId"`
	ParentID   *uint     `gorm:"index" json:"parentCommentId,omitempty"`
	AuthorID   *uint     `gorm:"index" json:"-"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Anonymous  bool      `json:"anonymous,omitempty"`
	IsApproved bool      `json:"isApproved"`
	Replies    []Comment `gorm:"-" json:"replies,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AnonymousAuthor returns the fixed display identity for comments posted
// without authentication.
func AnonymousAuthor() *User {
	return &User{Username: AnonymousUsername, Email: AnonymousEmail, Role: RoleUser}
}
