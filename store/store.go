// Package store defines the persistence abstraction shared by the primary
// database and the flat-file demo store, and the selector that picks between
// them per request.
package store

import (
	"errors"

	"blogapi/models"
)

var (
	// ErrNotFound is returned when a record does not exist in the store
	// handling the call.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a username or email collides with an
	// existing record.
	ErrDuplicate = errors.New("store: duplicate identity")
	// ErrUnavailable marks a database connectivity failure. It is the only
	// error class that triggers the flat-file fallback path.
	ErrUnavailable = errors.New("store: primary store unavailable")
)

// ListOptions narrows and pages an article listing.
type ListOptions struct {
	Page          int
	Limit         int
	PublishedOnly bool
	AuthorID      uint // 0 = all authors
}

// Pagination is the paging envelope returned on every list response.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

// NewPagination computes the paging envelope for a total of total records.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Current: page, Pages: pages, Total: total}
}

// Clamp normalizes page/limit and returns the slice offset.
func (o ListOptions) Clamp(defaultLimit int) (page, limit, offset int) {
	page = o.Page
	if page < 1 {
		page = 1
	}
	limit = o.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

// Store is implemented by the primary database store and the flat-file demo
// store. Callers obtain the implementation for the current request from the
// Selector; they never branch on the backend themselves.
type Store interface {
	CreateUser(u *models.User) error
	UserByEmail(email string) (*models.User, error)
	UserByID(id uint) (*models.User, error)

	CreateArticle(a *models.Article) error
	ArticleByID(id uint) (*models.Article, error)
	UpdateArticle(a *models.Article) error
	DeleteArticle(id uint) error
	ListArticles(opts ListOptions) ([]models.Article, int, error)
	IncrementViewCount(id uint) error

	CreateComment(c *models.Comment) error
	CommentByID(id uint) (*models.Comment, error)
	UpdateComment(c *models.Comment) error
	DeleteComment(id uint) error
	ListComments(articleID uint, page, limit int) ([]models.Comment, int, error)
	SetCommentApproved(id uint, approved bool) (*models.Comment, error)
}
