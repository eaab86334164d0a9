package store

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"blogapi/models"
)

// DBStore is the primary, database-backed Store implementation.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Ping probes the live connection state of the underlying database.
func (s *DBStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// translate maps driver errors onto the store taxonomy so that callers never
// string-match a database driver's error classes. Errors without a typed
// class are probed: anything that fails while the connection is down counts
// as unavailable.
func (s *DBStore) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s.Ping() != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (s *DBStore) CreateUser(u *models.User) error {
	var existing models.User
	err := s.db.Where("username = ? OR email = ?", u.Username, u.Email).First(&existing).Error
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.translate(err)
	}
	return s.translate(s.db.Create(u).Error)
}

func (s *DBStore) UserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, s.translate(err)
	}
	return &user, nil
}

func (s *DBStore) UserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, s.translate(err)
	}
	return &user, nil
}

func (s *DBStore) CreateArticle(a *models.Article) error {
	if err := s.db.Omit("Author").Create(a).Error; err != nil {
		return s.translate(err)
	}
	return s.translate(s.db.First(&a.Author, a.AuthorID).Error)
}

func (s *DBStore) ArticleByID(id uint) (*models.Article, error) {
	var article models.Article
	if err := s.db.Preload("Author").First(&article, id).Error; err != nil {
		return nil, s.translate(err)
	}
	return &article, nil
}

func (s *DBStore) UpdateArticle(a *models.Article) error {
	return s.translate(s.db.Omit("Author").Save(a).Error)
}

func (s *DBStore) DeleteArticle(id uint) error {
	result := s.db.Delete(&models.Article{}, id)
	if result.Error != nil {
		return s.translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DBStore) ListArticles(opts ListOptions) ([]models.Article, int, error) {
	_, limit, offset := opts.Clamp(10)

	query := s.db.Model(&models.Article{})
	if opts.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if opts.AuthorID != 0 {
		query = query.Where("author_id = ?", opts.AuthorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, s.translate(err)
	}

	var articles []models.Article
	err := query.Preload("Author").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, 0, s.translate(err)
	}

	return articles, int(total), nil
}

func (s *DBStore) IncrementViewCount(id uint) error {
	result := s.db.Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return s.translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DBStore) CreateComment(c *models.Comment) error {
	author := c.Author
	c.Author = nil
	if err := s.db.Create(c).Error; err != nil {
		c.Author = author
		return s.translate(err)
	}
	c.Author = author
	if c.AuthorID != nil && c.Author == nil {
		var user models.User
		if err := s.db.First(&user, *c.AuthorID).Error; err == nil {
			c.Author = &user
		}
	}
	decorateComment(c)
	return nil
}

func (s *DBStore) CommentByID(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.Preload("Author").First(&comment, id).Error; err != nil {
		return nil, s.translate(err)
	}
	decorateComment(&comment)
	return &comment, nil
}

func (s *DBStore) UpdateComment(c *models.Comment) error {
	author := c.Author
	c.Author = nil
	err := s.db.Save(c).Error
	c.Author = author
	return s.translate(err)
}

// DeleteComment removes a comment together with its first-level replies.
// Deleting a reply never touches its parent.
func (s *DBStore) DeleteComment(id uint) error {
	if err := s.db.Where("parent_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
		return s.translate(err)
	}
	result := s.db.Delete(&models.Comment{}, id)
	if result.Error != nil {
		return s.translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DBStore) ListComments(articleID uint, page, limit int) ([]models.Comment, int, error) {
	opts := ListOptions{Page: page, Limit: limit}
	_, limit, offset := opts.Clamp(20)

	base := s.db.Model(&models.Comment{}).
		Where("article_id = ? AND parent_id IS NULL AND is_approved = ?", articleID, true)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, s.translate(err)
	}

	var comments []models.Comment
	err := s.db.Preload("Author").
		Where("article_id = ? AND parent_id IS NULL AND is_approved = ?", articleID, true).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, s.translate(err)
	}

	if len(comments) > 0 {
		ids := make([]uint, len(comments))
		byParent := make(map[uint]int, len(comments))
		for i := range comments {
			ids[i] = comments[i].ID
			byParent[comments[i].ID] = i
		}

		var replies []models.Comment
		err = s.db.Preload("Author").
			Where("parent_id IN ? AND is_approved = ?", ids, true).
			Order("created_at ASC").
			Find(&replies).Error
		if err != nil {
			return nil, 0, s.translate(err)
		}
		for i := range replies {
			decorateComment(&replies[i])
			if idx, ok := byParent[*replies[i].ParentID]; ok {
				comments[idx].Replies = append(comments[idx].Replies, replies[i])
			}
		}
	}

	for i := range comments {
		decorateComment(&comments[i])
	}

	return comments, int(total), nil
}

func (s *DBStore) SetCommentApproved(id uint, approved bool) (*models.Comment, error) {
	comment, err := s.CommentByID(id)
	if err != nil {
		return nil, err
	}
	comment.IsApproved = approved
	if err := s.UpdateComment(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// decorateComment fills in the fixed display author for anonymous comments.
func decorateComment(c *models.Comment) {
	if c.Anonymous && c.Author == nil {
		c.Author = models.AnonymousAuthor()
	}
}
