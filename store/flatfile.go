package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"blogapi/models"
)

const (
	usersFile    = "users.json"
	articlesFile = "articles.json"

	demoUsername = "demouser"
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
)

// fileUser is the on-disk user record. It is distinct from models.User so the
// password hash is written out (the model hides it from JSON on purpose).
type fileUser struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (f fileUser) toModel() *models.User {
	return &models.User{
		ID:           f.ID,
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: f.Password,
		Role:         f.Role,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func fromModelUser(u *models.User) fileUser {
	return fileUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// FlatStore serves the same API as the primary store from two JSON documents
// on local disk. Every mutation is a full-document read-modify-write with
// last-writer-wins semantics; concurrent writers can drop updates. Demo
// comments live in an in-memory buffer owned by this instance and vanish on
// restart.
type FlatStore struct {
	dir string

	initOnce sync.Once
	initErr  error

	commentMu     sync.Mutex
	comments      []models.Comment
	nextCommentID uint
}

func NewFlatStore(dir string) *FlatStore {
	return &FlatStore{dir: dir, nextCommentID: 1}
}

// init lazily creates the data directory and seeds the default demo user and
// two sample articles.
func (s *FlatStore) init() error {
	s.initOnce.Do(func() {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			s.initErr = err
			return
		}
		log.Println("initialized demo data directory:", s.dir)

		users, err := s.readUsers()
		if err != nil {
			s.initErr = err
			return
		}
		seeded := false
		for _, u := range users {
			if u.Email == demoEmail {
				seeded = true
				break
			}
		}
		if !seeded {
			hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), 10)
			if err != nil {
				s.initErr = err
				return
			}
			users = append(users, fileUser{
				ID:        nextUserID(users),
				Username:  demoUsername,
				Email:     demoEmail,
				Password:  string(hash),
				Role:      models.RoleUser,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			})
			if err := s.writeUsers(users); err != nil {
				s.initErr = err
				return
			}
			log.Println("created default demo user")
		}

		articles, err := s.readArticles()
		if err != nil {
			s.initErr = err
			return
		}
		if len(articles) == 0 {
			if err := s.writeArticles(sampleArticles()); err != nil {
				s.initErr = err
				return
			}
			log.Println("seeded sample demo articles")
		}
	})
	return s.initErr
}

func sampleArticles() []models.Article {
	admin := models.User{Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin}
	now := time.Now()
	return []models.Article{
		{
			ID:          1,
			Title:       "Welcome to the blog",
			Content:     "This is a sample article. The primary database is not running, so you are looking at the flat-file demo store.\n\nThe blog supports:\n- user registration and login\n- writing and editing articles\n- threaded comments",
			Author:      admin,
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          2,
			Title:       "Getting started guide",
			Content:     "1. Register an account\n2. Log in and post an article\n3. Comment on other users' articles",
			Author:      admin,
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// readUsers loads the user document. A missing file is an empty collection,
// not an error.
func (s *FlatStore) readUsers() ([]fileUser, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, usersFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var users []fileUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *FlatStore) writeUsers(users []fileUser) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, usersFile), data, 0644)
}

func (s *FlatStore) readArticles() ([]models.Article, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, articlesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *FlatStore) writeArticles(articles []models.Article) error {
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, articlesFile), data, 0644)
}

func nextUserID(users []fileUser) uint {
	var max uint
	for _, u := range users {
		if u.ID > max {
			max = u.ID
		}
	}
	return max + 1
}

func nextArticleID(articles []models.Article) uint {
	var max uint
	for _, a := range articles {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

func (s *FlatStore) CreateUser(u *models.User) error {
	if err := s.init(); err != nil {
		return err
	}
	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	u.ID = nextUserID(users)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = u.CreatedAt
	users = append(users, fromModelUser(u))
	return s.writeUsers(users)
}

func (s *FlatStore) UserByEmail(email string) (*models.User, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u.toModel(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *FlatStore) UserByID(id uint) (*models.User, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u.toModel(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *FlatStore) CreateArticle(a *models.Article) error {
	if err := s.init(); err != nil {
		return err
	}
	articles, err := s.readArticles()
	if err != nil {
		return err
	}
	a.ID = nextArticleID(articles)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt
	articles = append(articles, *a)
	return s.writeArticles(articles)
}

func (s *FlatStore) ArticleByID(id uint) (*models.Article, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	articles, err := s.readArticles()
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].ID == id {
			article := articles[i]
			return &article, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FlatStore) UpdateArticle(a *models.Article) error {
	if err := s.init(); err != nil {
		return err
	}
	articles, err := s.readArticles()
	if err != nil {
		return err
	}
	for i := range articles {
		if articles[i].ID == a.ID {
			a.UpdatedAt = time.Now()
			articles[i] = *a
			return s.writeArticles(articles)
		}
	}
	return ErrNotFound
}

func (s *FlatStore) DeleteArticle(id uint) error {
	if err := s.init(); err != nil {
		return err
	}
	articles, err := s.readArticles()
	if err != nil {
		return err
	}
	filtered := articles[:0]
	for _, a := range articles {
		if a.ID != id {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == len(articles) {
		return ErrNotFound
	}
	return s.writeArticles(filtered)
}

func (s *FlatStore) ListArticles(opts ListOptions) ([]models.Article, int, error) {
	if err := s.init(); err != nil {
		return nil, 0, err
	}
	articles, err := s.readArticles()
	if err != nil {
		return nil, 0, err
	}

	// every query is a full in-memory scan
	matched := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if opts.PublishedOnly && !a.IsPublished {
			continue
		}
		if opts.AuthorID != 0 && a.Author.ID != opts.AuthorID {
			continue
		}
		matched = append(matched, a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	_, limit, offset := opts.Clamp(10)
	if offset >= total {
		return []models.Article{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *FlatStore) IncrementViewCount(id uint) error {
	if err := s.init(); err != nil {
		return err
	}
	articles, err := s.readArticles()
	if err != nil {
		return err
	}
	for i := range articles {
		if articles[i].ID == id {
			articles[i].ViewCount++
			return s.writeArticles(articles)
		}
	}
	return ErrNotFound
}

func (s *FlatStore) CreateComment(c *models.Comment) error {
	if err := s.init(); err != nil {
		return err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	c.ID = s.nextCommentID
	s.nextCommentID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt
	decorateComment(c)
	s.comments = append(s.comments, *c)
	return nil
}

func (s *FlatStore) CommentByID(id uint) (*models.Comment, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	for i := range s.comments {
		if s.comments[i].ID == id {
			comment := s.comments[i]
			return &comment, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FlatStore) UpdateComment(c *models.Comment) error {
	if err := s.init(); err != nil {
		return err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	for i := range s.comments {
		if s.comments[i].ID == c.ID {
			c.UpdatedAt = time.Now()
			s.comments[i] = *c
			return nil
		}
	}
	return ErrNotFound
}

func (s *FlatStore) DeleteComment(id uint) error {
	if err := s.init(); err != nil {
		return err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	found := false
	kept := s.comments[:0]
	for _, c := range s.comments {
		if c.ID == id {
			found = true
			continue
		}
		if c.ParentID != nil && *c.ParentID == id {
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return ErrNotFound
	}
	s.comments = kept
	return nil
}

func (s *FlatStore) ListComments(articleID uint, page, limit int) ([]models.Comment, int, error) {
	if err := s.init(); err != nil {
		return nil, 0, err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	var top []models.Comment
	for _, c := range s.comments {
		if c.ArticleID == articleID && c.ParentID == nil && c.IsApproved {
			top = append(top, c)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].CreatedAt.After(top[j].CreatedAt)
	})

	for i := range top {
		for _, c := range s.comments {
			if c.ParentID != nil && *c.ParentID == top[i].ID && c.IsApproved {
				top[i].Replies = append(top[i].Replies, c)
			}
		}
	}

	total := len(top)
	opts := ListOptions{Page: page, Limit: limit}
	_, limit, offset := opts.Clamp(20)
	if offset >= total {
		return []models.Comment{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return top[offset:end], total, nil
}

func (s *FlatStore) SetCommentApproved(id uint, approved bool) (*models.Comment, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.commentMu.Lock()
	defer s.commentMu.Unlock()

	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments[i].IsApproved = approved
			comment := s.comments[i]
			return &comment, nil
		}
	}
	return nil, ErrNotFound
}
