package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"blogapi/models"
)

func setupTestDB(t *testing.T) *DBStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.User{}, &models.Article{}, &models.Comment{})
	return NewDBStore(db)
}

func createDBUser(t *testing.T, s *DBStore, username, email string) *models.User {
	u := &models.User{Username: username, Email: email, PasswordHash: "hashedpassword", Role: models.RoleUser}
	assert.NoError(t, s.CreateUser(u))
	return u
}

func TestDBStore_CreateUserDuplicate(t *testing.T) {
	s := setupTestDB(t)
	createDBUser(t, s, "alice", "a@x.com")

	sameEmail := &models.User{Username: "other", Email: "a@x.com", PasswordHash: "h", Role: models.RoleUser}
	assert.ErrorIs(t, s.CreateUser(sameEmail), ErrDuplicate)

	sameName := &models.User{Username: "alice", Email: "c@x.com", PasswordHash: "h", Role: models.RoleUser}
	assert.ErrorIs(t, s.CreateUser(sameName), ErrDuplicate)
}

func TestDBStore_UserLookups(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	byEmail, err := s.UserByEmail("a@x.com")
	assert.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := s.UserByID(u.ID)
	assert.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = s.UserByEmail("nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBStore_ArticleCRUD(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	article := &models.Article{
		Title:       "Hi",
		Content:     "Body",
		AuthorID:    u.ID,
		Tags:        models.StringList{"go", "testing"},
		IsPublished: true,
	}
	assert.NoError(t, s.CreateArticle(article))
	assert.Equal(t, "alice", article.Author.Username)

	got, err := s.ArticleByID(article.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Hi", got.Title)
	assert.Equal(t, models.StringList{"go", "testing"}, got.Tags)
	assert.Equal(t, "alice", got.Author.Username)

	got.Title = "Hello"
	assert.NoError(t, s.UpdateArticle(got))

	got, err = s.ArticleByID(article.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)

	assert.NoError(t, s.DeleteArticle(article.ID))
	_, err = s.ArticleByID(article.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteArticle(article.ID), ErrNotFound)
}

func TestDBStore_ListArticles(t *testing.T) {
	s := setupTestDB(t)
	alice := createDBUser(t, s, "alice", "a@x.com")
	bob := createDBUser(t, s, "bob", "b@x.com")

	for i := 0; i < 12; i++ {
		a := &models.Article{Title: "post", Content: "body", AuthorID: alice.ID, IsPublished: true}
		assert.NoError(t, s.CreateArticle(a))
	}
	draft := &models.Article{Title: "draft", Content: "body", AuthorID: bob.ID, IsPublished: false}
	assert.NoError(t, s.CreateArticle(draft))

	published, total, err := s.ListArticles(ListOptions{Page: 1, Limit: 10, PublishedOnly: true})
	assert.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, published, 10)

	page2, _, err := s.ListArticles(ListOptions{Page: 2, Limit: 10, PublishedOnly: true})
	assert.NoError(t, err)
	assert.Len(t, page2, 2)

	all, total, err := s.ListArticles(ListOptions{Page: 1, Limit: 20})
	assert.NoError(t, err)
	assert.Equal(t, 13, total)
	assert.Len(t, all, 13)

	bobs, total, err := s.ListArticles(ListOptions{Page: 1, Limit: 10, AuthorID: bob.ID})
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "draft", bobs[0].Title)
}

func TestDBStore_IncrementViewCount(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	article := &models.Article{Title: "Hi", Content: "Body", AuthorID: u.ID, IsPublished: true}
	assert.NoError(t, s.CreateArticle(article))

	assert.NoError(t, s.IncrementViewCount(article.ID))
	assert.NoError(t, s.IncrementViewCount(article.ID))

	got, err := s.ArticleByID(article.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)

	assert.ErrorIs(t, s.IncrementViewCount(9999), ErrNotFound)
}

func TestDBStore_CommentThreading(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	article := &models.Article{Title: "Hi", Content: "Body", AuthorID: u.ID, IsPublished: true}
	assert.NoError(t, s.CreateArticle(article))

	parent := &models.Comment{Content: "parent", ArticleID: article.ID, AuthorID: &u.ID, IsApproved: true}
	assert.NoError(t, s.CreateComment(parent))
	assert.Equal(t, "alice", parent.Author.Username)

	reply := &models.Comment{Content: "reply", ArticleID: article.ID, ParentID: &parent.ID, Anonymous: true, IsApproved: true}
	assert.NoError(t, s.CreateComment(reply))
	assert.Equal(t, models.AnonymousUsername, reply.Author.Username)

	comments, total, err := s.ListComments(article.ID, 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, comments, 1)
	assert.Len(t, comments[0].Replies, 1)
	assert.Equal(t, models.AnonymousUsername, comments[0].Replies[0].Author.Username)
}

func TestDBStore_DeleteCommentCascades(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	article := &models.Article{Title: "Hi", Content: "Body", AuthorID: u.ID, IsPublished: true}
	assert.NoError(t, s.CreateArticle(article))

	parent := &models.Comment{Content: "parent", ArticleID: article.ID, AuthorID: &u.ID, IsApproved: true}
	assert.NoError(t, s.CreateComment(parent))
	reply := &models.Comment{Content: "reply", ArticleID: article.ID, ParentID: &parent.ID, AuthorID: &u.ID, IsApproved: true}
	assert.NoError(t, s.CreateComment(reply))

	// deleting a reply keeps the parent
	assert.NoError(t, s.DeleteComment(reply.ID))
	_, err := s.CommentByID(parent.ID)
	assert.NoError(t, err)

	reply2 := &models.Comment{Content: "reply2", ArticleID: article.ID, ParentID: &parent.ID, AuthorID: &u.ID, IsApproved: true}
	assert.NoError(t, s.CreateComment(reply2))

	// deleting the parent removes the reply as well
	assert.NoError(t, s.DeleteComment(parent.ID))
	_, err = s.CommentByID(reply2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBStore_SetCommentApproved(t *testing.T) {
	s := setupTestDB(t)
	u := createDBUser(t, s, "alice", "a@x.com")

	article := &models.Article{Title: "Hi", Content: "Body", AuthorID: u.ID, IsPublished: true}
	assert.NoError(t, s.CreateArticle(article))

	comment := &models.Comment{Content: "hi", ArticleID: article.ID, AuthorID: &u.ID, IsApproved: true}
	assert.NoError(t, s.CreateComment(comment))

	updated, err := s.SetCommentApproved(comment.ID, false)
	assert.NoError(t, err)
	assert.False(t, updated.IsApproved)

	_, total, err := s.ListComments(article.ID, 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDBStore_TranslateDuplicatedKey(t *testing.T) {
	s := setupTestDB(t)
	assert.ErrorIs(t, s.translate(gorm.ErrDuplicatedKey), ErrDuplicate)
}

func TestDBStore_UnavailableAfterConnectionLoss(t *testing.T) {
	s := setupTestDB(t)
	createDBUser(t, s, "alice", "a@x.com")

	sqlDB, err := s.db.DB()
	assert.NoError(t, err)
	assert.NoError(t, sqlDB.Close())

	_, err = s.UserByID(1)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = s.ListArticles(ListOptions{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 10, 25)
	assert.Equal(t, 1, p.Current)
	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, 25, p.Total)

	p = NewPagination(2, 10, 20)
	assert.Equal(t, 2, p.Pages)

	p = NewPagination(1, 10, 0)
	assert.Equal(t, 0, p.Pages)
}
