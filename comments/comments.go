package comments

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"blogapi/auth"
	"blogapi/models"
	"blogapi/store"
)

// CommentsModule serves threaded comments: one level of replies, anonymous
// authorship, and an admin approval toggle.
type CommentsModule struct {
	selector *store.Selector
	mw       *auth.Middleware
}

func NewCommentsModule(selector *store.Selector, mw *auth.Middleware) *CommentsModule {
	return &CommentsModule{selector: selector, mw: mw}
}

func (m *CommentsModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/comments")
	{
		group.GET("/article/:articleId", m.mw.Optional, m.listForArticle)
		group.POST("", m.mw.Optional, m.create)
		group.PUT("/:id", m.mw.Required, m.update)
		group.DELETE("/:id", m.mw.Required, m.remove)
		group.PATCH("/:id/approve", m.mw.Required, m.mw.AdminOnly, m.approve)
	}
}

func (m *CommentsModule) pick(c *gin.Context) (store.Store, bool) {
	if auth.IsDemoUser(c) {
		return m.selector.Demo(), true
	}
	return m.selector.Current()
}

func commentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid comment id"})
		return 0, false
	}
	return uint(id), true
}

func serverError(c *gin.Context, what string, err error) {
	log.Printf("%s: %v", what, err)
	if errors.Is(err, store.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "service temporarily unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "a server error occurred"})
}

// visibleArticle loads an article and applies the same visibility rule as the
// article detail endpoint. Returns false after writing the response.
func (m *CommentsModule) visibleArticle(c *gin.Context, st store.Store, articleID uint) bool {
	article, err := st.ArticleByID(articleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "article not found"})
		} else {
			serverError(c, "article fetch error", err)
		}
		return false
	}
	if !article.IsPublished && !auth.CurrentUser(c).IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"message": "this article is not published"})
		return false
	}
	return true
}

func (m *CommentsModule) listForArticle(c *gin.Context) {
	articleID, err := strconv.ParseUint(c.Param("articleId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid article id"})
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = 20
	}

	st, demo := m.pick(c)
	if !m.visibleArticle(c, st, uint(articleID)) {
		return
	}

	comments, total, err := st.ListComments(uint(articleID), page, limit)
	if err != nil && !demo && m.selector.ShouldFallback(err) {
		st, demo = m.selector.Demo(), true
		comments, total, err = st.ListComments(uint(articleID), page, limit)
	}
	if err != nil {
		serverError(c, "comment listing error", err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	resp := gin.H{
		"comments":   comments,
		"pagination": store.NewPagination(page, limit, total),
	}
	if demo {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (m *CommentsModule) create(c *gin.Context) {
	var req struct {
		Content         string `json:"content"`
		ArticleID       uint   `json:"articleId"`
		ParentCommentID *uint  `json:"parentCommentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if req.Content == "" || req.ArticleID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "comment content and article id are required"})
		return
	}
	if utf8.RuneCountInString(req.Content) > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "comments must be 1000 characters or fewer"})
		return
	}

	st, demo := m.pick(c)
	if !m.visibleArticle(c, st, req.ArticleID) {
		return
	}

	parentID := req.ParentCommentID
	if parentID != nil {
		parent, err := st.CommentByID(*parentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"message": "parent comment not found"})
				return
			}
			serverError(c, "parent comment fetch error", err)
			return
		}
		// one level of nesting: a reply to a reply is grouped under the
		// original parent
		if parent.ParentID != nil {
			parentID = parent.ParentID
		}
	}

	comment := &models.Comment{
		Content:    req.Content,
		ArticleID:  req.ArticleID,
		ParentID:   parentID,
		IsApproved: true,
	}

	caller := auth.CurrentUser(c)
	if caller != nil {
		id := caller.ID
		comment.AuthorID = &id
		comment.Author = caller
	} else {
		comment.Anonymous = true
	}

	if err := st.CreateComment(comment); err != nil {
		serverError(c, "comment create error", err)
		return
	}

	resp := gin.H{"message": "comment posted", "comment": comment}
	if demo {
		resp["message"] = "comment posted (demo mode)"
		resp["demo"] = true
	}
	c.JSON(http.StatusCreated, resp)
}

// fetchOwned loads a comment and enforces the owner-or-admin gate. Anonymous
// comments have no nominal owner and can never be edited or deleted.
func (m *CommentsModule) fetchOwned(c *gin.Context, st store.Store, id uint, action string) *models.Comment {
	comment, err := st.CommentByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "comment not found"})
		} else {
			serverError(c, "comment fetch error", err)
		}
		return nil
	}

	if comment.Anonymous {
		c.JSON(http.StatusForbidden, gin.H{"message": "anonymous comments cannot be " + action})
		return nil
	}

	caller := auth.CurrentUser(c)
	owner := comment.AuthorID != nil && *comment.AuthorID == caller.ID
	if !owner && !caller.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"message": "you do not have permission to modify this comment"})
		return nil
	}
	return comment
}

func (m *CommentsModule) update(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}

	st, demo := m.pick(c)
	comment := m.fetchOwned(c, st, id, "edited")
	if comment == nil {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if req.Content == "" || utf8.RuneCountInString(req.Content) > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "comments must be between 1 and 1000 characters"})
		return
	}

	comment.Content = req.Content
	if err := st.UpdateComment(comment); err != nil {
		serverError(c, "comment update error", err)
		return
	}

	resp := gin.H{"message": "comment updated", "comment": comment}
	if demo {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (m *CommentsModule) remove(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}

	st, demo := m.pick(c)
	comment := m.fetchOwned(c, st, id, "deleted")
	if comment == nil {
		return
	}

	if err := st.DeleteComment(comment.ID); err != nil {
		serverError(c, "comment delete error", err)
		return
	}

	resp := gin.H{"message": "comment deleted"}
	if demo {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (m *CommentsModule) approve(c *gin.Context) {
	id, ok := commentID(c)
	if !ok {
		return
	}

	st, demo := m.pick(c)
	comment, err := st.CommentByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "comment not found"})
			return
		}
		serverError(c, "comment fetch error", err)
		return
	}

	comment, err = st.SetCommentApproved(id, !comment.IsApproved)
	if err != nil {
		serverError(c, "comment approve error", err)
		return
	}

	message := "comment unapproved"
	if comment.IsApproved {
		message = "comment approved"
	}
	resp := gin.H{"message": message, "comment": comment}
	if demo {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}
