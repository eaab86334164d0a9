package accounts

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"blogapi/auth"
	"blogapi/models"
	"blogapi/store"
)

// AccountsModule serves registration, login and the current-user endpoint.
type AccountsModule struct {
	selector *store.Selector
	tokens   *auth.Tokens
	mw       *auth.Middleware
}

func NewAccountsModule(selector *store.Selector, tokens *auth.Tokens, mw *auth.Middleware) *AccountsModule {
	return &AccountsModule{selector: selector, tokens: tokens, mw: mw}
}

func (a *AccountsModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/auth")
	{
		group.POST("/register", a.register)
		group.POST("/login", a.login)
		group.GET("/me", a.mw.Required, a.me)
	}
}

var emailRe = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

func serverError(c *gin.Context, what string, err error) {
	log.Printf("%s: %v", what, err)
	if errors.Is(err, store.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "service temporarily unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "a server error occurred"})
}

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

func (a *AccountsModule) register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "all fields are required"})
		return
	}
	if n := utf8.RuneCountInString(req.Username); n < 3 || n > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username must be between 3 and 30 characters"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "please enter a valid email address"})
		return
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "password must be at least 6 characters"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("registration error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "a server error occurred"})
		return
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}

	st, demo := a.selector.Current()
	err = st.CreateUser(user)
	if err != nil && !demo && a.selector.ShouldFallback(err) {
		st, demo = a.selector.Demo(), true
		err = st.CreateUser(user)
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "this email address or username is already in use"})
			return
		}
		serverError(c, "registration error", err)
		return
	}

	token, err := a.tokens.Issue(user.ID, demo)
	if err != nil {
		log.Printf("token issue error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "a server error occurred"})
		return
	}

	resp := gin.H{
		"message": "registration complete",
		"token":   token,
		"user":    userJSON(user),
	}
	if demo {
		resp["message"] = "registration complete (demo mode)"
		resp["demo"] = true
	}
	c.JSON(http.StatusCreated, resp)
}

func (a *AccountsModule) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	st, demo := a.selector.Current()
	user, err := st.UserByEmail(email)
	if err != nil && !demo && a.selector.ShouldFallback(err) {
		st, demo = a.selector.Demo(), true
		user, err = st.UserByEmail(email)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "email or password is incorrect"})
			return
		}
		serverError(c, "login error", err)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "email or password is incorrect"})
		return
	}

	token, err := a.tokens.Issue(user.ID, demo)
	if err != nil {
		log.Printf("token issue error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "a server error occurred"})
		return
	}

	resp := gin.H{
		"message": "login successful",
		"token":   token,
		"user":    userJSON(user),
	}
	if demo {
		resp["message"] = "login successful (demo mode)"
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (a *AccountsModule) me(c *gin.Context) {
	user := auth.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user)})
}
