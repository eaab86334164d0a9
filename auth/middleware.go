package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"blogapi/models"
	"blogapi/store"
)

const (
	userKey = "user"
	demoKey = "isDemoUser"
)

// Middleware resolves bearer tokens to users through the mode selector.
type Middleware struct {
	tokens   *Tokens
	selector *store.Selector
}

func NewMiddleware(tokens *Tokens, selector *store.Selector) *Middleware {
	return &Middleware{tokens: tokens, selector: selector}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// lookup resolves a token string to a user. Demo-marked tokens resolve only
// against the flat-file store, unmarked tokens only against the primary; each
// kind is a "no match" for the other.
func (m *Middleware) lookup(tokenString string) (*models.User, bool, error) {
	claims, err := m.tokens.Parse(tokenString)
	if err != nil {
		return nil, false, err
	}

	if claims.Demo {
		user, err := m.selector.Demo().UserByID(claims.UserID)
		if err != nil {
			return nil, false, err
		}
		return user, true, nil
	}

	st, demo := m.selector.Current()
	if demo {
		return nil, false, errors.New("primary store unavailable for token verification")
	}
	user, err := st.UserByID(claims.UserID)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

// Required rejects the request unless a valid bearer token resolves to a user.
func (m *Middleware) Required(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "access token required"})
		return
	}

	user, demo, err := m.lookup(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	c.Set(userKey, user)
	c.Set(demoKey, demo)
	c.Next()
}

// Optional attaches the user when a valid token is present and silently
// continues otherwise.
func (m *Middleware) Optional(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString != "" {
		if user, demo, err := m.lookup(tokenString); err == nil {
			c.Set(userKey, user)
			c.Set(demoKey, demo)
		}
	}
	c.Next()
}

// AdminOnly must run after Required.
func (m *Middleware) AdminOnly(c *gin.Context) {
	if !CurrentUser(c).IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin privileges required"})
		return
	}
	c.Next()
}

// CurrentUser returns the authenticated user, or nil on unauthenticated
// requests.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// IsDemoUser reports whether the authenticated user came from the flat-file
// store.
func IsDemoUser(c *gin.Context) bool {
	return c.GetBool(demoKey)
}
