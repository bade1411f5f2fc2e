package internal

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionIDField = "sid"
	sessionKey     = "session"
)

func SetSessionID(c *gin.Context, id string) error {
	session := sessions.Default(c)
	session.Set(SessionIDField, id)
	return session.Save()
}

func ClearSessionID(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(SessionIDField)
	return session.Save()
}

func SessionID(c *gin.Context) string {
	session := sessions.Default(c)
	id, _ := session.Get(SessionIDField).(string)
	return id
}

// CurrentSession returns the session context loaded by RequireSession.
func CurrentSession(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}
