package internal

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const CookieSessionsName = "portrait"

var ErrNoModel = errors.New("no personalized model yet")

func BuildRouter(app *App) *gin.Engine {
	router := gin.New()

	store := cookie.NewStore([]byte(app.Config.CookieSecret))

	router.SetHTMLTemplate(app.Templates)
	router.Use(gin.Logger())
	router.Use(sessions.Sessions(CookieSessionsName, store))
	router.Use(gin.Recovery())

	router.GET("/signin", app.SignIn)
	router.POST("/submit_signin", app.SubmitSignIn)

	authorized := router.Group("/")
	authorized.Use(app.RequireSession)
	authorized.GET("/", app.Home)
	authorized.POST("/signout", app.SignOut)
	authorized.POST("/user/refresh", app.RefreshUser)

	studio := authorized.Group("/")
	studio.Use(RequireExhibits)
	studio.POST("/upload", app.Upload)
	studio.POST("/upload/complete", app.UploadComplete)
	studio.GET("/caption/ws", app.CaptionUpdates)
	studio.POST("/prompt", app.UpdatePrompt)
	studio.POST("/generate", app.Generate)

	return router
}

func (a *App) RequireSession(c *gin.Context) {
	session, ok := a.Sessions.Get(SessionID(c))
	if !ok {
		c.Header("hx-redirect", "/signin")
		c.Redirect(http.StatusSeeOther, "/signin")
		c.Abort()
		return
	}
	c.Set(sessionKey, session)
	c.Next()
}

func RequireExhibits(c *gin.Context) {
	user := CurrentSession(c).User()
	if !user.HasExhibits() {
		AbortWithHTML(c, http.StatusForbidden, ErrNoModel)
		return
	}
	c.Next()
}
