package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	wsWriteTimeout = 10 * time.Second
	httpTimeout    = 30 * time.Second
)

type App struct {
	Config    *AppConfig
	Users     UserProvider
	Sessions  *Sessions
	Uploader  Uploader
	Submitter GenerationSubmitter
	Upgrader  *websocket.Upgrader
	Templates *template.Template

	closers []func()
}

// AppOptions carries the collaborators of an App. Nil collaborators are
// built from Config.
type AppOptions struct {
	Config     *AppConfig
	Users      UserProvider
	Captions   CaptionService
	Uploader   Uploader
	Submitter  GenerationSubmitter
	HTTPClient *http.Client
}

func NewApp(c *AppConfig) (*App, error) {
	return NewAppWithOptions(AppOptions{Config: c})
}

func NewAppWithOptions(opts AppOptions) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is nil")
	}
	c := opts.Config

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpTimeout}
	}

	app := &App{
		Config:   c,
		Upgrader: &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	templates, err := template.ParseGlob(c.TemplateGLOB)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	app.Templates = templates

	app.Users = opts.Users
	if app.Users == nil {
		dbpool, err := pgxpool.New(context.Background(), c.Postgres.ConnectionUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		app.closers = append(app.closers, dbpool.Close)
		app.Users = NewPostgresUsers(dbpool)
	}

	captions := opts.Captions
	if captions == nil {
		captions = NewCaptionClient(c.Caption, httpClient)
	}
	app.Sessions = NewSessions(c.Session, NewCaptionPoller(captions, c.Caption))
	app.closers = append(app.closers, app.Sessions.Purge)

	app.Uploader = opts.Uploader
	if app.Uploader == nil {
		app.Uploader = NewHTTPUploader(c.Upload, httpClient)
	}

	app.Submitter = opts.Submitter
	if app.Submitter == nil {
		if c.Generation.Queued {
			producer, err := NewProducer(c.Kafka)
			if err != nil {
				app.Close()
				return nil, fmt.Errorf("failed to create producer: %w", err)
			}
			app.closers = append(app.closers, func() { producer.Close() })
			app.Submitter = producer
		} else {
			app.Submitter = NewGenerationClient(c.Generation, httpClient)
		}
	}

	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", CurrentSession(c).View())
}

func (a *App) SignIn(c *gin.Context) {
	if _, ok := a.Sessions.Get(SessionID(c)); ok {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "sign_in.html", nil)
}

func (a *App) SubmitSignIn(c *gin.Context) {
	login := c.Request.PostFormValue("login")
	password := c.Request.PostFormValue("password")

	user, err := a.Users.Authenticate(c, login, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			AbortWithHTML(c, http.StatusUnauthorized, err)
		} else {
			AbortWithInternalError(c, err)
		}
		return
	}

	if previous := SessionID(c); previous != "" {
		a.Sessions.Close(previous)
	}
	session := a.Sessions.Open(user)

	if err := SetSessionID(c, session.ID); err != nil {
		a.Sessions.Close(session.ID)
		AbortWithInternalError(c, err)
		return
	}

	slog.Info("Signed in", slog.String("user", user.Username), slog.String("session", session.ID))

	c.Status(http.StatusOK)
	c.Header("hx-redirect", "/")
}

func (a *App) SignOut(c *gin.Context) {
	a.Sessions.Close(CurrentSession(c).ID)

	if err := ClearSessionID(c); err != nil {
		AbortWithInternalError(c, err)
		return
	}

	c.Status(http.StatusOK)
	c.Header("hx-redirect", "/signin")
}

// RefreshUser re-reads the user record, picking up new balance and images.
func (a *App) RefreshUser(c *gin.Context) {
	session := CurrentSession(c)

	user, err := a.Users.Lookup(c, session.User().Username)
	if err != nil {
		AbortWithInternalError(c, err)
		return
	}
	session.SetUser(user)

	c.HTML(http.StatusOK, "gallery.html", session.View())
}

func (a *App) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithHTML(c, http.StatusBadRequest, ErrEmptyUpload)
		return
	}
	if a.Config.Upload.MaxBytes > 0 && header.Size > a.Config.Upload.MaxBytes {
		AbortWithHTML(c, http.StatusRequestEntityTooLarge, fmt.Errorf("file is larger than %d bytes", a.Config.Upload.MaxBytes))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithInternalError(c, err)
		return
	}
	defer file.Close()

	stored, err := a.Uploader.Upload(c, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		slog.Error("Upload failed", slog.String("file", header.Filename), slog.String("error", err.Error()))
		AbortWithHTML(c, http.StatusBadGateway, errors.New("failed to upload file"))
		return
	}

	a.startCaption(c, stored)
}

// UploadComplete accepts the file descriptors reported by a client-side
// upload widget. Only the first file is captioned.
func (a *App) UploadComplete(c *gin.Context) {
	var files []FileDescriptor
	if err := c.ShouldBindJSON(&files); err != nil {
		AbortWithHTML(c, http.StatusBadRequest, fmt.Errorf("bad json"))
		return
	}
	if len(files) == 0 || files[0].FileURL == "" {
		AbortWithHTML(c, http.StatusBadRequest, ErrEmptyUpload)
		return
	}

	a.startCaption(c, &files[0])
}

func (a *App) startCaption(c *gin.Context, file *FileDescriptor) {
	session := CurrentSession(c)

	if _, err := session.StartCaption(file.FileURL); err != nil {
		AbortWithInternalError(c, err)
		return
	}

	c.HTML(http.StatusOK, "caption.html", session.View())
}

// UpdatePrompt stores the text typed into the prompt box. The page picks up
// the new display text from the websocket push.
func (a *App) UpdatePrompt(c *gin.Context) {
	session := CurrentSession(c)

	if err := session.SetPrompt(c.Request.PostFormValue("prompt")); err != nil {
		AbortWithHTML(c, http.StatusConflict, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *App) Generate(c *gin.Context) {
	session := CurrentSession(c)

	if prompt, ok := c.GetPostForm("prompt"); ok {
		if err := session.SetPrompt(prompt); err != nil {
			AbortWithHTML(c, http.StatusConflict, err)
			return
		}
	}

	if err := session.Generate(c, a.Submitter, a.Config.Generation); err != nil {
		AbortWithHTML(c, http.StatusConflict, err)
		return
	}

	c.HTML(http.StatusOK, "generation.html", session.View())
}

// CaptionUpdates pushes the rendered caption fragment over a websocket every
// time the session state changes.
func (a *App) CaptionUpdates(c *gin.Context) {
	session := CurrentSession(c)

	conn, err := a.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	changes, unsubscribe := session.Subscribe()
	defer unsubscribe()

	// The client never sends anything; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		template, err := a.RenderTemplate("caption.html", session.View())
		if err != nil {
			a.HandleWebsocketError("Failed to render template", conn, err)
			return
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, template); err != nil {
			slog.Error("Failed to write to ws", slog.String("error", err.Error()))
			return
		}

		select {
		case _, ok := <-changes:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (a *App) HandleWebsocketError(msg string, conn *websocket.Conn, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	template, _ := a.RenderTemplate("error.html", err.Error())

	conn.WriteMessage(websocket.TextMessage, template)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, msg))
}

func (a *App) RenderTemplate(name string, data any) ([]byte, error) {
	var buffer bytes.Buffer
	err := a.Templates.ExecuteTemplate(&buffer, name, data)
	return buffer.Bytes(), err
}

func AbortWithHTML(c *gin.Context, code int, err error) {
	c.Abort()
	c.Error(err)
	c.HTML(code, "error.html", err.Error())
}

func AbortWithInternalError(c *gin.Context, err error) {
	AbortWithHTML(c, http.StatusInternalServerError, err)
}
