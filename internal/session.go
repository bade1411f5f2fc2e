package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	CaptionNetworkMessage = "Failed to reach the captioning service"
	CaptionTimeoutMessage = "Timed out waiting for the image description"
	CaptionFailedMessage  = "Captioning failed"
)

var (
	ErrNoCaption     = errors.New("no caption to build a prompt from")
	ErrSessionClosed = errors.New("session closed")
)

// Session is the state of one signed-in user: the user record, the current
// upload and its caption job, the editable prompt and the last generation
// outcome. It lives from sign in until sign out or idle expiry.
type Session struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc
	poller *CaptionPoller

	mu                sync.Mutex
	closed            bool
	user              User
	upload            *UploadedImage
	job               *CaptionJob
	caption           string
	prompt            string
	captionError      string
	generating        bool
	generationMessage string
	generationError   string
	stopCaption       context.CancelFunc
	captionDone       chan struct{}
	subscribers       map[chan struct{}]struct{}
}

func NewSession(id string, user *User, poller *CaptionPoller) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	return &Session{
		ID:          id,
		ctx:         ctx,
		cancel:      cancel,
		poller:      poller,
		user:        *user,
		captionDone: done,
		subscribers: make(map[chan struct{}]struct{}),
	}
}

func (s *Session) User() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) SetUser(user *User) {
	s.mu.Lock()
	s.user = *user
	s.mu.Unlock()

	s.notify()
}

// StartCaption tracks a new upload and starts polling its caption. A caption
// task already running for an earlier upload is cancelled.
func (s *Session) StartCaption(fileURL string) (*UploadedImage, error) {
	upload := &UploadedImage{ID: uuid.NewString(), FileURL: fileURL}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.stopCaption != nil {
		s.stopCaption()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.stopCaption = cancel
	s.captionDone = done
	s.upload = upload
	s.job = nil
	s.caption = ""
	s.prompt = ""
	s.captionError = ""
	s.mu.Unlock()

	s.notify()

	slog.Info("Starting caption", slog.String("session", s.ID), slog.String("upload", upload.ID), slog.String("url", fileURL))

	go func() {
		defer close(done)
		defer cancel()

		job, err := s.poller.Run(ctx, fileURL, func(job *CaptionJob) {
			s.applyJob(upload.ID, job)
		})
		s.finishCaption(upload.ID, job, err)
	}()

	return upload, nil
}

// CaptionDone is closed once the current caption task has stopped.
func (s *Session) CaptionDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captionDone
}

func (s *Session) applyJob(uploadID string, job *CaptionJob) {
	s.mu.Lock()
	if !s.isCurrent(uploadID) {
		s.mu.Unlock()
		return
	}
	s.job = job
	s.mu.Unlock()

	s.notify()
}

func (s *Session) finishCaption(uploadID string, job *CaptionJob, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	s.mu.Lock()
	if !s.isCurrent(uploadID) {
		s.mu.Unlock()
		return
	}

	var remoteErr *RemoteError
	switch {
	case err == nil:
		if job.Status == CaptionStatusSucceeded {
			s.caption = job.OutputText()
			s.prompt = s.caption
		}
	case errors.As(err, &remoteErr):
		s.captionError = remoteErr.Detail
	case errors.Is(err, ErrCaptionTimeout):
		s.captionError = CaptionTimeoutMessage
	default:
		s.captionError = CaptionNetworkMessage
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("Caption failed", slog.String("session", s.ID), slog.String("upload", uploadID), slog.String("error", err.Error()))
	}

	s.notify()
}

func (s *Session) isCurrent(uploadID string) bool {
	return !s.closed && s.upload != nil && s.upload.ID == uploadID
}

func (s *Session) SetPrompt(prompt string) error {
	s.mu.Lock()
	if s.caption == "" {
		s.mu.Unlock()
		return ErrNoCaption
	}
	s.prompt = prompt
	s.mu.Unlock()

	s.notify()
	return nil
}

// Generate submits the current prompt. Only the fixed success or failure
// message is kept; the submitted job is not tracked. The returned error is
// ErrSessionClosed or ErrNoCaption, never a submission failure.
func (s *Session) Generate(ctx context.Context, submitter GenerationSubmitter, config GenerationConfig) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.caption == "" {
		s.mu.Unlock()
		return ErrNoCaption
	}
	prompt := s.prompt
	s.generating = true
	s.generationMessage = ""
	s.generationError = ""
	s.mu.Unlock()

	s.notify()

	err := submitter.Submit(ctx, NewGenerationRequest(config, prompt))

	s.mu.Lock()
	s.generating = false
	if err != nil {
		s.generationError = GenerationErrorMessage
	} else {
		s.generationMessage = GenerationSubmittedMessage
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("Generation submit failed", slog.String("session", s.ID), slog.String("error", err.Error()))
	}

	s.notify()
	return nil
}

// Subscribe returns a channel signalled after every state change. Signals are
// coalesced; readers should take a fresh View on each one.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subscribers[ch] = struct{}{}
	}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close tears the session down: the caption task is cancelled and every
// subscriber channel is closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()

	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}

	slog.Info("Session closed", slog.String("session", s.ID))
}
