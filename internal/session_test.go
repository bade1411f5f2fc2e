package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var portraitUser = User{
	Username:    "alice",
	Balance:     42,
	Exhibits:    []string{"portrait"},
	TextToImage: []string{"https://cdn.example.com/generated/1.png"},
}

func newTestSession(service CaptionService) *Session {
	poller := NewCaptionPoller(service, CaptionConfig{PollInterval: testPollInterval, MaxAttempts: 50})
	user := portraitUser
	return NewSession("session-1", &user, poller)
}

func waitCaption(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.CaptionDone():
	case <-time.After(2 * time.Second):
		t.Fatal("caption task did not finish")
	}
}

func captionedSession(t *testing.T, caption string) *Session {
	t.Helper()
	service := newScriptedCaptions().script("car.png", succeededJob(caption))
	s := newTestSession(service)
	t.Cleanup(s.Close)

	_, err := s.StartCaption("car.png")
	require.NoError(t, err)
	waitCaption(t, s)
	return s
}

func TestSession_CaptionSucceeded(t *testing.T) {
	service := newScriptedCaptions().script("car.png", pendingJob(), pendingJob(), pendingJob(), succeededJob("a red car"))
	s := newTestSession(service)
	defer s.Close()

	upload, err := s.StartCaption("car.png")
	require.NoError(t, err)
	assert.NotEmpty(t, upload.ID)

	view := s.View()
	assert.Equal(t, "car.png", view.ImageURL)
	assert.Equal(t, LoadingText, view.Description)
	assert.False(t, view.ShowPrompt)

	waitCaption(t, s)

	view = s.View()
	assert.Equal(t, CaptionStatusSucceeded, view.CaptionStatus)
	assert.Equal(t, "a red car", view.Description)
	assert.True(t, view.ShowPrompt)
	assert.Equal(t, "a red car", view.PromptText)
	assert.Equal(t, "me a red car", view.PromptDisplay)
	assert.Empty(t, view.CaptionError)
	assert.Equal(t, 3, service.getCount("car.png"))

	time.Sleep(5 * testPollInterval)
	assert.Equal(t, 3, service.getCount("car.png"))
}

func TestSession_CaptionRejected(t *testing.T) {
	service := newScriptedCaptions().failCreate("bad.png", &RemoteError{StatusCode: 422, Detail: "bad image"})
	s := newTestSession(service)
	defer s.Close()

	_, err := s.StartCaption("bad.png")
	require.NoError(t, err)
	waitCaption(t, s)

	view := s.View()
	assert.Equal(t, "bad image", view.CaptionError)
	assert.False(t, view.ShowPrompt)
	assert.Zero(t, service.getCount("bad.png"))
}

func TestSession_CaptionFailedHasOwnBranch(t *testing.T) {
	failed := &CaptionJob{Status: CaptionStatusFailed, Detail: strPtr("no face found")}
	service := newScriptedCaptions().script("x.png", pendingJob(), failed)
	s := newTestSession(service)
	defer s.Close()

	_, err := s.StartCaption("x.png")
	require.NoError(t, err)
	waitCaption(t, s)

	view := s.View()
	assert.True(t, view.CaptionFailed)
	assert.Equal(t, "Captioning failed: no face found", view.Description)
	assert.False(t, view.ShowPrompt)
	assert.Empty(t, view.CaptionError)
}

func TestSession_CaptionNetworkFailure(t *testing.T) {
	service := newScriptedCaptions().failCreate("x.png", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"))
	s := newTestSession(service)
	defer s.Close()

	_, err := s.StartCaption("x.png")
	require.NoError(t, err)
	waitCaption(t, s)

	assert.Equal(t, CaptionNetworkMessage, s.View().CaptionError)
}

func TestSession_CaptionTimeout(t *testing.T) {
	service := newScriptedCaptions().script("slow.png", pendingJob())
	poller := NewCaptionPoller(service, CaptionConfig{PollInterval: testPollInterval, MaxAttempts: 3})
	user := portraitUser
	s := NewSession("session-1", &user, poller)
	defer s.Close()

	_, err := s.StartCaption("slow.png")
	require.NoError(t, err)
	waitCaption(t, s)

	assert.Equal(t, CaptionTimeoutMessage, s.View().CaptionError)
	assert.Equal(t, 3, service.getCount("slow.png"))
}

func TestSession_NewUploadCancelsPreviousCaption(t *testing.T) {
	service := newScriptedCaptions().
		script("first.png", pendingJob()).
		script("second.png", pendingJob(), succeededJob("a dog"))
	s := newTestSession(service)
	defer s.Close()

	_, err := s.StartCaption("first.png")
	require.NoError(t, err)
	firstDone := s.CaptionDone()

	require.Eventually(t, func() bool { return service.getCount("first.png") > 0 }, time.Second, time.Millisecond)

	_, err = s.StartCaption("second.png")
	require.NoError(t, err)

	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first caption task was not cancelled")
	}
	stopped := service.getCount("first.png")

	waitCaption(t, s)

	view := s.View()
	assert.Equal(t, "second.png", view.ImageURL)
	assert.Equal(t, "a dog", view.Description)
	assert.Empty(t, view.CaptionError)

	time.Sleep(5 * testPollInterval)
	assert.Equal(t, stopped, service.getCount("first.png"))
}

func TestSession_StaleUpdateIgnored(t *testing.T) {
	s := captionedSession(t, "a red car")

	s.applyJob("some-earlier-upload", &CaptionJob{ID: "old", Status: CaptionStatusFailed})
	s.finishCaption("some-earlier-upload", nil, &RemoteError{Detail: "stale"})

	view := s.View()
	assert.Equal(t, CaptionStatusSucceeded, view.CaptionStatus)
	assert.Equal(t, "a red car", view.Description)
	assert.Empty(t, view.CaptionError)
}

func TestSession_SetPrompt(t *testing.T) {
	s := newTestSession(newScriptedCaptions())
	defer s.Close()
	assert.ErrorIs(t, s.SetPrompt("me on the moon"), ErrNoCaption)

	s = captionedSession(t, "a red car")
	require.NoError(t, s.SetPrompt("me driving a red car"))

	view := s.View()
	assert.Equal(t, "me driving a red car", view.PromptText)
	assert.Equal(t, "me me driving a red car", view.PromptDisplay)
	assert.Equal(t, "a red car", view.Description)
}

func TestSession_Generate(t *testing.T) {
	config := GenerationConfig{ExhibitName: "text-to-image", Samples: 5, Seed: -1}

	t.Run("success", func(t *testing.T) {
		s := captionedSession(t, "a red car")
		require.NoError(t, s.SetPrompt("Me in a red car next to me"))
		submitter := &recordingSubmitter{}

		require.NoError(t, s.Generate(context.Background(), submitter, config))

		assert.Equal(t, []GenerationRequest{{
			Prompt:      "{target_token} in a red car next to me",
			ExhibitName: "text-to-image",
			Samples:     5,
			Seed:        -1,
		}}, submitter.submitted())

		view := s.View()
		assert.False(t, view.Generating)
		assert.Equal(t, GenerationSubmittedMessage, view.GenerationMessage)
		assert.Empty(t, view.GenerationError)
	})

	t.Run("failure hides the cause", func(t *testing.T) {
		s := captionedSession(t, "a red car")
		submitter := &recordingSubmitter{err: &RemoteError{StatusCode: 402, Detail: "insufficient credits"}}

		require.NoError(t, s.Generate(context.Background(), submitter, config))

		view := s.View()
		assert.Equal(t, "An error occurred while generating the image", view.GenerationError)
		assert.Empty(t, view.GenerationMessage)
		assert.False(t, view.Generating)
	})

	t.Run("no caption", func(t *testing.T) {
		s := newTestSession(newScriptedCaptions())
		defer s.Close()
		submitter := &recordingSubmitter{}

		assert.ErrorIs(t, s.Generate(context.Background(), submitter, config), ErrNoCaption)
		assert.Empty(t, submitter.submitted())
	})

	t.Run("closed session", func(t *testing.T) {
		s := captionedSession(t, "a red car")
		s.Close()
		submitter := &recordingSubmitter{}

		assert.ErrorIs(t, s.Generate(context.Background(), submitter, config), ErrSessionClosed)
		assert.Empty(t, submitter.submitted())
	})
}

func TestSession_SubscribeAndClose(t *testing.T) {
	service := newScriptedCaptions().script("slow.png", pendingJob())
	s := newTestSession(service)

	changes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	_, err := s.StartCaption("slow.png")
	require.NoError(t, err)

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	s.Close()
	waitCaption(t, s)

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	_, err = s.StartCaption("slow.png")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_View_NoExhibits(t *testing.T) {
	user := User{Username: "bob"}
	s := NewSession("session-2", &user, NewCaptionPoller(newScriptedCaptions(), CaptionConfig{}))
	defer s.Close()

	view := s.View()
	assert.False(t, view.ShowContent)
	assert.Zero(t, view.Balance)
}
