package internal

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const testPollInterval = 5 * time.Millisecond

func strPtr(s string) *string {
	return &s
}

// scriptedCaptions answers Create with a job whose id is the image URL and
// answers Get from a per-job script; the last step repeats.
type scriptedCaptions struct {
	mu        sync.Mutex
	createErr map[string]error
	created   map[string]*CaptionJob
	scripts   map[string][]*CaptionJob
	gets      map[string]int
}

func newScriptedCaptions() *scriptedCaptions {
	return &scriptedCaptions{
		createErr: make(map[string]error),
		created:   make(map[string]*CaptionJob),
		scripts:   make(map[string][]*CaptionJob),
		gets:      make(map[string]int),
	}
}

func (s *scriptedCaptions) script(imageURL string, created *CaptionJob, steps ...*CaptionJob) *scriptedCaptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	created.ID = imageURL
	s.created[imageURL] = created
	s.scripts[imageURL] = steps
	return s
}

func (s *scriptedCaptions) failCreate(imageURL string, err error) *scriptedCaptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr[imageURL] = err
	return s
}

func (s *scriptedCaptions) Create(ctx context.Context, imageURL string) (*CaptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErr[imageURL]; err != nil {
		return nil, err
	}
	job, ok := s.created[imageURL]
	if !ok {
		return nil, fmt.Errorf("unexpected image %s", imageURL)
	}
	copied := *job
	return &copied, nil
}

func (s *scriptedCaptions) Get(ctx context.Context, id string) (*CaptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.scripts[id]
	n := s.gets[id]
	s.gets[id] = n + 1
	if len(steps) == 0 {
		return &CaptionJob{ID: id, Status: CaptionStatusPending}, nil
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	copied := *steps[n]
	copied.ID = id
	return &copied, nil
}

func (s *scriptedCaptions) getCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[id]
}

func succeededJob(output string) *CaptionJob {
	return &CaptionJob{Status: CaptionStatusSucceeded, Output: strPtr(output)}
}

func pendingJob() *CaptionJob {
	return &CaptionJob{Status: CaptionStatusPending}
}

type recordingSubmitter struct {
	mu       sync.Mutex
	err      error
	requests []GenerationRequest
}

func (r *recordingSubmitter) Submit(ctx context.Context, request *GenerationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, *request)
	return r.err
}

func (r *recordingSubmitter) submitted() []GenerationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GenerationRequest(nil), r.requests...)
}

type fakeUsers struct {
	mu        sync.Mutex
	passwords map[string]string
	users     map[string]User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		passwords: make(map[string]string),
		users:     make(map[string]User),
	}
}

func (f *fakeUsers) add(password string, user User) *fakeUsers {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[user.Username] = password
	f.users[user.Username] = user
	return f
}

func (f *fakeUsers) Authenticate(ctx context.Context, login, password string) (*User, error) {
	f.mu.Lock()
	expected, ok := f.passwords[login]
	f.mu.Unlock()
	if !ok || expected != password {
		return nil, ErrBadCredentials
	}
	return f.Lookup(ctx, login)
}

func (f *fakeUsers) Lookup(ctx context.Context, login string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[login]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, name, contentType string, body io.Reader) (*FileDescriptor, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.names = append(f.names, name)
	return &FileDescriptor{FileURL: "https://cdn.example.com/" + name}, nil
}
