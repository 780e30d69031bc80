package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"holachat/internal/domain/entity"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

// FileStore keeps the login blob in a JSON file. Every read goes back to
// disk so a logout or a login as someone else is seen immediately.
type FileStore struct {
	path  string
	mutex sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored session or a NOT_AUTHENTICATED error.
func (s *FileStore) Load() (*entity.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotAuthenticated("not authenticated: no saved session")
		}
		return nil, errors.NotAuthenticated(fmt.Sprintf("not authenticated: %v", err))
	}

	var sess entity.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.NotAuthenticated("not authenticated: saved session is unreadable")
	}
	if sess.ID == "" {
		return nil, errors.NotAuthenticated("not authenticated: saved session has no user id")
	}
	return &sess, nil
}

// CurrentUser implements service.IdentityProvider.
func (s *FileStore) CurrentUser() *entity.Identity {
	sess, err := s.Load()
	if err != nil {
		return nil
	}
	return sess.Identity()
}

// Token implements oauth2.TokenSource so the request client and the live
// channel share one bearer token source.
func (s *FileStore) Token() (*oauth2.Token, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sess.Token == "" {
		return nil, errors.NotAuthenticated("not authenticated: saved session has no token")
	}
	return &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}, nil
}

func (s *FileStore) Save(sess *entity.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch calls onChange whenever the session file is created, rewritten,
// removed or renamed, until ctx is done. The parent directory is watched so
// the file may come and go.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Clean(s.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Session watcher error: %v", err)
			}
		}
	}()

	return nil
}
