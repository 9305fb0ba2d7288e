package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/verte-zerg/riotswitch/internal/logging"
	"github.com/verte-zerg/riotswitch/internal/model"
)

// document is the persisted layout of a FileStore.
type document struct {
	Accounts []model.Account `json:"accounts"`
	Settings model.Settings  `json:"settings"`
}

// objectDocument mirrors document with optional settings so absent keys can be detected.
type objectDocument struct {
	Accounts []model.Account `json:"accounts"`
	Settings *model.Settings `json:"settings"`
}

// FileStore keeps accounts and settings in a single JSON document.
type FileStore struct {
	path     string
	template string

	mu       sync.RWMutex
	accounts []model.Account
	settings model.Settings
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithTemplate sets a document copied into place when the store file does not exist yet.
func WithTemplate(path string) FileOption {
	return func(s *FileStore) {
		s.template = path
	}
}

// NewFileStore returns an empty store bound to path. Call Load to read the document.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:     path,
		accounts: []model.Account{},
		settings: model.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenFile creates a FileStore and loads its document. The returned store is
// always usable; a non-nil error reports a degraded load (unreadable document
// or a migration that could not be written back).
func OpenFile(path string, opts ...FileOption) (*FileStore, error) {
	s := NewFileStore(path, opts...)
	if err := s.Load(); err != nil {
		logging.Warnf("account store %s: %v", path, err)
		return s, err
	}
	return s, nil
}

// Path returns the backing document path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the backing document, creating or migrating it when needed.
// On failure the in-memory state is reset to empty accounts and default settings.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = []model.Account{}
	s.settings = model.DefaultSettings()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.initialize()
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrPersistence, s.path, err)
	}

	doc, legacy, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPersistence, s.path, err)
	}
	s.accounts = doc.Accounts
	s.settings = doc.Settings
	if legacy {
		logging.Infof("migrating legacy account list in %s", s.path)
		if err := writeDocument(s.path, doc); err != nil {
			return err
		}
	}
	return nil
}

// initialize seeds a missing document from the template, or writes an empty one.
func (s *FileStore) initialize() error {
	doc := document{Accounts: []model.Account{}, Settings: model.DefaultSettings()}
	if s.template != "" {
		seeded, err := readTemplate(s.template)
		switch {
		case err == nil:
			logging.Infof("seeding account store from %s", s.template)
			doc = seeded
		case errors.Is(err, os.ErrNotExist):
		default:
			logging.Warnf("ignoring account template %s: %v", s.template, err)
		}
	}
	if err := writeDocument(s.path, doc); err != nil {
		return err
	}
	s.accounts = doc.Accounts
	s.settings = doc.Settings
	return nil
}

func readTemplate(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	doc, _, err := decodeDocument(data)
	return doc, err
}

// Save writes the full in-memory state to the backing document.
func (s *FileStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return writeDocument(s.path, document{Accounts: s.accounts, Settings: s.settings})
}

// All returns the accounts in stored order.
func (s *FileStore) All(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAccounts(s.accounts), nil
}

// Get returns the account with the exact username.
func (s *FileStore) Get(_ context.Context, username string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.accounts, username)
	if i < 0 {
		return model.Account{}, ErrNotFound
	}
	return s.accounts[i], nil
}

// Upsert overwrites the password and region of an existing account or appends a
// new one, then persists. It reports whether an existing account was updated.
func (s *FileStore) Upsert(_ context.Context, username, password, region string) (bool, error) {
	if err := validateAccount(username, password, region); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneAccounts(s.accounts)
	isUpdate := false
	if i := indexOf(next, username); i >= 0 {
		next[i].Password = password
		next[i].Region = region
		isUpdate = true
	} else {
		next = append(next, model.Account{Username: username, Password: password, Region: region})
	}
	if err := s.commit(next, s.settings); err != nil {
		return false, err
	}
	return isUpdate, nil
}

// Delete removes the account if present and persists. Missing usernames are not an error.
func (s *FileStore) Delete(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.accounts, username)
	if i < 0 {
		return false, nil
	}
	next := make([]model.Account, 0, len(s.accounts)-1)
	next = append(next, s.accounts[:i]...)
	next = append(next, s.accounts[i+1:]...)
	if err := s.commit(next, s.settings); err != nil {
		return false, err
	}
	return true, nil
}

// Speed returns the persisted keystroke speed.
func (s *FileStore) Speed(_ context.Context) (model.Speed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Speed, nil
}

// SetSpeed updates and persists the keystroke speed.
func (s *FileStore) SetSpeed(_ context.Context, speed model.Speed) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(s.accounts, model.Settings{Speed: speed})
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}

// commit persists the next state and adopts it only when the write succeeded.
// Callers must hold the write lock.
func (s *FileStore) commit(accounts []model.Account, settings model.Settings) error {
	if err := writeDocument(s.path, document{Accounts: accounts, Settings: settings}); err != nil {
		logging.Errorf("failed to save account store: %v", err)
		return err
	}
	s.accounts = accounts
	s.settings = settings
	return nil
}

// decodeDocument parses either layout. legacy is true for a bare account array.
func decodeDocument(data []byte) (document, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return document{}, false, fmt.Errorf("document is empty")
	}

	doc := document{Settings: model.DefaultSettings()}
	legacy := trimmed[0] == '['
	if legacy {
		if err := json.Unmarshal(trimmed, &doc.Accounts); err != nil {
			return document{}, false, err
		}
	} else {
		var obj objectDocument
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return document{}, false, err
		}
		doc.Accounts = obj.Accounts
		if obj.Settings != nil && obj.Settings.Speed.Valid() {
			doc.Settings = *obj.Settings
		}
	}
	doc.Accounts = normalizeAccounts(doc.Accounts)
	return doc, legacy, nil
}

// normalizeAccounts fills missing regions and folds duplicate usernames into
// their first position, keeping the last credentials seen.
func normalizeAccounts(in []model.Account) []model.Account {
	out := make([]model.Account, 0, len(in))
	for _, acc := range in {
		if acc.Region == "" {
			acc.Region = model.DefaultRegion
		}
		if i := indexOf(out, acc.Username); i >= 0 {
			logging.Warnf("duplicate account %q in store document, keeping the last entry", acc.Username)
			out[i] = acc
			continue
		}
		out = append(out, acc)
	}
	return out
}

// writeDocument replaces path atomically via a temp file in the same directory.
func writeDocument(path string, doc document) error {
	if doc.Accounts == nil {
		doc.Accounts = []model.Account{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create store directory: %v", ErrPersistence, err)
	}
	tmpFile, err := os.CreateTemp(dir, "accounts-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp document: %v", ErrPersistence, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("%w: write document: %v", ErrPersistence, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: close document: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: replace document: %v", ErrPersistence, err)
	}
	return nil
}

func indexOf(accounts []model.Account, username string) int {
	for i, acc := range accounts {
		if acc.Username == username {
			return i
		}
	}
	return -1
}

func cloneAccounts(in []model.Account) []model.Account {
	return append([]model.Account{}, in...)
}
