// Package filestore persists tokens to a single file under the user's
// config directory, encrypted at rest. This is the durable backend for
// interactive use of the SDK.
package filestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/clinicore/go-clinic-client/tokenstore"
)

var _ tokenstore.Backend = (*FileStore)(nil)

// FileStore keeps the whole key/value record in one sealed file. Writes
// rewrite the file atomically via a temp file and rename.
type FileStore struct {
	path   string
	secret []byte
	lock   sync.Mutex
}

// New creates a FileStore at path. The secret seeds the encryption key; the
// same secret must be supplied on every run to read back previous tokens.
func New(path, secret string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	if secret == "" {
		return nil, errors.New("[filestore.New] secret is required")
	}
	key := sha256.Sum256([]byte(secret))
	return &FileStore{path: path, secret: key[:]}, nil
}

// DefaultPath returns the conventional token file location under the user
// config dir.
func DefaultPath(appName string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "[filestore.DefaultPath]")
	}
	return filepath.Join(dir, appName, "tokens.sealed"), nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	values, err := s.load()
	if err != nil {
		values = make(map[string]string)
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	values, err := s.load()
	if err != nil {
		return nil
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.secret)
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.load] cipher")
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("[FileStore.load] truncated token file")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.load] open")
	}
	values := make(map[string]string)
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, errors.Wrap(err, "[FileStore.load] unmarshal")
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[FileStore.save] marshal")
	}
	aead, err := chacha20poly1305.NewX(s.secret)
	if err != nil {
		return errors.Wrap(err, "[FileStore.save] cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[FileStore.save] rand.Read")
	}
	sealed := append(nonce, aead.Seal(nil, nonce, plaintext, nil)...)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.save] mkdir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.save] write")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "[FileStore.save] rename")
}
