package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"reina/internal/session"
)

const nonceSize = 24

// ErrUnseal is returned when a stored token fails authentication or decoding.
var ErrUnseal = errors.New("cannot decrypt stored token")

// Sealer encrypts tokens at rest. A nil *Sealer stores them in the clear.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a secretbox key from passphrase. An empty passphrase
// returns nil, which disables sealing.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, nil
	}
	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("reina-session-tokens"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return s, nil
}

// Enabled reports whether s encrypts anything.
func (s *Sealer) Enabled() bool {
	return s != nil
}

// Seal encrypts plain and returns it base64 encoded. Empty input stays empty.
func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil || plain == "" {
		return plain, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil || sealed == "" {
		return sealed, nil
	}
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(box) < nonceSize {
		return "", ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}

// sealSession encrypts both tokens of sess.
func (s *Sealer) sealSession(sess session.Session) (session.Session, error) {
	var err error
	if sess.AccessToken, err = s.Seal(sess.AccessToken); err != nil {
		return session.Session{}, err
	}
	if sess.RefreshToken, err = s.Seal(sess.RefreshToken); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// openSession decrypts both tokens of sess.
func (s *Sealer) openSession(sess session.Session) (session.Session, error) {
	var err error
	if sess.AccessToken, err = s.Open(sess.AccessToken); err != nil {
		return session.Session{}, err
	}
	if sess.RefreshToken, err = s.Open(sess.RefreshToken); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}
