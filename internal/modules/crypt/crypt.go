// Package crypt implements single-key file encryption. The key is printed
// once and never stored; losing it makes the output unrecoverable.
package crypt

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// Extension is appended to encrypted files.
const Extension = ".enc"

var (
	ErrInvalidKey  = errors.New("invalid key")
	ErrCorruptData = errors.New("ciphertext is truncated or was not produced with this key")
	ErrDestExists  = errors.New("destination already exists")
)

// Module provides the encrypt and decrypt commands.
type Module struct {
	Rand io.Reader
}

func New() Module { return Module{Rand: rand.Reader} }

func (Module) Name() string        { return "crypt" }
func (Module) Description() string { return "Encrypt and decrypt files with a one-time key" }

func (m Module) Register(register sdk.RegisterFunc) {
	register("encrypt", m.Encrypt)
	register("decrypt", m.Decrypt)
}

// NewKey returns a random 256-bit key as base64url text.
func (m Module) NewKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(m.random(), key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305. The result is nonce||ciphertext.
func (m Module) Seal(key string, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(m.random(), nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key string, data []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCorruptData
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptData
	}
	return plain, nil
}

// Encrypt handles "encrypt <file>": writes <file>.enc and prints the key.
func (m Module) Encrypt(_ context.Context, out io.Writer, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: encrypt <file_path>")
		return nil
	}
	path := args[0]
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "File not found: %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	key, err := m.NewKey()
	if err != nil {
		return err
	}
	sealed, err := m.Seal(key, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path+Extension, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path+Extension, err)
	}
	fmt.Fprintf(out, "File encrypted successfully: %s\n", path+Extension)
	fmt.Fprintf(out, "Key: %s\n", key)
	return nil
}

// Decrypt handles "decrypt <file.enc> <key>". An existing plaintext file is
// never overwritten.
func (m Module) Decrypt(_ context.Context, out io.Writer, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(out, "Usage: decrypt <file_path> <key>")
		return nil
	}
	path, key := args[0], args[1]
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "File not found: %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	plain, err := Open(key, data)
	if err != nil {
		return err
	}
	dest := DecryptedPath(path)
	if err := writeNew(dest, plain); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("refusing to overwrite %s: %w", dest, ErrDestExists)
		}
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	fmt.Fprintf(out, "File decrypted successfully: %s\n", dest)
	return nil
}

// DecryptedPath strips the .enc suffix, or appends .dec when it is missing.
func DecryptedPath(path string) string {
	if trimmed := strings.TrimSuffix(path, Extension); trimmed != path && trimmed != "" {
		return trimmed
	}
	return path + ".dec"
}

// writeNew creates path exclusively.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newAEAD(key string) (cipher.AEAD, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil || len(raw) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return chacha20poly1305.NewX(raw)
}

func (m Module) random() io.Reader {
	if m.Rand == nil {
		return rand.Reader
	}
	return m.Rand
}
