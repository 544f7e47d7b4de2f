// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fieldcodec encrypts individual stored fields, such as member
// addresses and circle names, with AES-256-GCM.
//
// The encoded form is base64(nonce | tag | ciphertext), which matches rows
// written by earlier versions of the indexer.
package fieldcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// Codec encrypts and decrypts string fields with a fixed key
type Codec struct {
	aead cipher.AEAD
}

// New returns a codec for the given 32-byte key
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Encrypt returns the encoded ciphertext of plaintext. Empty input is
// returned unchanged.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	// Seal produces ciphertext|tag, the stored layout puts the tag first
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ctLen := len(sealed) - TagSize
	buf := make([]byte, 0, NonceSize+len(sealed))
	buf = append(buf, nonce...)
	buf = append(buf, sealed[ctLen:]...)
	buf = append(buf, sealed[:ctLen]...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt returns the plaintext of an encoded value. Values that are not
// valid ciphertext for this key, including plaintext written by older
// deployments, are returned unchanged.
func (c *Codec) Decrypt(encoded string) string {
	ret, err := c.Open(encoded)
	if err != nil {
		return encoded
	}
	return ret
}

// Open is like Decrypt but reports failures
func (c *Codec) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(buf) < NonceSize+TagSize {
		return "", errors.New("ciphertext too short")
	}
	nonce := buf[:NonceSize]
	tag := buf[NonceSize : NonceSize+TagSize]
	ct := buf[NonceSize+TagSize:]
	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Equal reports whether the stored value decrypts to plaintext. Fresh nonces
// make ciphertext comparison meaningless, so matching is always done on the
// decrypted value.
func (c *Codec) Equal(encoded string, plaintext string) bool {
	return c.Decrypt(encoded) == plaintext
}

// GenerateKey returns a new random key, hex encoded
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
