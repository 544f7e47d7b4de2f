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

package fieldcodec_test

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/blinklabs-io/zkcircles/fieldcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *fieldcodec.Codec {
	t.Helper()
	codec, err := fieldcodec.New([]byte(fieldcodec.DevelopmentKey))
	require.NoError(t, err)
	return codec
}

func TestEncryptDecrypt(t *testing.T) {
	codec := newTestCodec(t)
	addr := "aleo1qnr4dkkvkgfqph0vzc3y6z2eu975wnpz2925ntjccd5cfqxtyu8sta57j8"
	enc, err := codec.Encrypt(addr)
	require.NoError(t, err)
	assert.NotEqual(t, addr, enc)
	assert.Equal(t, addr, codec.Decrypt(enc))

	// Fresh nonce on every call
	enc2, err := codec.Encrypt(addr)
	require.NoError(t, err)
	assert.NotEqual(t, enc, enc2)
	assert.True(t, codec.Equal(enc2, addr))
}

func TestEmptyPassThrough(t *testing.T) {
	codec := newTestCodec(t)
	enc, err := codec.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)
	assert.Empty(t, codec.Decrypt(""))
}

func TestDecryptFailsOpen(t *testing.T) {
	codec := newTestCodec(t)
	// Plaintext rows and garbage come back unchanged
	assert.Equal(t, "aleo1mock...abc", codec.Decrypt("aleo1mock...abc"))
	assert.Equal(t, "c2hvcnQ=", codec.Decrypt("c2hvcnQ="))

	// Valid ciphertext under another key fails the tag check
	other, err := fieldcodec.New([]byte("another_key_that_is_32_bytes!!!!"))
	require.NoError(t, err)
	enc, err := other.Encrypt("secret")
	require.NoError(t, err)
	assert.Equal(t, enc, codec.Decrypt(enc))
	_, err = codec.Open(enc)
	require.Error(t, err)
}

func TestStoredLayout(t *testing.T) {
	key := []byte(fieldcodec.DevelopmentKey)
	codec, err := fieldcodec.New(key)
	require.NoError(t, err)
	enc, err := codec.Encrypt("hello")
	require.NoError(t, err)
	buf, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	require.Len(t, buf, fieldcodec.NonceSize+fieldcodec.TagSize+len("hello"))

	// Decrypt by hand as nonce|tag|ciphertext
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := buf[:fieldcodec.NonceSize]
	tag := buf[fieldcodec.NonceSize : fieldcodec.NonceSize+fieldcodec.TagSize]
	ct := buf[fieldcodec.NonceSize+fieldcodec.TagSize:]
	plain, err := aead.Open(nil, nonce, append(append([]byte{}, ct...), tag...), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestParseKey(t *testing.T) {
	hexKey, err := fieldcodec.GenerateKey()
	require.NoError(t, err)
	require.Len(t, hexKey, 64)
	key, err := fieldcodec.ParseKey(hexKey)
	require.NoError(t, err)
	expected, _ := hex.DecodeString(hexKey)
	assert.Equal(t, expected, key)

	key, err = fieldcodec.ParseKey(fieldcodec.DevelopmentKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(fieldcodec.DevelopmentKey), key)

	_, err = fieldcodec.ParseKey("too-short")
	require.ErrorIs(t, err, fieldcodec.ErrInvalidKey)
}

func TestLoadKeyFallback(t *testing.T) {
	key, err := fieldcodec.LoadKey("", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(fieldcodec.DevelopmentKey), key)
}

func TestLoadKeyFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not used on windows")
	}
	hexKey, err := fieldcodec.GenerateKey()
	require.NoError(t, err)
	dir := t.TempDir()

	path := filepath.Join(dir, "field.key")
	require.NoError(t, os.WriteFile(path, []byte(hexKey+"\n"), 0o600))
	key, err := fieldcodec.LoadKeyFile(path)
	require.NoError(t, err)
	assert.Len(t, key, fieldcodec.KeySize)

	open := filepath.Join(dir, "open.key")
	require.NoError(t, os.WriteFile(open, []byte(hexKey), 0o600))
	require.NoError(t, os.Chmod(open, 0o644))
	_, err = fieldcodec.LoadKeyFile(open)
	require.ErrorIs(t, err, fieldcodec.ErrInsecureFileMode)
}

func TestSealRequiresMasterKey(t *testing.T) {
	t.Setenv(fieldcodec.EnvGcpKmsResourceID, "")
	t.Setenv(fieldcodec.EnvAwsKmsKeyArns, "")
	_, err := fieldcodec.Seal([]byte("00"))
	require.Error(t, err)
}
