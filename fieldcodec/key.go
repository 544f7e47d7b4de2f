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

package fieldcodec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DevelopmentKey is used when no key is configured. It must never protect
// production data.
const DevelopmentKey = "default_dev_key_32_bytes_long!!!"

var ErrInsecureFileMode = errors.New("insecure file permissions")

// ParseKey decodes a configured key. A 64 character value is hex, anything
// else is used as raw bytes.
func ParseKey(value string) ([]byte, error) {
	var key []byte
	if len(value) == KeySize*2 {
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decode hex key: %w", err)
		}
		key = decoded
	} else {
		key = []byte(value)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	return key, nil
}

// LoadKey resolves the process key from the configured value, falling back
// to DevelopmentKey with a warning when it is empty
func LoadKey(value string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if value == "" {
		logger.Warn(
			"using default encryption key, set ENCRYPTION_KEY in production",
			"component", "fieldcodec",
		)
		return []byte(DevelopmentKey), nil
	}
	return ParseKey(value)
}

// LoadKeyFile reads a key from path. The file must not be readable by group
// or other users. SOPS-sealed files are unsealed transparently.
func LoadKeyFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open key file: %w", err)
	}
	defer f.Close()
	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read key file %q: %w", path, err)
	}
	if isSealed(data) {
		data, err = Unseal(data)
		if err != nil {
			return nil, fmt.Errorf("unseal key file %q: %w", path, err)
		}
	}
	return ParseKey(strings.TrimSpace(string(data)))
}

// NewFromConfig builds a codec from a key file when one is given, otherwise
// from the configured key value
func NewFromConfig(
	keyValue string,
	keyFile string,
	logger *slog.Logger,
) (*Codec, error) {
	var key []byte
	var err error
	if keyFile != "" {
		key, err = LoadKeyFile(keyFile)
	} else {
		key, err = LoadKey(keyValue, logger)
	}
	if err != nil {
		return nil, err
	}
	return New(key)
}
