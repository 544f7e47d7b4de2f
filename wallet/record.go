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

package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Record is an opaque record as returned by a wallet provider. Providers
// return either a bare plaintext string or an object whose shape varies
// between wallets
type Record struct {
	Text   string
	Fields map[string]any
}

// TextRecord returns a record holding a bare plaintext string
func TextRecord(plaintext string) Record {
	return Record{Text: plaintext}
}

// FieldsRecord returns a record holding a structured object
func FieldsRecord(fields map[string]any) Record {
	return Record{Fields: fields}
}

func (r *Record) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Text)
	}
	return json.Unmarshal(data, &r.Fields)
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return json.Marshal(r.Text)
	}
	return json.Marshal(r.Fields)
}

// Spent reports whether the provider marked the record as spent
func (r Record) Spent() bool {
	spent, _ := r.Fields["spent"].(bool)
	return spent
}

func (r Record) field(names ...string) string {
	for _, name := range names {
		switch v := r.Fields[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Reader extracts a plaintext from one record shape
type Reader interface {
	Name() string
	Read(ctx context.Context, w Wallet, r Record) (string, bool)
}

// ReaderFunc adapts a function to the Reader interface
type ReaderFunc struct {
	ReaderName string
	Fn         func(ctx context.Context, w Wallet, r Record) (string, bool)
}

func (f ReaderFunc) Name() string {
	return f.ReaderName
}

func (f ReaderFunc) Read(
	ctx context.Context,
	w Wallet,
	r Record,
) (string, bool) {
	return f.Fn(ctx, w, r)
}

var (
	// PlaintextFieldReader reads the plaintext some wallets attach to the
	// record object
	PlaintextFieldReader Reader = ReaderFunc{
		ReaderName: "plaintext-field",
		Fn: func(_ context.Context, _ Wallet, r Record) (string, bool) {
			pt := r.field("recordPlaintext", "plaintext")
			return pt, pt != ""
		},
	}

	// TextReader reads records returned as a bare plaintext string
	TextReader Reader = ReaderFunc{
		ReaderName: "text",
		Fn: func(_ context.Context, _ Wallet, r Record) (string, bool) {
			return r.Text, r.Text != ""
		},
	}

	// CiphertextReader asks the wallet to decrypt the record ciphertext
	CiphertextReader Reader = ReaderFunc{
		ReaderName: "ciphertext",
		Fn: func(ctx context.Context, w Wallet, r Record) (string, bool) {
			ct := r.field("ciphertext", "recordCiphertext")
			if ct == "" || w == nil {
				return "", false
			}
			pt, err := w.Decrypt(ctx, ct)
			if err != nil || pt == "" {
				return "", false
			}
			return pt, true
		},
	}

	// ConstructedReader builds a credits plaintext from the owner,
	// microcredits and nonce fields
	ConstructedReader Reader = ReaderFunc{
		ReaderName: "constructed",
		Fn: func(_ context.Context, _ Wallet, r Record) (string, bool) {
			pt := BuildCreditsPlaintext(r)
			return pt, pt != ""
		},
	}
)

// DefaultReaders returns the record readers in the order they are tried
func DefaultReaders() []Reader {
	return []Reader{
		PlaintextFieldReader,
		TextReader,
		CiphertextReader,
		ConstructedReader,
	}
}

var (
	microcreditsRe = regexp.MustCompile(`microcredits\s*:\s*(\d[\d_]*)`)
	digitsRe       = regexp.MustCompile(`\d[\d_]*`)
)

// Microcredits returns the balance held by a credits record plaintext
func Microcredits(plaintext string) (uint64, bool) {
	m := microcreditsRe.FindStringSubmatch(plaintext)
	if m == nil {
		return 0, false
	}
	return parseDigits(m[1])
}

func parseDigits(s string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BuildCreditsPlaintext constructs a credits record plaintext from the
// structured fields some wallets return instead of plaintext
func BuildCreditsPlaintext(r Record) string {
	owner := r.field("owner")
	if owner == "" {
		return ""
	}
	if !strings.HasSuffix(owner, ".private") {
		owner += ".private"
	}
	var raw string
	if data, ok := r.Fields["data"].(map[string]any); ok {
		raw = Record{Fields: data}.field("microcredits")
	}
	if raw == "" {
		raw = r.field("microcredits")
	}
	digits := digitsRe.FindString(raw)
	if digits == "" {
		return ""
	}
	amount, ok := parseDigits(digits)
	if !ok {
		return ""
	}
	nonce := r.field("nonce", "_nonce")
	if nonce == "" {
		nonce = "0group.public"
	}
	if !strings.Contains(nonce, "group") {
		nonce += "group.public"
	}
	return fmt.Sprintf(
		"{\n  owner: %s,\n  microcredits: %du64.private,\n  _nonce: %s\n}",
		owner,
		amount,
		nonce,
	)
}
