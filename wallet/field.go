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
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Field element literals are decimal integers in the BLS12-377 scalar
// field followed by the "field" type suffix

const fieldSuffix = "field"

// FieldLiteral formats e as a field literal
func FieldLiteral(e *fr.Element) string {
	return e.Text(10) + fieldSuffix
}

// ParseField parses a field literal, accepting an optional visibility
// suffix
func ParseField(literal string) (fr.Element, error) {
	var e fr.Element
	s := strings.TrimSuffix(
		strings.TrimSuffix(literal, ".private"),
		".public",
	)
	s = strings.TrimSuffix(s, fieldSuffix)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return e, fmt.Errorf("invalid field literal %q", literal)
	}
	if v.Cmp(fr.Modulus()) >= 0 {
		return e, fmt.Errorf("field literal %q out of range", literal)
	}
	e.SetBigInt(v)
	return e, nil
}

// GenerateSalt returns a random 128-bit salt as a field literal
func GenerateSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	var e fr.Element
	e.SetBytes(buf)
	return FieldLiteral(&e), nil
}

// HashToField maps input to a field literal by reducing its SHA-256
// digest modulo the scalar field order
func HashToField(input string) string {
	sum := sha256.Sum256([]byte(input))
	var e fr.Element
	e.SetBytes(sum[:])
	return FieldLiteral(&e)
}

// CircleID derives the id the circles program assigns to a new circle
func CircleID(creator string, nameHash string, salt string) (string, error) {
	preimage, err := json.Marshal(struct {
		Creator  string `json:"creator"`
		NameHash string `json:"name_hash"`
		Salt     string `json:"salt"`
	}{
		Creator:  creator,
		NameHash: nameHash,
		Salt:     salt,
	})
	if err != nil {
		return "", err
	}
	return HashToField(string(preimage)), nil
}
