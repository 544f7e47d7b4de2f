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
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Selector picks records out of a wallet using an ordered set of readers
type Selector struct {
	wallet  Wallet
	readers []Reader
}

// NewSelector returns a selector using readers, or DefaultReaders when
// none are given
func NewSelector(w Wallet, readers ...Reader) *Selector {
	if len(readers) == 0 {
		readers = DefaultReaders()
	}
	return &Selector{
		wallet:  w,
		readers: readers,
	}
}

// Plaintext returns the first plaintext accepted by match, trying each
// reader in order
func (s *Selector) Plaintext(
	ctx context.Context,
	r Record,
	match func(string) bool,
) (string, bool) {
	for _, reader := range s.readers {
		pt, ok := reader.Read(ctx, s.wallet, r)
		if !ok {
			continue
		}
		if match(pt) {
			return pt, true
		}
	}
	return "", false
}

// CreditsRecord returns an unspent credits record plaintext holding at
// least minimum microcredits
func (s *Selector) CreditsRecord(
	ctx context.Context,
	minimum uint64,
) (string, error) {
	records, err := s.wallet.RequestRecords(ctx, CreditsProgram)
	if err != nil {
		return "", fmt.Errorf("request credits records: %w", err)
	}
	enough := func(pt string) bool {
		mc, ok := Microcredits(pt)
		return ok && mc >= minimum
	}
	for _, r := range records {
		if r.Spent() {
			continue
		}
		if pt, ok := s.Plaintext(ctx, r, enough); ok {
			return pt, nil
		}
	}
	return "", fmt.Errorf(
		"%w: you need at least %s ALEO",
		ErrNoUsableRecord,
		FormatCredits(minimum, 3),
	)
}

// MembershipRecord returns the unspent program record that references
// circleID
func (s *Selector) MembershipRecord(
	ctx context.Context,
	programID string,
	circleID string,
) (string, bool, error) {
	records, err := s.wallet.RequestRecords(ctx, programID)
	if err != nil {
		return "", false, fmt.Errorf("request program records: %w", err)
	}
	mentions := func(pt string) bool {
		return strings.Contains(pt, circleID)
	}
	for _, r := range records {
		if r.Spent() {
			continue
		}
		if pt, ok := s.Plaintext(ctx, r, mentions); ok {
			return pt, true, nil
		}
	}
	return "", false, nil
}

// FormatCredits renders microcredits as ALEO with the given number of
// decimal places
func FormatCredits(microcredits uint64, places int32) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(microcredits),
		-6,
	).StringFixed(places)
}
