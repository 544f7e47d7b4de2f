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
	"errors"
	"fmt"
	"strings"
)

const (
	// CreditsProgram is the native credits program
	CreditsProgram = "credits.aleo"

	// DefaultProgramID is the circles program deployed on chain
	DefaultProgramID = "zk_circles_v1.aleo"

	// BaseFee is the public fee attached to every transaction, in
	// microcredits
	BaseFee uint64 = 1_000_000

	// TransferFee and VerifyFee are the public fees of the membership
	// transfer and verification calls, in microcredits
	TransferFee uint64 = 500_000
	VerifyFee   uint64 = 300_000

	// AddressPrefix and AddressLength describe a bech32 account address
	AddressPrefix = "aleo1"
	AddressLength = 63

	// DefaultPotAddress receives contributions when no pot address is
	// configured
	DefaultPotAddress = "aleo1yvukv56vxntqpc280d40dhuvz4prpwzvdvjcm9ggm8a8e3tffsgqc9ws3t"
)

var (
	ErrNotConnected       = errors.New("wallet not connected")
	ErrNoUsableRecord     = errors.New("no usable credits record found")
	ErrNoMembershipRecord = errors.New("membership record not found")
	ErrInvalidAddress     = errors.New("invalid address")
)

// ValidateAddress checks the shape of an account address
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, AddressPrefix) || len(address) != AddressLength {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// Transaction describes a program function call to be executed by the
// wallet
type Transaction struct {
	Program    string   `json:"program"`
	Function   string   `json:"function"`
	Inputs     []string `json:"inputs"`
	Fee        uint64   `json:"fee"`
	PrivateFee bool     `json:"privateFee"`
}

// Wallet is the capability surface of a connected wallet provider
type Wallet interface {
	// Address returns the connected account address, or an empty string
	// when no account is connected
	Address() string
	RequestRecords(ctx context.Context, programID string) ([]Record, error)
	// Decrypt returns the plaintext for a record ciphertext
	Decrypt(ctx context.Context, ciphertext string) (string, error)
	// ExecuteTransaction submits a transaction and returns its id
	ExecuteTransaction(ctx context.Context, tx Transaction) (string, error)
}

// NewTransaction builds a transaction with the base public fee
func NewTransaction(program string, function string, inputs ...string) Transaction {
	return Transaction{
		Program:  program,
		Function: function,
		Inputs:   inputs,
		Fee:      BaseFee,
		// Shield wallet rejects private fees
		PrivateFee: false,
	}
}

// U8 formats v as a u8 literal
func U8(v uint8) string {
	return fmt.Sprintf("%du8", v)
}

// U64 formats v as a u64 literal
func U64(v uint64) string {
	return fmt.Sprintf("%du64", v)
}
