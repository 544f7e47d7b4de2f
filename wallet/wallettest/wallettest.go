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

// Package wallettest provides an in-memory wallet for tests
package wallettest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/zkcircles/wallet"
)

// Wallet records every executed transaction and serves canned records
type Wallet struct {
	mu          sync.Mutex
	address     string
	records     map[string][]wallet.Record
	plaintexts  map[string]string
	executed    []wallet.Transaction
	failOn      map[string]error
	recordsErr  error
	nextTxIndex int
}

func New(address string) *Wallet {
	return &Wallet{
		address:    address,
		records:    make(map[string][]wallet.Record),
		plaintexts: make(map[string]string),
		failOn:     make(map[string]error),
	}
}

func (w *Wallet) Address() string {
	return w.address
}

// AddRecord adds r to the records returned for programID
func (w *Wallet) AddRecord(programID string, r wallet.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records[programID] = append(w.records[programID], r)
}

// AddCiphertext makes Decrypt return plaintext for ciphertext
func (w *Wallet) AddCiphertext(ciphertext string, plaintext string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.plaintexts[ciphertext] = plaintext
}

// FailFunction makes ExecuteTransaction fail for the given function
func (w *Wallet) FailFunction(function string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failOn[function] = err
}

// FailRecords makes RequestRecords fail
func (w *Wallet) FailRecords(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recordsErr = err
}

// Executed returns the transactions submitted so far
func (w *Wallet) Executed() []wallet.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	ret := make([]wallet.Transaction, len(w.executed))
	copy(ret, w.executed)
	return ret
}

func (w *Wallet) RequestRecords(
	_ context.Context,
	programID string,
) ([]wallet.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.recordsErr != nil {
		return nil, w.recordsErr
	}
	return append([]wallet.Record(nil), w.records[programID]...), nil
}

func (w *Wallet) Decrypt(_ context.Context, ciphertext string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pt, ok := w.plaintexts[ciphertext]
	if !ok {
		return "", errors.New("unknown ciphertext")
	}
	return pt, nil
}

func (w *Wallet) ExecuteTransaction(
	_ context.Context,
	tx wallet.Transaction,
) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.failOn[tx.Function]; err != nil {
		return "", err
	}
	w.executed = append(w.executed, tx)
	w.nextTxIndex++
	return fmt.Sprintf("at1tx%d%s", w.nextTxIndex, tx.Function), nil
}
