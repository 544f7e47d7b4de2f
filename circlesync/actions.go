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

package circlesync

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/wallet"
)

// Actions runs circle operations on chain through a wallet and then
// records them. Bookkeeping failures after a successful transaction are
// logged, never returned
type Actions struct {
	syncer     *Syncer
	wallet     wallet.Wallet
	selector   *wallet.Selector
	programID  string
	potAddress string
}

type ActionsOptionFunc func(*Actions)

// WithProgramID selects the circles program
func WithProgramID(programID string) ActionsOptionFunc {
	return func(a *Actions) {
		if programID != "" {
			a.programID = programID
		}
	}
}

// WithPotAddress sets the address contributions are transferred to
func WithPotAddress(address string) ActionsOptionFunc {
	return func(a *Actions) {
		if address != "" {
			a.potAddress = address
		}
	}
}

// WithReaders overrides the record readers used to find credits and
// membership records
func WithReaders(readers ...wallet.Reader) ActionsOptionFunc {
	return func(a *Actions) {
		a.selector = wallet.NewSelector(a.wallet, readers...)
	}
}

func NewActions(
	syncer *Syncer,
	w wallet.Wallet,
	opts ...ActionsOptionFunc,
) *Actions {
	a := &Actions{
		syncer:     syncer,
		wallet:     w,
		selector:   wallet.NewSelector(w),
		programID:  wallet.DefaultProgramID,
		potAddress: wallet.DefaultPotAddress,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result describes a completed on-chain action
type Result struct {
	TransactionID string
	// CreditsTransactionID is the credits transfer behind a contribution
	CreditsTransactionID string
	CircleID             string
	JoinOrder            uint8
	Amount               uint64
}

// CreateParams describes a circle to create
type CreateParams struct {
	Name                string
	ContributionAmount  uint64
	MaxMembers          uint8
	CycleDurationBlocks uint64
}

func (a *Actions) address() (string, error) {
	if a.wallet == nil || a.wallet.Address() == "" {
		return "", wallet.ErrNotConnected
	}
	return a.wallet.Address(), nil
}

func (a *Actions) bookkeepingFailed(op string, err error) {
	a.syncer.logger.Warn(
		op+" bookkeeping failed",
		"error", err,
	)
}

// CreateCircle creates a circle on chain and records it with the
// connected address as creator
func (a *Actions) CreateCircle(ctx context.Context, params CreateParams) (Result, error) {
	creator, err := a.address()
	if err != nil {
		return Result{}, err
	}
	salt, err := wallet.GenerateSalt()
	if err != nil {
		return Result{}, err
	}
	nameHash := wallet.HashToField(params.Name)
	circleID, err := wallet.CircleID(creator, nameHash, salt)
	if err != nil {
		return Result{}, err
	}
	nc := circle.NewCircle{
		CircleID:            circleID,
		Name:                params.Name,
		NameHash:            nameHash,
		Creator:             creator,
		ContributionAmount:  params.ContributionAmount,
		MaxMembers:          params.MaxMembers,
		CycleDurationBlocks: params.CycleDurationBlocks,
		Salt:                salt,
	}
	if err := nc.Validate(); err != nil {
		return Result{}, err
	}
	txID, err := a.wallet.ExecuteTransaction(ctx, wallet.NewTransaction(
		a.programID,
		"create_circle",
		nameHash,
		wallet.U64(params.ContributionAmount),
		wallet.U8(params.MaxMembers),
		salt,
	))
	if err != nil {
		return Result{}, fmt.Errorf("create_circle: %w", err)
	}
	nc.TransactionID = txID
	if err := a.syncer.CreateCircle(ctx, nc); err != nil {
		a.bookkeepingFailed("create circle", err)
	}
	return Result{
		TransactionID: txID,
		CircleID:      circleID,
	}, nil
}

// JoinCircle joins the connected address to a circle
func (a *Actions) JoinCircle(ctx context.Context, circleID string) (Result, error) {
	member, err := a.address()
	if err != nil {
		return Result{}, err
	}
	txID, err := a.wallet.ExecuteTransaction(ctx, wallet.NewTransaction(
		a.programID,
		"join_circle",
		circleID,
	))
	if err != nil {
		return Result{}, fmt.Errorf("join_circle: %w", err)
	}
	ret := Result{
		TransactionID: txID,
		CircleID:      circleID,
	}
	salt, err := wallet.GenerateSalt()
	if err != nil {
		a.bookkeepingFailed("join circle", err)
		return ret, nil
	}
	joinOrder, err := a.syncer.AddMember(ctx, circleID, circle.NewMember{
		MemberAddress: member,
		TransactionID: txID,
		Salt:          salt,
	})
	if err != nil {
		a.bookkeepingFailed("join circle", err)
	}
	ret.JoinOrder = joinOrder
	return ret, nil
}

// Contribute transfers amount from a private credits record to the circle
// pot and records the contribution for the circle's current cycle
func (a *Actions) Contribute(
	ctx context.Context,
	circleID string,
	amount uint64,
) (Result, error) {
	member, err := a.address()
	if err != nil {
		return Result{}, err
	}
	record, err := a.selector.CreditsRecord(ctx, amount+wallet.BaseFee)
	if err != nil {
		return Result{}, err
	}
	creditsTxID, err := a.wallet.ExecuteTransaction(ctx, wallet.NewTransaction(
		wallet.CreditsProgram,
		"transfer_private",
		record,
		a.potAddress,
		wallet.U64(amount),
	))
	if err != nil {
		return Result{}, fmt.Errorf("transfer_private: %w", err)
	}
	ret := Result{
		TransactionID:        creditsTxID,
		CreditsTransactionID: creditsTxID,
		CircleID:             circleID,
		Amount:               amount,
	}
	// The credits already moved, so the program call is best effort
	membership, found, err := a.selector.MembershipRecord(ctx, a.programID, circleID)
	switch {
	case err != nil:
		a.bookkeepingFailed("contribute", err)
	case !found:
		a.syncer.logger.Warn(
			"membership record not found, recording contribution anyway",
			"circle_id", circleID,
		)
	default:
		txID, err := a.wallet.ExecuteTransaction(ctx, wallet.NewTransaction(
			a.programID,
			"contribute",
			membership,
			wallet.U64(amount),
		))
		if err != nil {
			a.bookkeepingFailed("contribute", err)
		} else {
			ret.TransactionID = txID
		}
	}
	detail, _ := a.syncer.GetCircle(ctx, circleID)
	err = a.syncer.RecordContribution(ctx, circle.Contribution{
		CircleID:      circleID,
		MemberAddress: member,
		Cycle:         detail.Circle.CurrentCycle,
		Amount:        amount,
		TransactionID: ret.TransactionID,
	})
	if err != nil {
		a.bookkeepingFailed("contribute", err)
	}
	return ret, nil
}

// ClaimPayout claims the pot of the current cycle of an active circle
func (a *Actions) ClaimPayout(ctx context.Context, circleID string) (Result, error) {
	member, err := a.address()
	if err != nil {
		return Result{}, err
	}
	detail, found := a.syncer.GetCircle(ctx, circleID)
	if !found {
		return Result{}, fmt.Errorf("%w: circle %s", circle.ErrNotFound, circleID)
	}
	c := detail.Circle
	if c.Status != circle.StatusActive {
		return Result{}, fmt.Errorf("%w: circle is not active", circle.ErrInvalidState)
	}
	pot := c.ContributionAmount * uint64(c.MaxMembers)
	// The pot leaves the program balance in its finalize step, so there is
	// no wallet transaction to wait for
	txID := fmt.Sprintf(
		"payout_%s_%d_%d",
		circleID,
		c.CurrentCycle,
		a.syncer.now().UnixMilli(),
	)
	err = a.syncer.RecordPayout(ctx, circle.Payout{
		CircleID:      circleID,
		MemberAddress: member,
		Cycle:         c.CurrentCycle,
		Amount:        pot,
		TransactionID: txID,
	})
	if err != nil {
		a.bookkeepingFailed("claim payout", err)
	}
	return Result{
		TransactionID: txID,
		CircleID:      circleID,
		Amount:        pot,
	}, nil
}

// TransferMembership hands the connected address's membership record of a
// circle to newOwner. Ownership lives in the record, so nothing is recorded
// off chain
func (a *Actions) TransferMembership(
	ctx context.Context,
	circleID string,
	newOwner string,
) (Result, error) {
	owner, err := a.address()
	if err != nil {
		return Result{}, err
	}
	if err := wallet.ValidateAddress(newOwner); err != nil {
		return Result{}, err
	}
	if newOwner == owner {
		return Result{}, fmt.Errorf(
			"%w: cannot transfer to yourself",
			wallet.ErrInvalidAddress,
		)
	}
	membership, found, err := a.selector.MembershipRecord(ctx, a.programID, circleID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, fmt.Errorf(
			"%w: circle %s",
			wallet.ErrNoMembershipRecord,
			circleID,
		)
	}
	tx := wallet.NewTransaction(
		a.programID,
		"transfer_membership",
		membership,
		newOwner,
	)
	tx.Fee = wallet.TransferFee
	txID, err := a.wallet.ExecuteTransaction(ctx, tx)
	if err != nil {
		return Result{}, fmt.Errorf("transfer_membership: %w", err)
	}
	return Result{
		TransactionID: txID,
		CircleID:      circleID,
	}, nil
}

// Verification is the outcome of a membership proof
type Verification struct {
	Verified      bool
	TransactionID string
}

// VerifyMembership proves on chain that the connected address holds a
// membership record of the circle. Without a record nothing is submitted
// and the result is unverified
func (a *Actions) VerifyMembership(
	ctx context.Context,
	circleID string,
) (Verification, error) {
	if _, err := a.address(); err != nil {
		return Verification{}, err
	}
	membership, found, err := a.selector.MembershipRecord(ctx, a.programID, circleID)
	if err != nil {
		return Verification{}, err
	}
	if !found {
		return Verification{}, nil
	}
	tx := wallet.NewTransaction(
		a.programID,
		"verify_membership",
		membership,
		circleID,
	)
	tx.Fee = wallet.VerifyFee
	txID, err := a.wallet.ExecuteTransaction(ctx, tx)
	if err != nil {
		return Verification{}, fmt.Errorf("verify_membership: %w", err)
	}
	return Verification{
		Verified:      true,
		TransactionID: txID,
	}, nil
}

// HasMembership reports whether the wallet holds an unspent membership
// record of the circle, without submitting anything
func (a *Actions) HasMembership(ctx context.Context, circleID string) (bool, error) {
	if _, err := a.address(); err != nil {
		return false, err
	}
	_, found, err := a.selector.MembershipRecord(ctx, a.programID, circleID)
	return found, err
}
