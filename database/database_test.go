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

package database_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database"
	"github.com/blinklabs-io/zkcircles/database/models"
	"github.com/blinklabs-io/zkcircles/event"
	"github.com/blinklabs-io/zkcircles/fieldcodec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCreator = "aleo1creator"
	testMember  = "aleo1member"
)

func newTestDB(t *testing.T, opts ...func(*database.Config)) *database.Database {
	t.Helper()
	codec, err := fieldcodec.New([]byte(fieldcodec.DevelopmentKey))
	require.NoError(t, err)
	cfg := database.Config{Codec: codec}
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newCircle(id string, maxMembers uint8) circle.NewCircle {
	return circle.NewCircle{
		CircleID:            id,
		Name:                "Test circle " + id,
		Creator:             testCreator,
		ContributionAmount:  1000,
		MaxMembers:          maxMembers,
		CycleDurationBlocks: 100,
		Salt:                "salt",
		TransactionID:       "at1create",
	}
}

func TestCreateAndGetCircle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 4)))

	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	c := detail.Circle
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Test circle c1", c.Name)
	assert.Equal(t, testCreator, c.Creator)
	assert.Equal(t, circle.StatusForming, c.Status)
	assert.Equal(t, uint8(1), c.MembersJoined)
	assert.Equal(t, uint8(0), c.CurrentCycle)
	assert.Equal(t, uint8(4), c.TotalCycles)
	assert.Nil(t, c.StartBlock)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, testCreator, detail.Members[0].Address)
	assert.Equal(t, uint8(1), detail.Members[0].JoinOrder)
	assert.True(t, detail.Members[0].Active)

	// Addresses and names are stored encrypted
	var row models.Circle
	require.NoError(
		t,
		db.Metadata().DB().Where("circle_id = ?", "c1").First(&row).Error,
	)
	assert.NotEqual(t, testCreator, row.Creator)
	assert.NotEqual(t, "Test circle c1", row.Name)
	var member models.Member
	require.NoError(
		t,
		db.Metadata().DB().Where("circle_id = ?", "c1").First(&member).Error,
	)
	assert.NotEqual(t, testCreator, member.MemberAddress)
	assert.Equal(t, "salt", member.Salt)
}

func TestCreateCircleValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	nc := newCircle("c1", 4)
	nc.Creator = ""
	require.ErrorIs(t, db.CreateCircle(ctx, nc), circle.ErrInvalidState)
	require.ErrorIs(
		t,
		db.CreateCircle(ctx, newCircle("c2", 40)),
		circle.ErrInvalidState,
	)
	_, err := db.GetCircle(ctx, "c2")
	require.ErrorIs(t, err, circle.ErrNotFound)

	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 4)))
	require.ErrorIs(
		t,
		db.CreateCircle(ctx, newCircle("c1", 4)),
		circle.ErrDuplicate,
	)
}

func TestGetCircleNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetCircle(context.Background(), "missing")
	require.ErrorIs(t, err, circle.ErrNotFound)
}

func TestAddMemberActivatesWhenFull(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 3)))

	joinOrder, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: "aleo1a"})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), joinOrder)

	// The same address cannot take a second seat
	_, err = db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: "aleo1a"})
	require.ErrorIs(t, err, circle.ErrInvalidState)

	joinOrder, err = db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: "aleo1b"})
	require.NoError(t, err)
	assert.Equal(t, uint8(3), joinOrder)

	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
	assert.Equal(t, uint8(1), detail.Circle.CurrentCycle)
	assert.Equal(t, uint8(3), detail.Circle.MembersJoined)
	require.NotNil(t, detail.Circle.StartBlock)
	require.Len(t, detail.Members, 3)
	for i, m := range detail.Members {
		assert.Equal(t, uint8(i+1), m.JoinOrder)
	}

	_, err = db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: "aleo1c"})
	require.ErrorIs(t, err, circle.ErrInvalidState)
	_, err = db.AddMember(ctx, "missing", circle.NewMember{MemberAddress: "aleo1c"})
	require.ErrorIs(t, err, circle.ErrNotFound)
}

func TestAddMemberConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	const seats = 20
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", seats)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var orders []int
	for i := range seats - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			joinOrder, err := db.AddMember(
				ctx,
				"c1",
				circle.NewMember{MemberAddress: fmt.Sprintf("aleo1member%d", i)},
			)
			assert.NoError(t, err)
			mu.Lock()
			orders = append(orders, int(joinOrder))
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(orders)
	expected := make([]int, 0, seats-1)
	for i := 2; i <= seats; i++ {
		expected = append(expected, i)
	}
	assert.Equal(t, expected, orders)
	assert.Equal(t, 0, db.LockCount())

	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint8(seats), detail.Circle.MembersJoined)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
}

func TestGetCircleRepairsCounters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)

	// Simulate drifted counters from an interrupted write
	require.NoError(
		t,
		db.Metadata().DB().Model(&models.Circle{}).
			Where("circle_id = ?", "c1").
			Updates(map[string]any{
				"members_joined": 1,
				"status":         0,
				"current_cycle":  0,
				"start_block":    nil,
			}).Error,
	)

	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), detail.Circle.MembersJoined)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
	assert.Equal(t, uint8(1), detail.Circle.CurrentCycle)
	require.NotNil(t, detail.Circle.StartBlock)

	// The repair was persisted
	var row models.Circle
	require.NoError(
		t,
		db.Metadata().DB().Where("circle_id = ?", "c1").First(&row).Error,
	)
	assert.Equal(t, uint8(2), row.MembersJoined)
	assert.Equal(t, uint8(circle.StatusActive), row.Status)
	assert.Equal(t, detail.Circle.StartBlock, row.StartBlock)

	// A second read changes nothing
	again, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, detail.Circle, again.Circle)
}

func TestRecordContribution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)

	rec := circle.Contribution{
		CircleID:      "c1",
		MemberAddress: testMember,
		Cycle:         1,
		Amount:        1000,
		TransactionID: "at1contrib",
	}
	require.NoError(t, db.RecordContribution(ctx, rec))
	require.ErrorIs(t, db.RecordContribution(ctx, rec), circle.ErrDuplicate)

	rec.Cycle = 2
	require.NoError(t, db.RecordContribution(ctx, rec))

	stranger := rec
	stranger.MemberAddress = "aleo1stranger"
	require.ErrorIs(t, db.RecordContribution(ctx, stranger), circle.ErrNotFound)
	missing := rec
	missing.CircleID = "missing"
	require.ErrorIs(t, db.RecordContribution(ctx, missing), circle.ErrNotFound)

	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, detail.Members, 2)
	assert.Equal(t, uint64(0), detail.Members[0].TotalContributed)
	assert.Empty(t, detail.Members[0].ContributedCycles)
	assert.Equal(t, uint64(2000), detail.Members[1].TotalContributed)
	assert.Equal(t, []int{1, 2}, detail.Members[1].ContributedCycles)
}

func TestRecordPayoutAdvancesAndCompletes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))

	payout := circle.Payout{
		CircleID:      "c1",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        2000,
	}
	require.ErrorIs(t, db.RecordPayout(ctx, payout), circle.ErrInvalidState)

	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)

	require.NoError(t, db.RecordPayout(ctx, payout))
	require.ErrorIs(t, db.RecordPayout(ctx, payout), circle.ErrDuplicate)
	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
	assert.True(t, detail.Members[0].HasReceivedPayout)
	assert.False(t, detail.Members[1].HasReceivedPayout)

	require.NoError(t, db.RecordPayout(ctx, circle.Payout{
		CircleID:      "c1",
		MemberAddress: testMember,
		Cycle:         2,
		Amount:        2000,
	}))
	detail, err = db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, circle.StatusCompleted, detail.Circle.Status)
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)

	require.ErrorIs(t, db.RecordPayout(ctx, circle.Payout{
		CircleID:      "c1",
		MemberAddress: testMember,
		Cycle:         3,
	}), circle.ErrInvalidState)
}

// fullCircle creates an Active circle with the creator and members in join
// order
func fullCircle(t *testing.T, db *database.Database, id string, members ...string) {
	t.Helper()
	ctx := context.Background()
	// #nosec G115
	require.NoError(t, db.CreateCircle(ctx, newCircle(id, uint8(len(members)+1))))
	for _, m := range members {
		_, err := db.AddMember(ctx, id, circle.NewMember{MemberAddress: m})
		require.NoError(t, err)
	}
}

func TestRecordPayoutFollowsTurnOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fullCircle(t, db, "c1", testMember, "aleo1third")

	testDefs := []struct {
		name   string
		payout circle.Payout
	}{
		{
			name: "future cycle",
			payout: circle.Payout{
				CircleID:      "c1",
				MemberAddress: "aleo1third",
				Cycle:         3,
				Amount:        3000,
			},
		},
		{
			name: "past cycle",
			payout: circle.Payout{
				CircleID:      "c1",
				MemberAddress: testCreator,
				Cycle:         0,
				Amount:        3000,
			},
		},
		{
			name: "not the member's turn",
			payout: circle.Payout{
				CircleID:      "c1",
				MemberAddress: testMember,
				Cycle:         1,
				Amount:        3000,
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			require.ErrorIs(
				t,
				db.RecordPayout(ctx, testDef.payout),
				circle.ErrInvalidState,
			)
			detail, err := db.GetCircle(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, uint8(1), detail.Circle.CurrentCycle)
			for _, m := range detail.Members {
				assert.False(t, m.HasReceivedPayout)
			}
		})
	}

	// The rejected payouts leave every cycle payable in order
	for cycle, addr := range []string{testCreator, testMember, "aleo1third"} {
		require.NoError(t, db.RecordPayout(ctx, circle.Payout{
			CircleID:      "c1",
			MemberAddress: addr,
			Cycle:         uint8(cycle + 1), // #nosec G115
			Amount:        3000,
		}))
	}
	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, circle.StatusCompleted, detail.Circle.Status)
	assert.Equal(t, uint8(3), detail.Circle.CurrentCycle)
}

func TestRecordPayoutRejectsRepeatRecipient(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fullCircle(t, db, "c1", testMember, "aleo1third")
	require.NoError(t, db.RecordPayout(ctx, circle.Payout{
		CircleID:      "c1",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        3000,
	}))

	// Drift the recipient flag so only the paid check can catch it
	gdb := db.Metadata().DB()
	require.NoError(t, gdb.Model(&models.Member{}).
		Where("circle_id = ? AND join_order = ?", "c1", 2).
		Update("has_received_payout", true).Error)
	require.ErrorIs(t, db.RecordPayout(ctx, circle.Payout{
		CircleID:      "c1",
		MemberAddress: testMember,
		Cycle:         2,
		Amount:        3000,
	}), circle.ErrInvalidState)
	detail, err := db.GetCircle(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)
}

func TestDissolveCircle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 3)))
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	require.NoError(t, db.RecordContribution(ctx, circle.Contribution{
		CircleID:      "c1",
		MemberAddress: testMember,
		Cycle:         1,
		Amount:        1000,
	}))

	require.ErrorIs(t, db.DissolveCircle(ctx, "c1", ""), circle.ErrInvalidState)
	require.ErrorIs(t, db.DissolveCircle(ctx, "missing", testCreator), circle.ErrNotFound)
	require.ErrorIs(t, db.DissolveCircle(ctx, "c1", testMember), circle.ErrForbidden)
	require.NoError(t, db.DissolveCircle(ctx, "c1", testCreator))

	_, err = db.GetCircle(ctx, "c1")
	require.ErrorIs(t, err, circle.ErrNotFound)
	for _, model := range []any{&models.Member{}, &models.Contribution{}} {
		var count int64
		require.NoError(
			t,
			db.Metadata().DB().Model(model).
				Where("circle_id = ?", "c1").
				Count(&count).Error,
		)
		assert.Zero(t, count)
	}
}

func TestDissolveActiveCircle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	require.ErrorIs(
		t,
		db.DissolveCircle(ctx, "c1", testCreator),
		circle.ErrInvalidState,
	)
	_, err = db.GetCircle(ctx, "c1")
	require.NoError(t, err)
}

func TestListCircles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c3"} {
		created := base.Add(time.Duration(i) * time.Hour)
		db.SetClock(func() time.Time { return created })
		require.NoError(t, db.CreateCircle(ctx, newCircle(id, 2)))
	}
	// c2 becomes active with 2 members
	_, err := db.AddMember(ctx, "c2", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)

	list, err := db.ListCircles(ctx, circle.Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(list.Circles))
	for _, c := range list.Circles {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c3", "c2", "c1"}, ids)
	assert.Equal(t, circle.Stats{
		TotalCircles:  3,
		ActiveMembers: 4,
		// c1 and c3: 1000 * 1 * 1, c2: 1000 * 2 * 1
		TotalVolume:      4000,
		CompletedCircles: 0,
	}, list.Stats)

	active := circle.StatusActive
	list, err = db.ListCircles(ctx, circle.Filter{Status: &active})
	require.NoError(t, err)
	require.Len(t, list.Circles, 1)
	assert.Equal(t, "c2", list.Circles[0].ID)
	assert.Equal(t, 1, list.Stats.TotalCircles)

	list, err = db.ListCircles(ctx, circle.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list.Circles, 2)
}

func TestCirclesForAddress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	other := newCircle("c2", 3)
	other.Creator = "aleo1other"
	require.NoError(t, db.CreateCircle(ctx, other))
	unrelated := newCircle("c3", 3)
	unrelated.Creator = "aleo1other"
	require.NoError(t, db.CreateCircle(ctx, unrelated))

	// testMember joins c1, filling it, and c2
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	_, err = db.AddMember(ctx, "c2", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	require.NoError(t, db.RecordContribution(ctx, circle.Contribution{
		CircleID:      "c1",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        1000,
	}))

	circles, err := db.CirclesForAddress(ctx, testMember)
	require.NoError(t, err)
	require.Len(t, circles, 2)
	byID := make(map[string]circle.Circle)
	for _, c := range circles {
		byID[c.ID] = c
	}
	assert.Contains(t, byID, "c1")
	assert.Contains(t, byID, "c2")
	// Active circle, seat 2 while cycle 1 is running
	assert.False(t, byID["c1"].IsYourTurn)
	assert.True(t, byID["c1"].NeedsContribution)
	assert.False(t, byID["c2"].NeedsContribution)

	circles, err = db.CirclesForAddress(ctx, testCreator)
	require.NoError(t, err)
	require.Len(t, circles, 1)
	assert.True(t, circles[0].IsYourTurn)
	assert.False(t, circles[0].NeedsContribution)
	assert.Equal(t, uint64(1000), circles[0].TotalContributed)

	circles, err = db.CirclesForAddress(ctx, "aleo1nobody")
	require.NoError(t, err)
	assert.Empty(t, circles)
	assert.NotNil(t, circles)
}

func TestMockData(t *testing.T) {
	db := newTestDB(t, func(cfg *database.Config) {
		cfg.MockData = true
	})
	ctx := context.Background()
	assert.True(t, db.Mock())

	list, err := db.ListCircles(ctx, circle.Filter{})
	require.NoError(t, err)
	require.Len(t, list.Circles, 2)
	assert.Equal(t, database.MockCircleForming, list.Circles[0].ID)
	assert.Equal(t, database.MockCircleActive, list.Circles[1].ID)
	assert.Equal(t, circle.Stats{
		TotalCircles:     2,
		ActiveMembers:    6,
		TotalVolume:      10000000*2*1 + 5000000*4*2,
		CompletedCircles: 0,
	}, list.Stats)

	// Seeded counters are consistent, so reading repairs nothing
	detail, err := db.GetCircle(ctx, database.MockCircleActive)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), detail.Circle.MembersJoined)
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)
	require.Len(t, detail.Members, 4)
	assert.True(t, detail.Members[0].HasReceivedPayout)
	assert.Equal(t, []int{1}, detail.Members[0].ContributedCycles)
}

func TestLifecycleEvents(t *testing.T) {
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	_, activated := eventBus.Subscribe(event.CircleActivatedEventType)
	_, dissolved := eventBus.Subscribe(event.CircleDissolvedEventType)
	db := newTestDB(t, func(cfg *database.Config) {
		cfg.EventBus = eventBus
	})
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	_, err := db.AddMember(ctx, "c1", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	select {
	case evt := <-activated:
		data, ok := evt.Data.(event.CircleEvent)
		require.True(t, ok)
		assert.Equal(t, "c1", data.CircleID)
		assert.Equal(t, uint8(1), data.Cycle)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for activation event")
	}

	require.NoError(t, db.CreateCircle(ctx, newCircle("c2", 2)))
	require.NoError(t, db.DissolveCircle(ctx, "c2", testCreator))
	select {
	case evt := <-dissolved:
		assert.Equal(t, "c2", evt.Data.(event.CircleEvent).CircleID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for dissolve event")
	}
}

func TestOperationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	db := newTestDB(t, func(cfg *database.Config) {
		cfg.PromRegistry = reg
	})
	ctx := context.Background()
	require.NoError(t, db.CreateCircle(ctx, newCircle("c1", 2)))
	_, err := db.GetCircle(ctx, "missing")
	require.Error(t, err)
	count, err := testutil.GatherAndCount(reg, "gateway_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewRequiresCodec(t *testing.T) {
	_, err := database.New(database.Config{})
	require.Error(t, err)
}
