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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/zkcircles/circle"
	"github.com/blinklabs-io/zkcircles/database"
	"github.com/blinklabs-io/zkcircles/fieldcodec"
	"github.com/blinklabs-io/zkcircles/mirror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCreator = "aleo1creator"
	testMember  = "aleo1member"
)

// memStore keeps the mirror blob in memory
type memStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *memStore) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memStore) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// downRemote fails every call like an unreachable gateway
type downRemote struct{}

var errDown = fmt.Errorf("%w: connection refused", circle.ErrUnavailable)

func (downRemote) ListCircles(context.Context, circle.Filter) (circle.List, error) {
	return circle.List{}, errDown
}

func (downRemote) GetCircle(context.Context, string) (circle.Detail, error) {
	return circle.Detail{}, errDown
}

func (downRemote) CirclesForAddress(context.Context, string) ([]circle.Circle, error) {
	return nil, errDown
}

func (downRemote) CreateCircle(context.Context, circle.NewCircle) error {
	return errDown
}

func (downRemote) AddMember(context.Context, string, circle.NewMember) (uint8, error) {
	return 0, errDown
}

func (downRemote) RecordContribution(context.Context, circle.Contribution) error {
	return errDown
}

func (downRemote) RecordPayout(context.Context, circle.Payout) error {
	return errDown
}

func (downRemote) DissolveCircle(context.Context, string, string) error {
	return errDown
}

// slowRemote blocks until the call context expires
type slowRemote struct {
	downRemote
}

func (slowRemote) ListCircles(ctx context.Context, _ circle.Filter) (circle.List, error) {
	<-ctx.Done()
	return circle.List{}, ctx.Err()
}

func newTestGateway(t *testing.T) *database.Database {
	t.Helper()
	codec, err := fieldcodec.New([]byte(fieldcodec.DevelopmentKey))
	require.NoError(t, err)
	db, err := database.New(database.Config{Codec: codec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestSyncer(t *testing.T, remote Remote, m *mirror.Mirror, opts ...func(*Config)) *Syncer {
	t.Helper()
	if m == nil {
		m = mirror.New(&memStore{}, nil)
	}
	cfg := Config{
		Remote:       remote,
		Mirror:       m,
		PromRegistry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func newCircle(id string, maxMembers uint8) circle.NewCircle {
	return circle.NewCircle{
		CircleID:            id,
		Name:                "Circle " + id,
		Creator:             testCreator,
		ContributionAmount:  1000,
		MaxMembers:          maxMembers,
		CycleDurationBlocks: 100,
	}
}

func TestNewRequiresMirror(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestListFallbackWellFormed(t *testing.T) {
	for _, remote := range []Remote{downRemote{}, nil} {
		s := newTestSyncer(t, remote, nil)
		list := s.ListCircles(context.Background(), circle.Filter{})
		require.NotNil(t, list.Circles)
		assert.Empty(t, list.Circles)
		assert.Equal(t, circle.Stats{}, list.Stats)
	}
}

func TestListFallbackSeedData(t *testing.T) {
	s := newTestSyncer(t, downRemote{}, nil, func(cfg *Config) {
		cfg.SeedData = true
	})
	list := s.ListCircles(context.Background(), circle.Filter{})
	require.Len(t, list.Circles, 3)
	assert.Equal(t, "Neighborhood Fund", list.Circles[0].Name)
	assert.Equal(t, 3, list.Stats.TotalCircles)
	assert.Equal(t, 15, list.Stats.ActiveMembers)
	// 10M*3*1 + 5M*4*2 + 25M*8*5
	assert.Equal(t, uint64(1_070_000_000), list.Stats.TotalVolume)
	assert.Equal(t, 0, list.Stats.CompletedCircles)

	active := circle.StatusActive
	list = s.ListCircles(context.Background(), circle.Filter{Status: &active, Limit: 1})
	require.Len(t, list.Circles, 1)
	assert.Equal(t, "Family Savings", list.Circles[0].Name)

	// Mirrored circles replace the seed data
	require.NoError(t, s.CreateCircle(context.Background(), newCircle("1field", 3)))
	list = s.ListCircles(context.Background(), circle.Filter{})
	require.Len(t, list.Circles, 1)
	assert.Equal(t, "1field", list.Circles[0].ID)

	assert.Equal(
		t,
		float64(3),
		testutil.ToFloat64(s.metrics.fallbacks.WithLabelValues("ListCircles")),
	)
	assert.Equal(
		t,
		float64(3),
		testutil.ToFloat64(s.metrics.remoteErrors.WithLabelValues("ListCircles")),
	)
}

func TestReadsMergeIntoMirror(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	require.NoError(t, gw.CreateCircle(ctx, newCircle("1field", 2)))
	_, err := gw.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	require.NoError(t, gw.RecordContribution(ctx, circle.Contribution{
		CircleID:      "1field",
		MemberAddress: testMember,
		Cycle:         1,
		Amount:        1000,
	}))

	m := mirror.New(&memStore{}, nil)
	online := newTestSyncer(t, gw, m)
	detail, found := online.GetCircle(ctx, "1field")
	require.True(t, found)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)

	st := m.Load()
	assert.Equal(t, []string{testCreator, testMember}, st.Members("1field"))
	assert.True(t, st.HasContribution("1field", testMember, 1))

	offline := newTestSyncer(t, downRemote{}, m)
	local, found := offline.GetCircle(ctx, "1field")
	require.True(t, found)
	assert.Equal(t, detail.Circle.ID, local.Circle.ID)
	assert.Equal(t, circle.StatusActive, local.Circle.Status)
	require.Len(t, local.Members, 2)
	assert.Equal(t, testMember, local.Members[1].Address)
	assert.Equal(t, uint8(2), local.Members[1].JoinOrder)
	assert.Equal(t, uint64(1000), local.Members[1].TotalContributed)
	assert.Equal(t, []int{1}, local.Members[1].ContributedCycles)

	list := online.ListCircles(ctx, circle.Filter{})
	require.Len(t, list.Circles, 1)
	mine := online.CirclesForAddress(ctx, testMember)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].NeedsContribution)

	// The mirrored copy does not carry per-address flags
	c, ok := m.Load().Circle("1field")
	require.True(t, ok)
	assert.Zero(t, c.TotalContributed)
}

func TestGetCircleUnknown(t *testing.T) {
	s := newTestSyncer(t, downRemote{}, nil)
	_, found := s.GetCircle(context.Background(), "nope")
	assert.False(t, found)

	seeded := newTestSyncer(t, downRemote{}, nil, func(cfg *Config) {
		cfg.SeedData = true
	})
	detail, found := seeded.GetCircle(context.Background(), "nope")
	require.True(t, found)
	assert.Equal(t, "nope", detail.Circle.ID)
	assert.Equal(t, "Sample Circle", detail.Circle.Name)
	assert.Len(t, detail.Members, 6)
}

func TestGetCircleNotFoundEvicts(t *testing.T) {
	ctx := context.Background()
	m := mirror.New(&memStore{}, nil)
	offline := newTestSyncer(t, downRemote{}, m)
	require.NoError(t, offline.CreateCircle(ctx, newCircle("gone", 3)))
	_, ok := m.Load().Circle("gone")
	require.True(t, ok)

	online := newTestSyncer(t, newTestGateway(t), m, func(cfg *Config) {
		cfg.SeedData = true
	})
	_, found := online.GetCircle(ctx, "gone")
	assert.False(t, found)
	_, ok = m.Load().Circle("gone")
	assert.False(t, ok)
	assert.Empty(t, m.Load().Members("gone"))
}

func TestWritesDuringOutage(t *testing.T) {
	ctx := context.Background()
	s := newTestSyncer(t, downRemote{}, nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 2)))
	joinOrder, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), joinOrder)

	detail, found := s.GetCircle(ctx, "1field")
	require.True(t, found)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
	assert.Equal(t, uint8(1), detail.Circle.CurrentCycle)
	assert.Equal(t, uint8(2), detail.Circle.MembersJoined)
	require.NotNil(t, detail.Circle.StartBlock)
	assert.Equal(t, uint64(now.UnixMilli()), *detail.Circle.StartBlock)

	contribution := circle.Contribution{
		CircleID:      "1field",
		MemberAddress: testMember,
		Cycle:         1,
		Amount:        1000,
	}
	require.NoError(t, s.RecordContribution(ctx, contribution))
	require.NoError(t, s.RecordContribution(ctx, contribution))
	assert.Len(t, s.Mirror().Load().Contributions, 1)

	payout := circle.Payout{
		CircleID:      "1field",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        2000,
	}
	require.NoError(t, s.RecordPayout(ctx, payout))
	require.NoError(t, s.RecordPayout(ctx, payout))
	detail, _ = s.GetCircle(ctx, "1field")
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)

	payout.Cycle = 2
	payout.MemberAddress = testMember
	require.NoError(t, s.RecordPayout(ctx, payout))
	detail, _ = s.GetCircle(ctx, "1field")
	assert.Equal(t, circle.StatusCompleted, detail.Circle.Status)
	assert.Equal(t, uint8(2), detail.Circle.CurrentCycle)

	assert.Equal(
		t,
		float64(1),
		testutil.ToFloat64(s.metrics.remoteErrors.WithLabelValues("CreateCircle")),
	)
	assert.Equal(
		t,
		float64(3),
		testutil.ToFloat64(s.metrics.remoteErrors.WithLabelValues("RecordPayout")),
	)
}

func TestAddMemberRespectsMirroredSeats(t *testing.T) {
	testDefs := []struct {
		name   string
		remote Remote
	}{
		{name: "no remote"},
		{name: "remote down", remote: downRemote{}},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestSyncer(t, testDef.remote, nil)
			require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 2)))
			joinOrder, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: "aleo1b"})
			require.NoError(t, err)
			assert.Equal(t, uint8(2), joinOrder)

			_, err = s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: "aleo1c"})
			require.ErrorIs(t, err, circle.ErrInvalidState)

			st := s.Mirror().Load()
			c, ok := st.Circle("1field")
			require.True(t, ok)
			assert.Equal(t, uint8(2), c.MembersJoined)
			assert.Equal(t, circle.StatusActive, c.Status)
			assert.Equal(t, []string{testCreator, "aleo1b"}, st.Members("1field"))
		})
	}
}

func TestAddMemberCancelledCircle(t *testing.T) {
	ctx := context.Background()
	s := newTestSyncer(t, nil, nil)
	c := newCircle("1field", 3).Circle(time.Now())
	c.Status = circle.StatusCancelled
	require.NoError(t, s.Mirror().Update(func(st *mirror.State) error {
		st.UpsertCircle(c)
		return nil
	}))
	_, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.ErrorIs(t, err, circle.ErrInvalidState)
	assert.False(t, s.Mirror().Load().IsMember("1field", testMember))
}

func TestAddMemberRejectedByRemoteReleasesSeat(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	require.NoError(t, gw.CreateCircle(ctx, newCircle("1field", 2)))
	_, err := gw.AddMember(ctx, "1field", circle.NewMember{MemberAddress: "aleo1early"})
	require.NoError(t, err)

	// The mirror still sees a free seat the remote already filled
	s := newTestSyncer(t, gw, nil)
	require.NoError(t, s.Mirror().Update(func(st *mirror.State) error {
		st.UpsertCircle(newCircle("1field", 2).Circle(time.Now()))
		st.AddMember("1field", testCreator)
		return nil
	}))
	_, err = s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.ErrorIs(t, err, circle.ErrInvalidState)

	st := s.Mirror().Load()
	assert.Equal(t, []string{testCreator}, st.Members("1field"))
	c, ok := st.Circle("1field")
	require.True(t, ok)
	assert.Equal(t, uint8(1), c.MembersJoined)
	assert.Equal(t, circle.StatusForming, c.Status)
}

func TestCreateCircleKeepsMirroredState(t *testing.T) {
	ctx := context.Background()
	s := newTestSyncer(t, downRemote{}, nil)
	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 2)))
	_, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)

	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 2)))
	st := s.Mirror().Load()
	c, ok := st.Circle("1field")
	require.True(t, ok)
	assert.Equal(t, circle.StatusActive, c.Status)
	assert.Equal(t, uint8(2), c.MembersJoined)
	assert.Len(t, st.Members("1field"), 2)
}

func TestCirclesForAddressFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestSyncer(t, downRemote{}, nil)
	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 2)))
	require.NoError(t, s.CreateCircle(ctx, newCircle("2field", 4)))
	_, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	require.NoError(t, s.RecordContribution(ctx, circle.Contribution{
		CircleID:      "1field",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        1000,
	}))

	mine := s.CirclesForAddress(ctx, testCreator)
	require.Len(t, mine, 2)
	assert.Equal(t, "1field", mine[0].ID)
	assert.Equal(t, uint64(1000), mine[0].TotalContributed)
	assert.True(t, mine[0].IsYourTurn)
	assert.False(t, mine[0].NeedsContribution)
	// Forming circles carry no turn flags
	assert.False(t, mine[1].IsYourTurn)

	theirs := s.CirclesForAddress(ctx, testMember)
	require.Len(t, theirs, 1)
	assert.False(t, theirs[0].IsYourTurn)
	assert.True(t, theirs[0].NeedsContribution)

	assert.Empty(t, s.CirclesForAddress(ctx, "aleo1stranger"))
}

func TestValidationErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := newTestSyncer(t, gw, nil)

	require.ErrorIs(t, s.CreateCircle(ctx, circle.NewCircle{CircleID: "x"}), circle.ErrInvalidState)
	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 3)))
	require.ErrorIs(t, s.CreateCircle(ctx, newCircle("1field", 3)), circle.ErrDuplicate)

	_, err := s.AddMember(ctx, "missing", circle.NewMember{MemberAddress: testMember})
	require.ErrorIs(t, err, circle.ErrNotFound)

	err = s.RecordContribution(ctx, circle.Contribution{
		CircleID:      "1field",
		MemberAddress: "aleo1stranger",
		Cycle:         1,
		Amount:        1,
	})
	require.ErrorIs(t, err, circle.ErrNotFound)

	err = s.RecordPayout(ctx, circle.Payout{
		CircleID:      "1field",
		MemberAddress: testCreator,
		Cycle:         1,
		Amount:        1,
	})
	require.ErrorIs(t, err, circle.ErrInvalidState)

	// Dissolve checks run against the mirror before anything is removed
	require.ErrorIs(t, s.DissolveCircle(ctx, "1field", ""), circle.ErrInvalidState)
	require.ErrorIs(t, s.DissolveCircle(ctx, "1field", testMember), circle.ErrForbidden)
	_, ok := s.Mirror().Load().Circle("1field")
	assert.True(t, ok)

	require.NoError(t, s.DissolveCircle(ctx, "1field", testCreator))
	_, ok = s.Mirror().Load().Circle("1field")
	assert.False(t, ok)
	_, err = gw.GetCircle(ctx, "1field")
	require.ErrorIs(t, err, circle.ErrNotFound)

	// Only the remote knows this circle
	require.NoError(t, gw.CreateCircle(ctx, newCircle("2field", 3)))
	require.ErrorIs(t, s.DissolveCircle(ctx, "2field", testMember), circle.ErrForbidden)
}

func TestJoinOrderFromRemote(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	require.NoError(t, gw.CreateCircle(ctx, newCircle("1field", 4)))
	_, err := gw.AddMember(ctx, "1field", circle.NewMember{MemberAddress: "aleo1early"})
	require.NoError(t, err)

	// The mirror only knows the creator, the remote assigns seat 3
	s := newTestSyncer(t, gw, nil)
	require.NoError(t, s.Mirror().Update(func(st *mirror.State) error {
		st.UpsertCircle(newCircle("1field", 4).Circle(time.Now()))
		st.AddMember("1field", testCreator)
		return nil
	}))
	joinOrder, err := s.AddMember(ctx, "1field", circle.NewMember{MemberAddress: testMember})
	require.NoError(t, err)
	assert.Equal(t, uint8(3), joinOrder)
}

func TestRemoteTimeout(t *testing.T) {
	s := newTestSyncer(t, slowRemote{}, nil, func(cfg *Config) {
		cfg.Timeout = 20 * time.Millisecond
	})
	start := time.Now()
	list := s.ListCircles(context.Background(), circle.Filter{})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotNil(t, list.Circles)
	assert.Equal(
		t,
		float64(1),
		testutil.ToFloat64(s.metrics.remoteErrors.WithLabelValues("ListCircles")),
	)
}

func TestMirrorBackedByBadger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := mirror.OpenBlobStore(dir, nil)
	require.NoError(t, err)
	m := mirror.New(store, nil)
	s := newTestSyncer(t, nil, m)
	require.NoError(t, s.CreateCircle(ctx, newCircle("1field", 3)))
	require.NoError(t, m.Close())

	store, err = mirror.OpenBlobStore(dir, nil)
	require.NoError(t, err)
	m = mirror.New(store, nil)
	t.Cleanup(func() { _ = m.Close() })
	s = newTestSyncer(t, nil, m)
	detail, found := s.GetCircle(ctx, "1field")
	require.True(t, found)
	assert.Equal(t, []circle.Member{{
		Address:   testCreator,
		JoinOrder: 1,
		Active:    true,
	}}, detail.Members)
}

func TestRemoteFailedClassification(t *testing.T) {
	s := newTestSyncer(t, downRemote{}, nil)
	assert.True(t, s.remoteFailed("op", circle.ErrForbidden))
	assert.False(t, s.remoteFailed("op", errDown))
	assert.False(t, s.remoteFailed("op", errNoRemote))
	assert.False(t, s.remoteFailed("op", errors.New("boom")))
}
