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

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/zkcircles/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBusSingleSubscriber(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(event.CircleCreatedEventType)
	eb.Publish(
		event.NewEvent(
			event.CircleCreatedEventType,
			event.CircleEvent{CircleID: "c1"},
		),
	)
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		data, ok := evt.Data.(event.CircleEvent)
		require.True(t, ok, "unexpected event data type %T", evt.Data)
		assert.Equal(t, "c1", data.CircleID)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusOtherTypeNotDelivered(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(event.PayoutEventType)
	eb.Publish(event.NewEvent(event.ContributionEventType, nil))
	select {
	case <-subCh:
		t.Fatalf("received event of another type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(event.PayoutEventType)
	eb.Unsubscribe(event.PayoutEventType, subId)
	_, ok := <-subCh
	assert.False(t, ok)
	// Publishing with no subscribers is a no-op
	eb.Publish(event.NewEvent(event.PayoutEventType, nil))
}

func TestEventBusSubscribeFuncAsync(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	var count atomic.Int32
	eb.SubscribeFunc(event.MemberJoinedEventType, func(event.Event) {
		count.Add(1)
	})
	for range 10 {
		require.True(
			t,
			eb.PublishAsync(event.NewEvent(event.MemberJoinedEventType, nil)),
		)
	}
	require.Eventually(t, func() bool {
		return count.Load() == 10
	}, 2*time.Second, 10*time.Millisecond)
	eb.Stop()
	assert.False(
		t,
		eb.PublishAsync(event.NewEvent(event.MemberJoinedEventType, nil)),
	)
}

func TestEventBusHandlerPanicRecovered(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	var count atomic.Int32
	eb.SubscribeFunc(event.CircleDissolvedEventType, func(event.Event) {
		if count.Add(1) == 1 {
			panic("boom")
		}
	})
	eb.Publish(event.NewEvent(event.CircleDissolvedEventType, nil))
	eb.Publish(event.NewEvent(event.CircleDissolvedEventType, nil))
	require.Eventually(t, func() bool {
		return count.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEventBusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	_, _ = eb.Subscribe(event.CircleCompletedEventType)
	eb.Publish(event.NewEvent(event.CircleCompletedEventType, nil))
	count, err := testutil.GatherAndCount(reg, "event_bus_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventBusStopTwice(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(event.CircleCreatedEventType)
	eb.Stop()
	eb.Stop()
	_, ok := <-subCh
	assert.False(t, ok)
}
