package delivery

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ChannelSelfRegisters(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "prov-1", r.Channel("prov-1"))
	assert.Equal(t, "prov-1", r.Channel("prov-1"), "repeated lookups are stable")
}

func TestRegistry_ReconcileAliasesBothIds(t *testing.T) {
	r := NewRegistry()

	// Client subscribed under the provisional id before persistence.
	provisional := r.Channel("prov-1")

	r.Reconcile("prov-1", "durable-1")

	assert.Equal(t, provisional, r.Channel("prov-1"))
	assert.Equal(t, provisional, r.Channel("durable-1"),
		"publishes under the durable id must land on the original channel")
}

func TestRegistry_ReconcileIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Channel("prov-1")

	r.Reconcile("prov-1", "durable-1")
	first := r.Channel("durable-1")

	// A retried persistence path reconciles the same pair again.
	r.Reconcile("prov-1", "durable-1")
	assert.Equal(t, first, r.Channel("durable-1"))
	assert.Equal(t, first, r.Channel("prov-1"))
}

func TestRegistry_ReconcileBeforeFirstLookup(t *testing.T) {
	r := NewRegistry()

	// Nothing subscribed yet; the durable id still maps onto the
	// provisional channel so late subscribers under either id converge.
	r.Reconcile("prov-1", "durable-1")

	assert.Equal(t, r.Channel("prov-1"), r.Channel("durable-1"))
}

func TestRegistry_SameIdReconcileIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Reconcile("id-1", "id-1")

	assert.Equal(t, "id-1", r.Channel("id-1"))
}

func TestRegistry_Forget(t *testing.T) {
	r := NewRegistry()
	r.Channel("prov-1")
	r.Reconcile("prov-1", "durable-1")

	r.Forget("durable-1")

	// Both aliases are gone; new lookups start fresh channels.
	assert.Equal(t, "durable-1", r.Channel("durable-1"))
	assert.Equal(t, "prov-1", r.Channel("prov-1"))
}

// Publishers resolving the channel while the rekey happens must always get
// the same channel name, never a split stream.
func TestRegistry_ConcurrentResolveDuringReconcile(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		prov := fmt.Sprintf("prov-%d", round)
		durable := fmt.Sprintf("durable-%d", round)
		r.Channel(prov)

		var wg sync.WaitGroup
		channels := make([]string, 40)

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Reconcile(prov, durable)
		}()

		for i := range channels {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					channels[i] = r.Channel(prov)
				} else {
					r.Reconcile(prov, durable)
					channels[i] = r.Channel(durable)
				}
			}(i)
		}
		wg.Wait()

		for i, ch := range channels {
			assert.Equal(t, prov, ch, "resolver %d diverged in round %d", i, round)
		}
	}
}
