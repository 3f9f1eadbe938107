package eventbus

import (
	"testing"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe(func(ev AgentEvent) { order = append(order, 1) })
	b.Subscribe(func(ev AgentEvent) { order = append(order, 2) })
	b.Subscribe(func(ev AgentEvent) { order = append(order, 3) })

	b.Publish(AgentEvent{Type: EventStart})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected subscription-order delivery, got %v", order)
	}
}

func TestPublishIsolatesPanickingSubscriber(t *testing.T) {
	b := New()
	var secondCalled, thirdCalled bool
	b.Subscribe(func(ev AgentEvent) { panic("boom") })
	b.Subscribe(func(ev AgentEvent) { secondCalled = true })
	b.Subscribe(func(ev AgentEvent) { thirdCalled = true })

	b.Publish(AgentEvent{Type: EventMessage})

	if !secondCalled || !thirdCalled {
		t.Fatal("expected remaining subscribers to run despite a panicking one")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(func(ev AgentEvent) { calls++ })
	b.Publish(AgentEvent{Type: EventFinal})
	unsub()
	b.Publish(AgentEvent{Type: EventFinal})

	if calls != 1 {
		t.Fatalf("expected exactly one delivery before unsubscribe, got %d", calls)
	}
}

func TestSubscribeDuringPublishDoesNotRace(t *testing.T) {
	b := New()
	b.Subscribe(func(ev AgentEvent) {
		b.Subscribe(func(ev AgentEvent) {})
	})
	// Publish must not deadlock or panic even though a handler mutates
	// subscriptions mid-delivery; the new handler simply won't see this event.
	b.Publish(AgentEvent{Type: EventStart})
	b.Publish(AgentEvent{Type: EventStart})
}
