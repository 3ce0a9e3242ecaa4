// Package stream models the optional "data-stream collaborator" from spec
// §6: a push interface the Event Ingester can subscribe to instead of
// polling, and a publish sink the Monitor Coordinator can use to record
// score computations off-band. Both are optional — their absence simply
// means the system runs on pull-only ingestion.
package stream

import "context"

// Record is whatever the push collaborator hands back for one observation.
// Its shape is deliberately unspecified upstream (see decode.go); callers
// extract an address and a transaction hash from it defensively.
type Record interface{}

// Subscription represents one active push subscription for a wallet.
type Subscription struct {
	ID         string
	Unsubscribe func()
}

// Subscriber is the push half of the collaborator (§4.5 mode 1).
type Subscriber interface {
	Subscribe(ctx context.Context, address string, onData func(Record), onError func(error)) (Subscription, error)
}

// Publisher is the optional off-band score-publish sink (§4.8 periodic
// batch step).
type Publisher interface {
	Publish(ctx context.Context, record map[string]interface{}) error
}
