package consensus

import (
	"github.com/tos-network/tos/externalapi"
)

// eventBufferSize is the capacity of the channel Events() returns. Grounded
// on the teacher's own handler-callback model (model.OnBlockAddedToDAGHandler
// et al.), generalized to spec.md §6's buffered-channel event stream: the
// core never blocks on a slow consumer, dropping the oldest undelivered
// event instead of stalling block admission.
const eventBufferSize = 256

// Event is the closed set of notifications the consensus facade emits.
type Event interface {
	isEvent()
}

// BlockAdded reports that a block was accepted into the DAG.
type BlockAdded struct {
	Hash       externalapi.DomainHash
	TopoHeight uint64
}

func (BlockAdded) isEvent() {}

// BlockOrphaned reports that a block could not be admitted: a missing
// parent, a failed GHOSTDAG/DAA check, or a fatal storage error.
type BlockOrphaned struct {
	Hash   externalapi.DomainHash
	Reason error
}

func (BlockOrphaned) isEvent() {}

// TransactionExecuted reports one transaction's outcome within a just
// admitted block.
type TransactionExecuted struct {
	BlockHash externalapi.DomainHash
	Receipt   externalapi.DomainReceipt
}

func (TransactionExecuted) isEvent() {}

// TipChanged reports that the DAG's tip set changed as a result of a block
// admission.
type TipChanged struct {
	Tips []externalapi.DomainHash
}

func (TipChanged) isEvent() {}

// eventBus buffers outgoing events over a fixed-capacity channel, dropping
// the oldest undelivered event on overflow rather than blocking the
// admitting goroutine.
type eventBus struct {
	ch chan Event
}

func newEventBus() *eventBus {
	return &eventBus{ch: make(chan Event, eventBufferSize)}
}

func (b *eventBus) emit(event Event) {
	for {
		select {
		case b.ch <- event:
			return
		default:
		}
		select {
		case <-b.ch:
		default:
		}
	}
}

func (b *eventBus) subscribe() <-chan Event {
	return b.ch
}
