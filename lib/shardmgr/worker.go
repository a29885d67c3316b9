package shardmgr

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
)

// MessageHandler processes one opaque routed payload against the shard
// it was addressed to. It always runs on the worker goroutine that owns
// the shard, so it never needs to synchronize against a sibling
// worker - the "cooperative within that thread" guarantee of spec.md
// §5. A nil return means "no response owed."
type MessageHandler func(s *shard.Shard, payload []byte) []byte

type workKind uint8

const (
	workAssign workKind = iota
	workRoute
	workCron
	workSplit
	workStop
)

// splitOutcome is a workSplit item's result: the two successors on
// success, or the error PerformSplit returned.
type splitOutcome struct {
	data *shard.SplitData
	err  error
}

type workItem struct {
	kind   workKind
	target uuid.UUID
	route  *RouteMessage
	respCh chan []byte // non-nil for workRoute callers that want the handler's reply
	assign *shard.Shard
	split  *SplitRequest
	result chan splitOutcome // non-nil for workSplit
}

// worker owns a disjoint subset of the node's shards. Every shard it
// owns is only ever touched from its single run goroutine, grounded on
// the teacher's per-shard xsync dispatch map (rpc/server.rpcServer)
// generalized from "one store per shard id" to "one worker goroutine
// owning many shards."
type worker struct {
	idx     int
	inbox   chan workItem
	handler MessageHandler

	shards map[uuid.UUID]*shard.Shard
	load   atomic.Int64

	onCron func(id uuid.UUID, s *shard.Shard)
}

func newWorker(idx int, handler MessageHandler) *worker {
	return &worker{
		idx:     idx,
		inbox:   make(chan workItem, 64),
		handler: handler,
		shards:  make(map[uuid.UUID]*shard.Shard),
	}
}

// run is the worker's message loop. It returns once it receives
// workStop, after which the manager no longer routes to it.
func (w *worker) run() {
	for item := range w.inbox {
		switch item.kind {
		case workAssign:
			w.shards[item.target] = item.assign
			w.load.Add(1)
		case workRoute:
			s, ok := w.shards[item.target]
			if !ok || w.handler == nil {
				if item.respCh != nil {
					item.respCh <- nil
				}
				continue
			}
			resp := w.handler(s, item.route.Payload)
			if item.respCh != nil {
				item.respCh <- resp
			}
		case workSplit:
			s, ok := w.shards[item.target]
			if !ok {
				item.result <- splitOutcome{err: fmt.Errorf("shard %s not hosted on this worker", item.target)}
				continue
			}
			data, err := s.PerformSplit(item.split.SplitKey, item.split.OldShardVersion, item.split.NewLHSShardVersion, item.split.NewRHSShardVersion)
			if err != nil {
				item.result <- splitOutcome{err: err}
				continue
			}
			delete(w.shards, item.target)
			if w.load.Load() > 0 {
				w.load.Add(-1)
			}
			item.result <- splitOutcome{data: data}
		case workCron:
			for id, s := range w.shards {
				s.CollectGarbage()
				if w.onCron != nil {
					w.onCron(id, s)
				}
			}
		case workStop:
			return
		}
	}
}

func (w *worker) submit(item workItem) { w.inbox <- item }
