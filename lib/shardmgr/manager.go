package shardmgr

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shardgraph/shardgraph/lib/graph/shard"
	"github.com/shardgraph/shardgraph/lib/shardmap"
)

// CoordinatorClient is the "external consensus module" spec.md §4.10
// treats as a black box: it resolves leadership itself and reports
// back whether this node guessed wrong so the manager can retry on a
// later tick, never blocking its own loop waiting for that retry.
type CoordinatorClient interface {
	SendHeartbeat(ctx context.Context, req *HeartbeatRequest) (resp *HeartbeatResponse, retryLeader bool, err error)
	ForwardSplit(ctx context.Context, req *SplitRequest) error
	Close() error
}

// Options configures a new ShardManager.
type Options struct {
	Self        shardmap.Address
	Coordinator CoordinatorClient
	Handler     MessageHandler
	NumWorkers  int           // defaults to 4
	CronInterval time.Duration // defaults to a random point in [100, 200]ms per spec.md §4.10
}

// ShardManager runs on each storage node with a fixed pool of worker
// goroutines, per spec.md §4.10. A shard is assigned to exactly one
// worker (least-loaded on first contact); many shards run in parallel
// across workers, but each shard is only ever touched by its one
// owning worker.
type ShardManager struct {
	self    shardmap.Address
	coord   CoordinatorClient
	handler MessageHandler

	workers []*worker
	owner   *xsync.MapOf[uuid.UUID, int] // shard uuid -> index into workers

	cronInterval time.Duration

	mu                sync.Mutex
	pendingSplits     []SuggestedSplitInfo
	uninitializedRSMs []uuid.UUID // assigned locally, not yet acked by the coordinator

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(opts Options) *ShardManager {
	n := opts.NumWorkers
	if n <= 0 {
		n = 4
	}
	interval := opts.CronInterval
	if interval <= 0 {
		interval = time.Duration(100+rand.Intn(100)) * time.Millisecond
	}

	m := &ShardManager{
		self:         opts.Self,
		coord:        opts.Coordinator,
		handler:      opts.Handler,
		owner:        xsync.NewMapOf[uuid.UUID, int](),
		cronInterval: interval,
		stopCh:       make(chan struct{}),
	}
	m.workers = make([]*worker, n)
	for i := range m.workers {
		w := newWorker(i, opts.Handler)
		w.onCron = m.noteSplitCandidate
		m.workers[i] = w
	}
	return m
}

// noteSplitCandidate is a worker's cron callback: it asks the shard for
// its own split opinion and, if any, queues it for the next heartbeat.
func (m *ShardManager) noteSplitCandidate(id uuid.UUID, s *shard.Shard) {
	key, ok := s.ShouldSplit()
	if !ok {
		return
	}
	m.RecordSplitSuggestion(SuggestedSplitInfo{ShardUUID: id, SplitKey: key, Version: s.Version()})
}

// Start launches every worker goroutine and the cron loop.
func (m *ShardManager) Start() {
	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *worker) {
			defer m.wg.Done()
			w.run()
		}(w)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.cronLoop()
	}()
}

// Stop asks every worker to drain, stops the cron loop, and waits for
// both to exit.
func (m *ShardManager) Stop() {
	close(m.stopCh)
	for _, w := range m.workers {
		w.submit(workItem{kind: workStop})
	}
	m.wg.Wait()
}

// AssignShard registers a shard with whichever worker currently owns
// the fewest shards, per spec.md §4.10's least-loaded assignment, and
// queues it as an uninitialized RSM to report on the next heartbeat.
func (m *ShardManager) AssignShard(id uuid.UUID, s *shard.Shard) {
	w := m.leastLoaded()
	w.submit(workItem{kind: workAssign, target: id, assign: s})
	m.owner.Store(id, w.idx)

	m.mu.Lock()
	m.uninitializedRSMs = append(m.uninitializedRSMs, id)
	m.mu.Unlock()
}

func (m *ShardManager) leastLoaded() *worker {
	best := m.workers[0]
	for _, w := range m.workers[1:] {
		if w.load.Load() < best.load.Load() {
			best = w
		}
	}
	return best
}

// Dispatch routes an inbound message to the worker owning its target
// shard uuid. Returns false if no worker on this node currently owns
// that shard.
func (m *ShardManager) Dispatch(msg RouteMessage) bool {
	idx, ok := m.owner.Load(msg.To.UUID)
	if !ok {
		return false
	}
	m.workers[idx].submit(workItem{kind: workRoute, target: msg.To.UUID, route: &msg})
	return true
}

// DispatchAndWait behaves like Dispatch but blocks for the handler's
// reply, for callers (the RPC server) that must return a synchronous
// response over the wire. Returns ok=false if no worker on this node
// owns the target shard.
func (m *ShardManager) DispatchAndWait(msg RouteMessage) (resp []byte, ok bool) {
	idx, ok := m.owner.Load(msg.To.UUID)
	if !ok {
		return nil, false
	}
	respCh := make(chan []byte, 1)
	m.workers[idx].submit(workItem{kind: workRoute, target: msg.To.UUID, route: &msg, respCh: respCh})
	return <-respCh, true
}

// ApplySplitRequest materializes a coordinator-approved split on the
// worker that owns req.ShardUUID: it runs the shard's own PerformSplit
// on that worker's goroutine (so the split never races a concurrent
// accessor on the same shard), then installs the two successors under
// their coordinator-assigned uuids and retires the parent - spec.md
// §4.8 step 7 ("the shard manager, which installs two new shards and
// retires the parent").
func (m *ShardManager) ApplySplitRequest(req *SplitRequest) error {
	idx, ok := m.owner.Load(req.ShardUUID)
	if !ok {
		return fmt.Errorf("shard %s not hosted on this node", req.ShardUUID)
	}

	result := make(chan splitOutcome, 1)
	m.workers[idx].submit(workItem{kind: workSplit, target: req.ShardUUID, split: req, result: result})
	outcome := <-result
	if outcome.err != nil {
		return outcome.err
	}

	m.owner.Delete(req.ShardUUID)
	m.AssignShard(req.UUIDMapping.LHS, outcome.data.LHS)
	m.AssignShard(req.UUIDMapping.RHS, outcome.data.RHS)
	return nil
}

// RecordSplitSuggestion queues a local split candidate for the next
// heartbeat.
func (m *ShardManager) RecordSplitSuggestion(info SuggestedSplitInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSplits = append(m.pendingSplits, info)
}

// cronLoop sends a heartbeat and dispatches a Cron tick to every worker
// on a bounded interval, per spec.md §4.10 ("bounded interval [100,
// 200] ms").
func (m *ShardManager) cronLoop() {
	ticker := time.NewTicker(m.cronInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			for _, w := range m.workers {
				w.submit(workItem{kind: workCron})
			}
			m.heartbeat()
		}
	}
}

// heartbeat sends the current node state to the coordinator and
// applies its response. A failed send or a leader redirect is
// swallowed - the manager retries on the next tick rather than
// blocking its loop, per spec.md §4.10.
func (m *ShardManager) heartbeat() {
	m.mu.Lock()
	req := &HeartbeatRequest{
		From:            m.self,
		InitializedRSMs: append([]uuid.UUID(nil), m.uninitializedRSMs...),
		SuggestedSplits: append([]SuggestedSplitInfo(nil), m.pendingSplits...),
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cronInterval)
	defer cancel()

	resp, retryLeader, err := m.coord.SendHeartbeat(ctx, req)
	if err != nil || retryLeader || resp == nil {
		return
	}
	m.applyHeartbeatResponse(resp)
}

// applyHeartbeatResponse is spec.md §4.10's "apply the coordinator's
// response" step: initialize newly-assigned shards and forward
// approved splits to their source shard's RSM leader.
func (m *ShardManager) applyHeartbeatResponse(resp *HeartbeatResponse) {
	if !resp.Success {
		return
	}

	m.mu.Lock()
	m.uninitializedRSMs = removeAcked(m.uninitializedRSMs, resp.AcknowledgedInitializedRSMs)
	m.pendingSplits = removeApproved(m.pendingSplits, resp.ShardsToSplit)
	m.mu.Unlock()

	for _, init := range resp.ShardsToInitialize {
		s := shard.New(shard.Options{
			PrimaryLabel: init.LabelID,
			MinPK:        init.MinKey,
			MaxPK:        init.MaxKey,
		})
		m.AssignShard(init.UUID, s)
	}

	for _, split := range resp.ShardsToSplit {
		req := &SplitRequest{
			ShardUUID:          split.UUIDMapping.Source,
			SplitKey:           split.SplitKey,
			OldShardVersion:    split.OldShardVersion,
			NewLHSShardVersion: split.NewLHSShardVersion,
			NewRHSShardVersion: split.NewRHSShardVersion,
			UUIDMapping:        split.UUIDMapping,
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cronInterval)
		_ = m.coord.ForwardSplit(ctx, req) // best-effort; coordinator re-issues on failure
		cancel()
	}
}

func removeAcked(pending, acked []uuid.UUID) []uuid.UUID {
	if len(acked) == 0 {
		return pending
	}
	ackedSet := make(map[uuid.UUID]struct{}, len(acked))
	for _, id := range acked {
		ackedSet[id] = struct{}{}
	}
	out := pending[:0:0]
	for _, id := range pending {
		if _, gone := ackedSet[id]; !gone {
			out = append(out, id)
		}
	}
	return out
}

func removeApproved(pending []SuggestedSplitInfo, approved []ShardToSplit) []SuggestedSplitInfo {
	if len(approved) == 0 {
		return pending
	}
	approvedSet := make(map[uuid.UUID]struct{}, len(approved))
	for _, a := range approved {
		approvedSet[a.UUIDMapping.Source] = struct{}{}
	}
	out := pending[:0:0]
	for _, p := range pending {
		if _, gone := approvedSet[p.ShardUUID]; !gone {
			out = append(out, p)
		}
	}
	return out
}
