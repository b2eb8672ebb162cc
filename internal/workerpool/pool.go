// Package workerpool holds the process-wide registry of worker endpoints
// (component A of SPEC_FULL.md): reservation, release, liveness probing,
// and the gRPC client pool backing each worker call.
package workerpool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/zkstage/coordinator/pkg/types"
)

// ErrNoIdleWorker is returned when no worker of the requested kind is Idle.
// A candidate that fails its dial or liveness probe makes Reserve return
// that failure instead.
var ErrNoIdleWorker = errors.New("workerpool: no idle worker available")

type workerStatus int

const (
	statusIdle workerStatus = iota
	statusBusy
)

// record is one worker's bookkeeping entry. Protected by Pool.mu.
//
// ejectedAt distinguishes "Busy because a probe failed and nobody holds a
// Lease for this worker" from "Busy because a caller holds a live Lease and
// is running a (possibly long) worker RPC". Only the former is eligible for
// Rescan: a real in-flight call can outlive the staleness window by design
// (TASK_TIMEOUT is far longer than it), and must only be freed by its own
// Release.
type record struct {
	endpoint  string
	kind      types.WorkerKind
	prover    types.ProverKind
	status    workerStatus
	ejectedAt time.Time // zero unless Busy-via-failed-probe
}

// Pool is the process-wide worker registry. One instance is shared by every
// Dispatcher; all mutation happens under mu, so reservations are O(1).
type Pool struct {
	mu       sync.Mutex
	workers  []*record
	clients  *ClientPool
	probeTO  time.Duration
	staleAge time.Duration
	proveCap int // 0 means unbounded
}

// Config describes the static set of worker endpoints this pool manages.
type Config struct {
	General    []Endpoint
	Snark      []Endpoint
	ProbeTO    time.Duration // default 5s
	StaleAfter time.Duration // Rescan window; default 30s
	ProveCap   int           // optional cap on General-kind candidates per round
}

// Endpoint names one worker process and the backend protocol it speaks.
type Endpoint struct {
	Address string
	Prover  types.ProverKind
}

// NewPool builds a Pool from static configuration, all workers starting Idle.
func NewPool(cfg Config) *Pool {
	if cfg.ProbeTO == 0 {
		cfg.ProbeTO = 5 * time.Second
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	p := &Pool{
		clients:  NewClientPool(),
		probeTO:  cfg.ProbeTO,
		staleAge: cfg.StaleAfter,
		proveCap: cfg.ProveCap,
	}
	for _, e := range cfg.General {
		p.workers = append(p.workers, &record{endpoint: e.Address, kind: types.WorkerGeneral, prover: e.Prover, status: statusIdle})
	}
	for _, e := range cfg.Snark {
		p.workers = append(p.workers, &record{endpoint: e.Address, kind: types.WorkerSnark, prover: e.Prover, status: statusIdle})
	}
	return p
}

// Lease is the handle Reserve returns: the chosen endpoint, its backend,
// and the Release func the caller must invoke exactly once.
type Lease struct {
	Endpoint string
	Backend  ProverBackend
	Release  func()
}

// Reserve picks a random Idle worker of the requested kind, flips it Busy,
// and probes it with Ping before handing it back. If the candidate list is
// capped (proveCap, applied to every kind == General reservation, whatever
// stage it is for) the choice only draws from the first proveCap entries
// post-shuffle.
//
// A probe failure leaves the worker Busy rather than reverting it to Idle:
// a stuck or crashed worker shouldn't be handed to the next reserver in
// this same round. Rescan is what eventually frees it back to Idle.
func (p *Pool) Reserve(ctx context.Context, kind types.WorkerKind) (*Lease, error) {
	p.mu.Lock()
	var candidates []*record
	for _, w := range p.workers {
		if w.kind == kind && w.status == statusIdle {
			candidates = append(candidates, w)
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if kind == types.WorkerGeneral && p.proveCap > 0 && len(candidates) > p.proveCap {
		candidates = candidates[:p.proveCap]
	}

	var chosen *record
	for _, w := range candidates {
		w.status = statusBusy
		chosen = w
		break
	}
	p.mu.Unlock()

	if chosen == nil {
		return nil, ErrNoIdleWorker
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.probeTO)
	backend, err := p.clients.Dial(probeCtx, chosen.endpoint, chosen.prover)
	if err == nil {
		_, err = backend.Ping(probeCtx)
	}
	cancel()
	if err != nil {
		p.mu.Lock()
		chosen.ejectedAt = time.Now()
		p.mu.Unlock()
		return nil, err
	}

	released := false
	return &Lease{
		Endpoint: chosen.endpoint,
		Backend:  backend,
		Release: func() {
			if released {
				return
			}
			released = true
			p.mu.Lock()
			chosen.status = statusIdle
			chosen.ejectedAt = time.Time{}
			p.mu.Unlock()
		},
	}, nil
}

// Rescan clears Busy status on any worker that was ejected by a failed
// probe more than the configured staleness window ago, invoked by the
// recovery loop's idle ticks (§4.6). Workers Busy under a live Lease are
// untouched — only Reserve's failure path sets ejectedAt.
func (p *Pool) Rescan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-p.staleAge)
	for _, w := range p.workers {
		if w.status == statusBusy && !w.ejectedAt.IsZero() && w.ejectedAt.Before(cutoff) {
			w.status = statusIdle
			w.ejectedAt = time.Time{}
		}
	}
}
