// Package worker implements one long-lived goroutine per agent, the
// Go-native analogue of a worker-thread pool: each worker owns its own store
// handle and in-flight document state, reachable only through its command
// channel, so a stuck document on one agent can never block another.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/teilomillet/ragingest/internal/ingest"
	"github.com/teilomillet/ragingest/internal/logging"
)

// commandKind discriminates the closed set of messages a worker accepts,
// the Go-struct analogue of a discriminated union carried over a typed
// channel instead of untyped JSON.
type commandKind int

const (
	cmdProcessDocument commandKind = iota
	cmdProcessPDFThenFragments
)

type command struct {
	kind commandKind
	opts ingest.Options
	// reply receives the command's outcome from the worker.
	reply chan outcome
}

// outcome is what a worker posts back for one command: either a completed
// Result or an error, mirroring PROCESSING_ERROR/KNOWLEDGE_ADDED.
type outcome struct {
	result ingest.Result
	err    error
}

// state is the worker's lifecycle, mirroring starting -> ready -> (processing) -> ready | terminating | failed.
type state int

const (
	stateStarting state = iota
	stateReady
	stateProcessing
	stateTerminating
	stateFailed
)

// worker is one agent's private goroutine and its communication channels.
type worker struct {
	agentID uuid.UUID
	orch    *ingest.Orchestrator
	logger  logging.Logger

	commands chan command
	ready    chan struct{}
	done     chan struct{}

	mu          sync.Mutex
	state       state
	err         error
	readyClosed bool
}

// closeReady closes w.ready exactly once, regardless of how many times it's
// called or from which goroutine. Both the normal startup path and the
// panic-recovery path in run need to close it, and a panic raised after
// startup already succeeded must not try to close it a second time.
func (w *worker) closeReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readyClosed {
		return
	}
	w.readyClosed = true
	close(w.ready)
}

// Pool manages one worker per agentId, created on demand and kept alive
// until Terminate is called or its goroutine exits. The pool map is the only state the host
// mutates directly; everything else lives inside each worker's goroutine.
type Pool struct {
	mu      sync.Mutex
	workers map[uuid.UUID]*worker
	logger  logging.Logger
}

// NewPool builds an empty worker Pool.
func NewPool(logger logging.Logger) *Pool {
	return &Pool{workers: make(map[uuid.UUID]*worker), logger: logger}
}

// Spawn starts a new worker for agentID backed by orch, whose startup
// handshake probes the embedding dimension with an Embed call through
// orch.Gateway and then ensures the collection. Spawn blocks until the worker
// posts WORKER_READY or WORKER_ERROR. A worker is dropped from the pool once
// its goroutine exits, so a later Spawn for the same agent starts a fresh
// one; Spawn for an agent that already has a worker does nothing.
func (p *Pool) Spawn(ctx context.Context, agentID uuid.UUID, orch *ingest.Orchestrator) error {
	p.mu.Lock()
	if _, exists := p.workers[agentID]; exists {
		p.mu.Unlock()
		return nil
	}
	w := &worker{
		agentID:  agentID,
		orch:     orch,
		logger:   p.logger,
		commands: make(chan command, 8),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		state:    stateStarting,
	}
	p.workers[agentID] = w
	p.mu.Unlock()

	go w.run(ctx)
	go func() {
		<-w.done
		p.mu.Lock()
		if p.workers[agentID] == w {
			delete(p.workers, agentID)
		}
		p.mu.Unlock()
	}()

	<-w.ready
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateFailed {
		p.mu.Lock()
		delete(p.workers, agentID)
		p.mu.Unlock()
		return fmt.Errorf("worker init failed for agent %s: %w", agentID, w.err)
	}
	return nil
}

// run is the worker's message loop: init handshake, then process commands
// until the channel is closed or the context is cancelled.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.mu.Lock()
			w.state = stateFailed
			w.err = fmt.Errorf("worker panicked: %v", r)
			w.mu.Unlock()
			// Safe whether the panic happened during startup (ready never
			// closed yet) or during command processing (ready already
			// closed long ago): closeReady is idempotent.
			w.closeReady()
		}
	}()

	if err := w.initDBAdapter(ctx); err != nil {
		w.mu.Lock()
		w.state = stateFailed
		w.err = err
		w.mu.Unlock()
		w.closeReady()
		return
	}

	w.mu.Lock()
	w.state = stateReady
	w.mu.Unlock()
	w.closeReady()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.state = stateTerminating
			w.mu.Unlock()
			return
		case cmd, ok := <-w.commands:
			if !ok {
				return
			}
			w.handle(ctx, cmd)
		}
	}
}

// initDBAdapter runs the startup handshake: a dimension-check embedding call
// followed by EnsureCollection with the measured width. A non-positive
// dimension fails worker init.
func (w *worker) initDBAdapter(ctx context.Context) error {
	result, err := w.orch.Gateway.Embed(ctx, "dimension_check_string")
	if err != nil {
		return fmt.Errorf("dimension probe failed: %w", err)
	}
	if len(result.Vector) <= 0 {
		return fmt.Errorf("dimension probe returned non-positive dimension")
	}
	return w.orch.Store.EnsureCollection(ctx, w.orch.Config.Collection, len(result.Vector))
}

func (w *worker) handle(ctx context.Context, cmd command) {
	w.mu.Lock()
	w.state = stateProcessing
	w.mu.Unlock()

	result, err := w.orch.Ingest(ctx, cmd.opts)

	w.mu.Lock()
	w.state = stateReady
	w.mu.Unlock()

	cmd.reply <- outcome{result: result, err: err}
}

// ProcessDocument submits a full non-PDF-first ingestion and blocks for its
// result, the synchronous analogue of the PROCESS_DOCUMENT message.
func (p *Pool) ProcessDocument(ctx context.Context, agentID uuid.UUID, opts ingest.Options) (ingest.Result, error) {
	w, err := p.ensureReady(agentID)
	if err != nil {
		return ingest.Result{}, err
	}

	reply := make(chan outcome, 1)
	select {
	case w.commands <- command{kind: cmdProcessDocument, opts: opts, reply: reply}:
	case <-ctx.Done():
		return ingest.Result{}, ctx.Err()
	case <-w.done:
		return ingest.Result{}, fmt.Errorf("worker for agent %s is no longer running", agentID)
	}

	select {
	case o := <-reply:
		return o.result, o.err
	case <-ctx.Done():
		return ingest.Result{}, ctx.Err()
	case <-w.done:
		return ingest.Result{}, fmt.Errorf("worker for agent %s stopped before replying", agentID)
	}
}

// ProcessPDFThenFragments runs the same pipeline; the two-phase
// store-then-fragment callback split from the spec's message protocol
// collapses to a single synchronous call here since Orchestrator.Ingest
// already persists the document before chunking fragments, giving the host
// the same ordering guarantee without a second message round-trip.
func (p *Pool) ProcessPDFThenFragments(ctx context.Context, agentID uuid.UUID, opts ingest.Options) (ingest.Result, error) {
	return p.ProcessDocument(ctx, agentID, opts)
}

func (p *Pool) ensureReady(agentID uuid.UUID) (*worker, error) {
	p.mu.Lock()
	w, ok := p.workers[agentID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no worker spawned for agent %s", agentID)
	}

	w.mu.Lock()
	failed := w.state == stateFailed
	w.mu.Unlock()
	if failed {
		return nil, fmt.Errorf("worker for agent %s is in a failed state", agentID)
	}
	return w, nil
}

// Terminate stops the worker for agentID, if one is running, and removes it
// from the pool.
func (p *Pool) Terminate(agentID uuid.UUID) {
	p.mu.Lock()
	w, ok := p.workers[agentID]
	if ok {
		delete(p.workers, agentID)
	}
	p.mu.Unlock()
	if ok {
		close(w.commands)
	}
}
