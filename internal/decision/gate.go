// Package decision implements the dependency-change approval checkpoint: it
// inspects evidence for dependency-manager files, and — depending on the
// caller's mode — either blocks the Run executor on a delivered decision or
// hands back a "pending" signal for the autobuild controller to act on
// later.
package decision

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the human decision on a pending dependency-change request.
type Result string

const (
	Approved Result = "approved"
	Rejected Result = "rejected"
)

// dependencyBasenames is the closed, configuration-defined set of
// package-manager files that trigger the gate. Matching is by basename only,
// so a dependency file nested at any path still trips the gate.
var dependencyBasenames = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
}

// Decision is merged into run.json once a pending request resolves.
type Decision struct {
	Type      string    `json:"type"`
	Result    Result    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
}

// MatchedFiles returns the subset of changedFiles whose basename is a
// dependency-manager file, sorted. An empty result means the gate is a
// no-op for this step.
func MatchedFiles(changedFiles []string) []string {
	var out []string
	for _, f := range changedFiles {
		if dependencyBasenames[filepath.Base(f)] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// pendingRequest tracks one outstanding approval, process-wide keyed by
// runId.
type pendingRequest struct {
	requestID string
	files     []string
	resultCh  chan Result // buffered 1; only read once
}

// Gate holds the single process-wide pending-decision map.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func NewGate() *Gate {
	return &Gate{pending: make(map[string]*pendingRequest)}
}

// Open registers a pending request for runID and returns its request id, a
// fresh UUID distinct from runID so a decision-approval UI can correlate a
// specific gate hit even if the same run trips the gate more than once
// across its lifetime. Callers in synchronous mode follow with WaitSync;
// callers in asynchronous (autobuild) mode return immediately and let the
// request sit until Submit or Cancel is called.
func (g *Gate) Open(runID string, files []string) string {
	requestID := uuid.NewString()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[runID] = &pendingRequest{requestID: requestID, files: files, resultCh: make(chan Result, 1)}
	return requestID
}

// RequestID returns the request id assigned when the pending request for
// runID was opened, or "" if none is pending.
func (g *Gate) RequestID(runID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req, ok := g.pending[runID]; ok {
		return req.requestID
	}
	return ""
}

// IsPending reports whether runID currently has an outstanding request.
func (g *Gate) IsPending(runID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[runID]
	return ok
}

// WaitSync blocks the caller until a decision is delivered via Submit, the
// run is cancelled via Cancel, or ctx is done (treated the same as Cancel:
// rejected). It removes the pending entry before returning.
func (g *Gate) WaitSync(ctx context.Context, runID string) Result {
	g.mu.Lock()
	req, ok := g.pending[runID]
	g.mu.Unlock()
	if !ok {
		return Rejected
	}

	select {
	case result := <-req.resultCh:
		g.clear(runID)
		return result
	case <-ctx.Done():
		g.Cancel(runID)
		return Rejected
	}
}

// Submit delivers a human decision for runID. It returns false if no
// request is pending under that id (already resolved, or never opened).
func (g *Gate) Submit(runID string, result Result) bool {
	g.mu.Lock()
	req, ok := g.pending[runID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case req.resultCh <- result:
	default:
	}
	return true
}

// Cancel implicitly resolves a pending decision as rejected, for when the
// run is cancelled while a decision is outstanding.
func (g *Gate) Cancel(runID string) {
	g.Submit(runID, Rejected)
	g.clear(runID)
}

// Take atomically removes and returns the pending request's files for
// runID, for a caller resolving a decision that no in-process WaitSync is
// blocked on — an async-mode run whose record has already been finalized
// to disk. Returns ok=false if runID has no pending request, which is the
// normal state once the owning process has restarted. Executor.SubmitDecision
// calls it only to drop the in-memory request; the files in the merged
// decision always come from the persisted run record.
func (g *Gate) Take(runID string) (files []string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[runID]
	if !ok {
		return nil, false
	}
	delete(g.pending, runID)
	return req.files, true
}

// Files returns the files recorded against a pending request, or nil if
// none is pending.
func (g *Gate) Files(runID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req, ok := g.pending[runID]; ok {
		return req.files
	}
	return nil
}

func (g *Gate) clear(runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, runID)
}
