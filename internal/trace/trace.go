// Package trace is the post-mortem persistence layer: a JSONL event log per
// engine run (teacher's tasklog.Registry shape) plus a LevelDB-backed
// durable index of completed process snapshots and taxonomy-coded errors
// (spec.md §7), fed by internal/acting.Tree.Events() and
// internal/worldstate.WorldState.Taps().
package trace

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

// EventKind labels one JSONL line.
type EventKind string

const (
	KindProcessStatus EventKind = "process_status"
	KindWorldCommit   EventKind = "world_commit"
)

// Event is one line of the run's JSONL trace.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	ProcessID uint64 `json:"process_id,omitempty"`
	Status    string `json:"status,omitempty"`

	Partition string `json:"partition,omitempty"`
	StateVar  string `json:"state_var,omitempty"`
}

// LevelDB key prefixes (reduced from the teacher's four-prefix megram scheme
// to the two kinds of record this run index actually needs):
//
//	p|<pid>  → JSON-encoded process snapshot (set once the node is terminal)
//	e|<id>   → JSON-encoded taxonomy-coded EngineError
const (
	prefixProcess = "p|"
	prefixError   = "e|"
)

// Recorder is C5's durable trace sink: one JSONL file for the raw event
// stream, one LevelDB database for queryable post-mortem lookups.
type Recorder struct {
	mu      sync.Mutex
	f       *os.File
	db      *leveldb.DB
	errSeq  uint64
	closeCh chan struct{}
}

// Open creates dir if absent, opens <dir>/run.jsonl for append, and opens a
// LevelDB database at <dir>/index.
func Open(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trace: create dir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "run.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open run.jsonl: %w", err)
	}
	db, err := leveldb.OpenFile(filepath.Join(dir, "index"), nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: open leveldb index: %w", err)
	}
	return &Recorder{f: f, db: db, closeCh: make(chan struct{})}, nil
}

// Close flushes and closes both the JSONL file and the LevelDB handle.
func (r *Recorder) Close() error {
	close(r.closeCh)
	r.mu.Lock()
	defer r.mu.Unlock()
	ferr := r.f.Close()
	derr := r.db.Close()
	if ferr != nil {
		return ferr
	}
	return derr
}

func (r *Recorder) write(e Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(e)
	if err != nil {
		log.Printf("[TRACE] marshal event: %v", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.f.Write(append(b, '\n')); err != nil {
		log.Printf("[TRACE] write run.jsonl: %v", err)
	}
}

// FollowTree subscribes to tree's status events and records each one, until
// tree's event channel closes or stop fires.
func (r *Recorder) FollowTree(tree *acting.Tree, stop <-chan struct{}) {
	ch := tree.Events()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.write(Event{Kind: KindProcessStatus, ProcessID: uint64(ev.ID), Status: ev.Status.String()})
			if ev.Status.Terminal() {
				r.indexTerminalNode(tree, ev.ID)
			}
		case <-stop:
			return
		case <-r.closeCh:
			return
		}
	}
}

// FollowWorld subscribes to ws's commit stream and records each one, until
// ws's tap channel closes or stop fires.
func (r *Recorder) FollowWorld(ws *worldstate.WorldState, stop <-chan struct{}) {
	ch := ws.Taps()
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return
			}
			for _, f := range d.Facts {
				r.write(Event{Kind: KindWorldCommit, Partition: f.Partition.String(), StateVar: f.SV.String()})
			}
			if len(d.Facts) == 0 {
				for label := range d.Footprint {
					r.write(Event{Kind: KindWorldCommit, StateVar: label})
				}
			}
		case <-stop:
			return
		case <-r.closeCh:
			return
		}
	}
}

func (r *Recorder) indexTerminalNode(tree *acting.Tree, id types.ProcessId) {
	n, ok := tree.Get(id)
	if !ok {
		return
	}
	b, err := json.Marshal(n)
	if err != nil {
		log.Printf("[TRACE] marshal process snapshot: %v", err)
		return
	}
	r.mu.Lock()
	err = r.db.Put([]byte(fmt.Sprintf("%s%d", prefixProcess, uint64(id))), b, nil)
	r.mu.Unlock()
	if err != nil {
		log.Printf("[TRACE] index process snapshot: %v", err)
		return
	}
	if n.Err != nil {
		r.recordError(n.Err)
	}
}

// recordError assigns the next sequence number and indexes err under e|<id>.
func (r *Recorder) recordError(err *types.EngineError) {
	b, merr := json.Marshal(err)
	if merr != nil {
		log.Printf("[TRACE] marshal engine error: %v", merr)
		return
	}
	r.mu.Lock()
	r.errSeq++
	seq := r.errSeq
	perr := r.db.Put([]byte(fmt.Sprintf("%s%d", prefixError, seq)), b, nil)
	r.mu.Unlock()
	if perr != nil {
		log.Printf("[TRACE] index engine error: %v", perr)
	}
}

// Process returns the indexed terminal snapshot for id, if any.
func (r *Recorder) Process(id types.ProcessId) (acting.Node, bool) {
	r.mu.Lock()
	b, err := r.db.Get([]byte(fmt.Sprintf("%s%d", prefixProcess, uint64(id))), nil)
	r.mu.Unlock()
	if err != nil {
		return acting.Node{}, false
	}
	var n acting.Node
	if err := json.Unmarshal(b, &n); err != nil {
		return acting.Node{}, false
	}
	return n, true
}

// Errors returns every taxonomy-coded error recorded this run, in the order
// they were indexed.
func (r *Recorder) Errors() []*types.EngineError {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.EngineError
	iter := r.db.NewIterator(util.BytesPrefix([]byte(prefixError)), nil)
	defer iter.Release()
	for iter.Next() {
		var ee types.EngineError
		if err := json.Unmarshal(iter.Value(), &ee); err != nil {
			continue
		}
		out = append(out, &ee)
	}
	return out
}
