// Package lockmgr implements a record-level lock manager with wound-wait
// deadlock prevention: an older transaction wounds (aborts) younger
// conflicting queued requests rather than waiting on them, so no wait
// cycle can ever form.
package lockmgr

import (
	"errors"
	"sync"

	"coredb/txn"
	"coredb/types"
)

// LockMode is the mode of a lock request.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

// Errors surfaced from the three lock operations and Unlock. Each maps to
// a precheck or grant-path failure named in the lock manager's contract.
var (
	ErrLockSharedOnReadUncommitted = errors.New("lockmgr: shared locks are not taken under READ_UNCOMMITTED")
	ErrLockOnShrinking             = errors.New("lockmgr: cannot acquire a new lock while SHRINKING")
	ErrUpgradeConflict             = errors.New("lockmgr: another transaction is already upgrading this record")
	ErrTransactionAborted          = errors.New("lockmgr: transaction already aborted")
	ErrNoSuchRequest               = errors.New("lockmgr: no matching lock request to unlock")
)

type request struct {
	txnID   txn.ID
	mode    LockMode
	granted bool
}

func conflicts(a, b LockMode) bool {
	return a == Exclusive || b == Exclusive
}

type requestQueue struct {
	mu           sync.Mutex
	cond         *sync.Cond
	requests     []*request
	upgradingTxn txn.ID
	hasUpgrading bool
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{upgradingTxn: -1}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Manager maps record-ids to request queues. The top-level mutex protects
// only the map itself, during queue creation — once a queue exists, all
// further coordination happens on that queue's own mutex and condition
// variable, per the latch order in spec §5.
type Manager struct {
	mu     sync.Mutex
	queues map[types.RID]*requestQueue
}

func NewManager() *Manager {
	return &Manager{queues: make(map[types.RID]*requestQueue)}
}

func (m *Manager) queueFor(rid types.RID) *requestQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[rid]
	if !ok {
		q = newRequestQueue()
		m.queues[rid] = q
	}
	return q
}

// precheck applies the rules common to LockShared/LockExclusive/LockUpgrade:
// a SHRINKING transaction is aborted outright, an already-ABORTED
// transaction fails immediately.
func precheck(t *txn.Transaction) error {
	if t.State() == txn.Shrinking {
		t.SetState(txn.Aborted)
		return ErrLockOnShrinking
	}
	if t.State() == txn.Aborted {
		return ErrTransactionAborted
	}
	return nil
}

// killYoungerConflicting aborts every younger, conflicting request in q,
// granted or still waiting: that is the wound in wound-wait. A granted
// younger holder is marked ABORTED in place rather than evicted from the
// queue here; every other lookup at this record already skips ABORTED
// transactions' requests when checking for conflicts, so the stale entry
// behaves as released without the holder's own goroutine needing to act
// first. Caller holds q.mu.
func killYoungerConflicting(q *requestQueue, olderID txn.ID, mode LockMode, txnManager *txn.Manager) {
	wounded := false
	for _, r := range q.requests {
		if r.txnID > olderID && conflicts(r.mode, mode) {
			if younger, ok := txnManager.GetTransaction(r.txnID); ok {
				younger.SetState(txn.Aborted)
				wounded = true
			}
		}
	}
	if wounded {
		// Wake any goroutine parked in q.cond.Wait() so it re-checks its
		// own transaction's state and unwinds with ErrTransactionAborted
		// instead of sleeping past its own abort.
		q.cond.Broadcast()
	}
}

// lockGeneric implements the shared body of LockShared/LockExclusive:
// precheck, enqueue, wound younger conflicting requests, wait for older
// ones to clear, then grant or report abort.
func (m *Manager) lockGeneric(t *txn.Transaction, rid types.RID, mode LockMode, txnManager *txn.Manager) error {
	if err := precheck(t); err != nil {
		return err
	}

	q := m.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	self := &request{txnID: t.ID(), mode: mode}
	q.requests = append(q.requests, self)

	killYoungerConflicting(q, t.ID(), mode, txnManager)

	for {
		if t.State() == txn.Aborted {
			removeRequest(q, self)
			return ErrTransactionAborted
		}
		blocked := false
		for _, r := range q.requests {
			if r == self {
				continue
			}
			if r.txnID < self.txnID && conflicts(r.mode, mode) {
				if other, ok := txnManager.GetTransaction(r.txnID); ok && other.State() == txn.Aborted {
					continue
				}
				blocked = true
				break
			}
		}
		if !blocked {
			break
		}
		q.cond.Wait()
	}

	self.granted = true
	q.cond.Broadcast()
	return nil
}

func removeRequest(q *requestQueue, target *request) {
	for i, r := range q.requests {
		if r == target {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// LockShared acquires a shared lock on rid for t. Rejected under
// READ_UNCOMMITTED (no point taking a read lock an isolation level never
// needs).
func (m *Manager) LockShared(t *txn.Transaction, rid types.RID, txnManager *txn.Manager) error {
	if t.IsolationLevel() == txn.ReadUncommitted {
		return ErrLockSharedOnReadUncommitted
	}
	if err := m.lockGeneric(t, rid, Shared, txnManager); err != nil {
		return err
	}
	t.AddSharedLock(rid)
	return nil
}

// LockExclusive acquires an exclusive lock on rid for t.
func (m *Manager) LockExclusive(t *txn.Transaction, rid types.RID, txnManager *txn.Manager) error {
	if err := m.lockGeneric(t, rid, Exclusive, txnManager); err != nil {
		return err
	}
	t.AddExclusiveLock(rid)
	return nil
}

// LockUpgrade upgrades t's existing shared lock on rid to exclusive. Fails
// with ErrUpgradeConflict if another transaction is already upgrading this
// record.
func (m *Manager) LockUpgrade(t *txn.Transaction, rid types.RID, txnManager *txn.Manager) error {
	if err := precheck(t); err != nil {
		return err
	}

	q := m.queueFor(rid)
	q.mu.Lock()

	if q.hasUpgrading {
		q.mu.Unlock()
		return ErrUpgradeConflict
	}

	var self *request
	for _, r := range q.requests {
		if r.txnID == t.ID() && r.mode == Shared && r.granted {
			self = r
			break
		}
	}
	if self == nil {
		q.mu.Unlock()
		return ErrNoSuchRequest
	}

	q.hasUpgrading = true
	q.upgradingTxn = t.ID()
	self.mode = Exclusive
	self.granted = false

	killYoungerConflicting(q, t.ID(), Exclusive, txnManager)

	for {
		if t.State() == txn.Aborted {
			q.hasUpgrading = false
			q.upgradingTxn = -1
			removeRequest(q, self)
			q.mu.Unlock()
			return ErrTransactionAborted
		}
		blocked := false
		for _, r := range q.requests {
			if r == self {
				continue
			}
			if r.txnID < self.txnID && conflicts(r.mode, Exclusive) {
				if other, ok := txnManager.GetTransaction(r.txnID); ok && other.State() == txn.Aborted {
					continue
				}
				blocked = true
				break
			}
		}
		if !blocked {
			break
		}
		q.cond.Wait()
	}

	self.granted = true
	q.hasUpgrading = false
	q.upgradingTxn = -1
	q.cond.Broadcast()
	q.mu.Unlock()

	t.RemoveSharedLock(rid)
	t.AddExclusiveLock(rid)
	return nil
}

// Unlock releases t's lock on rid. Under REPEATABLE_READ, if t is still
// GROWING this transitions it to SHRINKING (the 2PL boundary: once a
// transaction gives up any lock, it may acquire no more).
func (m *Manager) Unlock(t *txn.Transaction, rid types.RID) error {
	if t.IsolationLevel() == txn.RepeatableRead && t.State() == txn.Growing {
		t.SetState(txn.Shrinking)
	}

	q := m.queueFor(rid)
	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	for i, r := range q.requests {
		if r.txnID == t.ID() {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNoSuchRequest
	}
	q.cond.Broadcast()

	t.RemoveSharedLock(rid)
	t.RemoveExclusiveLock(rid)
	return nil
}
