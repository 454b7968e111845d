package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coredb/txn"
	"coredb/types"
)

func TestLockShared_TwoReadersDoNotBlock(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	t1 := tm.Begin(txn.RepeatableRead)
	t2 := tm.Begin(txn.RepeatableRead)
	rid := types.RID{PageID: 1}

	require.NoError(t, lm.LockShared(t1, rid, tm))
	require.NoError(t, lm.LockShared(t2, rid, tm))
	require.True(t, t1.HasSharedLock(rid))
	require.True(t, t2.HasSharedLock(rid))
}

func TestLockShared_RejectedUnderReadUncommitted(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	t1 := tm.Begin(txn.ReadUncommitted)
	rid := types.RID{PageID: 1}

	err := lm.LockShared(t1, rid, tm)
	require.ErrorIs(t, err, ErrLockSharedOnReadUncommitted)
}

func TestLockExclusive_OlderWoundsYoungerHolder(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	older := tm.Begin(txn.RepeatableRead)   // id 0
	younger := tm.Begin(txn.RepeatableRead) // id 1
	rid := types.RID{PageID: 1}

	require.NoError(t, lm.LockExclusive(younger, rid, tm))
	require.Equal(t, txn.Growing, younger.State())

	// older arrives second but, per wound-wait, wounds the younger
	// transaction's already-granted lock instead of waiting behind it.
	require.NoError(t, lm.LockExclusive(older, rid, tm))
	require.Equal(t, txn.Aborted, younger.State())
	require.True(t, older.HasExclusiveLock(rid))
}

func TestLockExclusive_WoundsYoungerQueuedWaiter(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	oldest := tm.Begin(txn.RepeatableRead)   // id 0
	middle := tm.Begin(txn.RepeatableRead)   // id 1
	youngest := tm.Begin(txn.RepeatableRead) // id 2
	rid := types.RID{PageID: 1}

	require.NoError(t, lm.LockExclusive(oldest, rid, tm))

	youngestDone := make(chan error, 1)
	go func() {
		youngestDone <- lm.LockExclusive(youngest, rid, tm)
	}()
	time.Sleep(20 * time.Millisecond) // let youngest queue and start waiting on oldest

	middleDone := make(chan error, 1)
	go func() {
		// middle is older than youngest: arriving wounds youngest's queued
		// wait, then middle itself waits behind oldest's granted lock.
		middleDone <- lm.LockExclusive(middle, rid, tm)
	}()
	time.Sleep(20 * time.Millisecond)

	err := <-youngestDone
	require.ErrorIs(t, err, ErrTransactionAborted)
	require.Equal(t, txn.Aborted, youngest.State())

	require.NoError(t, lm.Unlock(oldest, rid))
	require.NoError(t, <-middleDone)
	require.True(t, middle.HasExclusiveLock(rid))
}

func TestLockUpgrade_ConflictWhenAlreadyUpgrading(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	t1 := tm.Begin(txn.RepeatableRead)
	t2 := tm.Begin(txn.RepeatableRead)
	rid := types.RID{PageID: 1}

	require.NoError(t, lm.LockShared(t1, rid, tm))
	require.NoError(t, lm.LockShared(t2, rid, tm))

	done := make(chan error, 1)
	go func() {
		done <- lm.LockUpgrade(t1, rid, tm)
	}()
	time.Sleep(20 * time.Millisecond)

	err := lm.LockUpgrade(t2, rid, tm)
	require.ErrorIs(t, err, ErrUpgradeConflict)

	require.NoError(t, lm.Unlock(t2, rid))
	require.NoError(t, <-done)
	require.True(t, t1.HasExclusiveLock(rid))
}

func TestUnlock_TransitionsRepeatableReadToShrinking(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	t1 := tm.Begin(txn.RepeatableRead)
	rid := types.RID{PageID: 1}

	require.NoError(t, lm.LockShared(t1, rid, tm))
	require.Equal(t, txn.Growing, t1.State())

	require.NoError(t, lm.Unlock(t1, rid))
	require.Equal(t, txn.Shrinking, t1.State())
}

func TestPrecheck_AbortsOnShrinkingLockAttempt(t *testing.T) {
	lm := NewManager()
	tm := txn.NewManager()
	t1 := tm.Begin(txn.RepeatableRead)
	rid1 := types.RID{PageID: 1}
	rid2 := types.RID{PageID: 2}

	require.NoError(t, lm.LockShared(t1, rid1, tm))
	require.NoError(t, lm.Unlock(t1, rid1)) // now SHRINKING

	err := lm.LockShared(t1, rid2, tm)
	require.ErrorIs(t, err, ErrLockOnShrinking)
	require.Equal(t, txn.Aborted, t1.State())
}
