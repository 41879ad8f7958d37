package indexer

import "sync/atomic"

// IndexLock guards a project against concurrent vectorise runs.
// Acquisition never blocks; a busy lock is reported to the caller.
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock and reports whether it was free
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run is in progress
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
