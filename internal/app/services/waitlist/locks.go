package waitlist

import "sync"

// projectLocks serializes score and position writes per project so
// concurrent joins and verifications cannot interleave a read-modify-write.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for projectID, creating it on first use, and
// returns the unlock function.
func (p *projectLocks) Lock(projectID string) func() {
	p.mu.Lock()
	l, ok := p.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[projectID] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}
