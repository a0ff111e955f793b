package authority

// LockCount reports how many per-document lock entries are held.
func (a *Authority) LockCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
