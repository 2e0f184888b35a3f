package repository

// LockEntries exposes the tracked per-session lock count to tests.
func LockEntries(s *MemStore) int { return s.lockEntries() }
