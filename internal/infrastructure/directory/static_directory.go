package directory

import (
	"context"
	"sync"
)

// StaticDirectory answers identity lookups from a fixed user list. Used in
// development and tests, where no external user service is available.
type StaticDirectory struct {
	users map[string]struct{}
	mu    sync.RWMutex
}

func NewStaticDirectory(usernames []string) *StaticDirectory {
	users := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		users[name] = struct{}{}
	}
	return &StaticDirectory{users: users}
}

func (d *StaticDirectory) Exists(ctx context.Context, name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[name]
	return ok, nil
}

// Add registers a username, for tests and dev tooling.
func (d *StaticDirectory) Add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[name] = struct{}{}
}
