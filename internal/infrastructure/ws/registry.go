package ws

import "sync"

// Registry maps a user to the set of their live connections. A user with no
// connections has no entry. Every mutation of a user's set happens under the
// write lock, and fanout happens under the read lock, so a client's send
// channel is never written after Remove has closed it.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client
	count int
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[string]*Client),
	}
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		set = make(map[string]*Client)
		r.users[c.UserID] = set
	}
	if _, exists := set[c.ID]; !exists {
		set[c.ID] = c
		r.count++
	}
}

// Remove drops c from its user's set and closes its send channel. It
// reports whether c was registered.
func (r *Registry) Remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		return false
	}
	if _, exists := set[c.ID]; !exists {
		return false
	}

	delete(set, c.ID)
	if len(set) == 0 {
		delete(r.users, c.UserID)
	}
	r.count--
	c.closeSend()
	return true
}

// ForEach calls fn for every connection of userID and returns how many
// there were. fn must not block.
func (r *Registry) ForEach(userID string, fn func(*Client)) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	for _, c := range set {
		fn(c)
	}
	return len(set)
}

// Count is the number of live connections across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) Has(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Drain removes every connection and returns them.
func (r *Registry) Drain() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Client, 0, r.count)
	for _, set := range r.users {
		for _, c := range set {
			c.closeSend()
			out = append(out, c)
		}
	}
	r.users = make(map[string]map[string]*Client)
	r.count = 0
	return out
}
