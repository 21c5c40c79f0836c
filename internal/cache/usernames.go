package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// UsernameIndex caches username to user ID lookups in process. Usernames are
// fixed at registration, so an entry never needs invalidating. Only resolved
// names are stored.
type UsernameIndex struct {
	lru *lru.LRU[string, uint]
}

// NewUsernameIndex returns an index holding at most size names.
func NewUsernameIndex(size int, ttl time.Duration) *UsernameIndex {
	if size <= 0 {
		size = 1024
	}
	return &UsernameIndex{lru: lru.NewLRU[string, uint](size, nil, ttl)}
}

// Lookup splits names into cached IDs and the names still to resolve.
func (x *UsernameIndex) Lookup(names []string) (map[string]uint, []string) {
	found := make(map[string]uint, len(names))
	if x == nil {
		return found, names
	}
	var missing []string
	for _, name := range names {
		if id, ok := x.lru.Get(name); ok {
			found[name] = id
			continue
		}
		missing = append(missing, name)
	}
	return found, missing
}

// Remember stores the ID for username.
func (x *UsernameIndex) Remember(username string, id uint) {
	if x == nil {
		return
	}
	x.lru.Add(username, id)
}

// Len reports the number of cached names.
func (x *UsernameIndex) Len() int {
	if x == nil {
		return 0
	}
	return x.lru.Len()
}
