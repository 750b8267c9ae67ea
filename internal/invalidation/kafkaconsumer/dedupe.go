package kafkaconsumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type sceneDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newSceneDedupe(size int) *sceneDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, time.Time](size)
	return &sceneDedupe{lru: c}
}

// returns true if ts is newer than the last applied event for key
func (d *sceneDedupe) shouldApply(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return false
	}
	d.lru.Add(key, ts)
	return true
}
