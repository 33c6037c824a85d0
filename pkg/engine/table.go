package engine

import (
	"sync"
	"time"
)

// tidSpace is the number of distinct transaction IDs.
const tidSpace = 1 << 16

// pendingTable holds the transactions waiting for a reply. One mutex
// serializes ID allocation, insertion, reply matching and expiry, so a
// reply can never match an ID that is being reused.
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint16]*Transaction
	next    uint16
	limit   int
}

func newPendingTable(limit int) *pendingTable {
	if limit <= 0 || limit > tidSpace {
		limit = tidSpace
	}
	return &pendingTable{
		entries: make(map[uint16]*Transaction),
		limit:   limit,
	}
}

// insert assigns tx the next free transaction ID and calls prepare with it.
// The transaction is stored only if prepare succeeds.
func (p *pendingTable) insert(tx *Transaction, prepare func(tid uint16) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) >= p.limit {
		return ErrTooManyTransactions
	}
	tid := p.next
	for {
		if _, used := p.entries[tid]; !used {
			break
		}
		tid++
	}
	if err := prepare(tid); err != nil {
		return err
	}
	tx.id = tid
	p.entries[tid] = tx
	p.next = tid + 1
	return nil
}

// matchAndRemove removes and returns the transaction with the given ID,
// or nil if none is pending.
func (p *pendingTable) matchAndRemove(tid uint16) *Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.entries[tid]
	if !ok {
		return nil
	}
	delete(p.entries, tid)
	return tx
}

// sweepExpired removes and returns every transaction whose deadline is not
// after now.
func (p *pendingTable) sweepExpired(now time.Time) []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []*Transaction
	for tid, tx := range p.entries {
		if !tx.deadline.After(now) {
			expired = append(expired, tx)
			delete(p.entries, tid)
		}
	}
	return expired
}

// abortAll empties the table and returns its former contents.
func (p *pendingTable) abortAll() []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := make([]*Transaction, 0, len(p.entries))
	for _, tx := range p.entries {
		all = append(all, tx)
	}
	p.entries = make(map[uint16]*Transaction)
	return all
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
