package comm

import (
	"sort"
	"sync"
)

// Split partitions the communicator: ranks passing the same color form a new
// communicator, ordered by key (ties broken by old rank). Every rank must
// call Split collectively and in the same program order; successive splits
// are matched by sequence number.
func (c *Comm) Split(color, key int) *Comm {
	seq := c.splitSeq
	c.splitSeq++

	cl := c.cluster
	cl.mu.Lock()
	st, ok := cl.splits[seq]
	if !ok {
		st = newSplitState(cl.size)
		cl.splits[seq] = st
	}
	cl.mu.Unlock()

	st.deposit(c.rank, color, key)
	return st.subComm(c.rank, color)
}

type splitEntry struct {
	rank, color, key int
}

type splitState struct {
	mu        sync.Mutex
	cond      *sync.Cond
	remaining int
	entries   []splitEntry
	subs      map[int]*Cluster
}

func newSplitState(size int) *splitState {
	st := &splitState{
		remaining: size,
		entries:   make([]splitEntry, 0, size),
		subs:      make(map[int]*Cluster),
	}
	st.cond = sync.NewCond(&st.mu)
	return st
}

func (st *splitState) deposit(rank, color, key int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries = append(st.entries, splitEntry{rank: rank, color: color, key: key})
	st.remaining--
	if st.remaining == 0 {
		st.cond.Broadcast()
	}
	for st.remaining > 0 {
		st.cond.Wait()
	}
}

func (st *splitState) subComm(rank, color int) *Comm {
	st.mu.Lock()
	defer st.mu.Unlock()

	members := make([]splitEntry, 0, len(st.entries))
	for _, e := range st.entries {
		if e.color == color {
			members = append(members, e)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].key != members[j].key {
			return members[i].key < members[j].key
		}
		return members[i].rank < members[j].rank
	})

	sub, ok := st.subs[color]
	if !ok {
		// Size is positive, NewCluster cannot fail here.
		sub, _ = NewCluster(len(members))
		st.subs[color] = sub
	}
	for newRank, e := range members {
		if e.rank == rank {
			return sub.Comm(newRank)
		}
	}
	panic("comm: splitting rank not found among its own color's members")
}
