package conversation

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

// entry is one live session. mu serializes every operation on the machine;
// closed is set once the entry has left the directory.
type entry struct {
	mu      sync.Mutex
	machine *spark.Machine
	closed  bool
}

// directory maps session ids to live entries. Items never expire on their
// own; Sweep decides what leaves.
type directory struct {
	live *cache.Cache
}

func newDirectory() *directory {
	return &directory{live: cache.New(cache.NoExpiration, 0)}
}

func (d *directory) get(id domain.SessionID) (*entry, bool) {
	v, ok := d.live.Get(string(id))
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// add stores e unless another entry got there first, in which case the
// existing one is returned.
func (d *directory) add(id domain.SessionID, e *entry) *entry {
	if err := d.live.Add(string(id), e, cache.NoExpiration); err != nil {
		if cur, ok := d.get(id); ok {
			return cur
		}
	}
	return e
}

func (d *directory) remove(id domain.SessionID) {
	d.live.Delete(string(id))
}

func (d *directory) count() int {
	return d.live.ItemCount()
}

func (d *directory) entries() []*entry {
	items := d.live.Items()
	out := make([]*entry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(*entry))
	}
	return out
}
