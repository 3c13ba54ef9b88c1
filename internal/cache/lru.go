package cache

import (
	"container/list"

	"daybook/internal"
)

// SheetCache is a bounded LRU over loaded sheets, keyed by file stem and
// sheet name. The oldest load is evicted once capacity is hit.
type SheetCache struct {
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type entry struct {
	key   string
	sheet *internal.Sheet
}

func New(capacity int) *SheetCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SheetCache{
		capacity: capacity,
		order:    list.New(),
		entries:  map[string]*list.Element{},
	}
}

func Key(fileStem, sheetName string) string {
	return fileStem + "_" + sheetName
}

func (c *SheetCache) Put(key string, sheet *internal.Sheet) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).sheet = sheet
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&entry{key: key, sheet: sheet})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *SheetCache) Get(key string) (*internal.Sheet, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).sheet, true
}

func (c *SheetCache) Len() int { return c.order.Len() }

// Keys returns cache keys from most to least recently used.
func (c *SheetCache) Keys() []string {
	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).key)
	}
	return out
}
