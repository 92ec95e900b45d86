package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Counter tallies values per key and remembers first-seen order so rankings
// break ties the same way on every run.
type Counter[N int | float64] struct {
	counts map[string]N
	order  []string
}

// NewCounter returns an empty counter.
func NewCounter[N int | float64]() *Counter[N] {
	return &Counter[N]{counts: make(map[string]N)}
}

// Add increments key by n.
func (c *Counter[N]) Add(key string, n N) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// Inc increments key by one.
func (c *Counter[N]) Inc(key string) { c.Add(key, 1) }

// Get returns the tally for key.
func (c *Counter[N]) Get(key string) N { return c.counts[key] }

// Len returns the number of distinct keys.
func (c *Counter[N]) Len() int { return len(c.order) }

// Total returns the sum of all tallies.
func (c *Counter[N]) Total() N {
	var total N
	for _, k := range c.order {
		total += c.counts[k]
	}
	return total
}

// MostCommon returns up to n entries by descending tally; n <= 0 means all.
// Equal tallies keep first-seen order.
func (c *Counter[N]) MostCommon(n int) Ranking[N] {
	out := make(Ranking[N], 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Entry[N]{Key: k, Value: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Sorted returns all entries ordered by key using less.
func (c *Counter[N]) Sorted(less func(a, b string) bool) Ranking[N] {
	out := make(Ranking[N], 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Entry[N]{Key: k, Value: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i].Key, out[j].Key) })
	return out
}

// Entry is one key and its tally.
type Entry[N int | float64] struct {
	Key   string
	Value N
}

// Ranking is an ordered list of entries. It encodes as a JSON object whose
// keys keep the ranking order.
type Ranking[N int | float64] []Entry[N]

// MarshalJSON implements json.Marshaler.
func (r Ranking[N]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the entry keys in order.
func (r Ranking[N]) Keys() []string {
	keys := make([]string, len(r))
	for i, e := range r {
		keys[i] = e.Key
	}
	return keys
}
