// Package stats provides a flat, dotted-key statistics dictionary
// collected from every timed component, generalizing the teacher's
// fixed Stats structs (timing/core.Stats, timing/pipeline.Stats) into a
// single queryable collector shared across the whole simulator.
package stats

import (
	"regexp"
	"sort"
	"strings"
)

// Collector accumulates named counters under dotted keys, e.g.
// "core0.pipeline.instructions_retired" or "core0.cache.l1d.hits".
// A handful of derived metrics (ipc, branch_accuracy_pct) are ratios
// rather than counts, so they live in a parallel float gauge table
// instead of being truncated into the integer counters map.
type Collector struct {
	counters map[string]uint64
	floats   map[string]float64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{counters: make(map[string]uint64), floats: make(map[string]float64)}
}

// Add increments the named counter by delta, creating it at 0 first if
// this is the first touch.
func (c *Collector) Add(key string, delta uint64) {
	c.counters[key] += delta
}

// Set overwrites the named counter's value directly, used for gauges
// like cache occupancy rather than monotonic counts.
func (c *Collector) Set(key string, value uint64) {
	c.counters[key] = value
}

// Get returns the named counter's current value.
func (c *Collector) Get(key string) uint64 {
	return c.counters[key]
}

// SetFloat overwrites the named gauge's value directly, for ratio
// metrics (e.g. "ipc", "branch_accuracy_pct") that don't fit the
// integer counters map.
func (c *Collector) SetFloat(key string, value float64) {
	c.floats[key] = value
}

// GetFloat returns the named float gauge's current value.
func (c *Collector) GetFloat(key string) float64 {
	return c.floats[key]
}

// Keys returns every registered counter and float gauge key, sorted, so
// output is deterministic.
func (c *Collector) Keys() []string {
	keys := make([]string, 0, len(c.counters)+len(c.floats))
	for k := range c.counters {
		keys = append(keys, k)
	}
	for k := range c.floats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FilterSubstring returns the counters whose key contains substr.
func (c *Collector) FilterSubstring(substr string) map[string]uint64 {
	out := make(map[string]uint64)
	for _, k := range c.Keys() {
		if strings.Contains(k, substr) {
			out[k] = c.counters[k]
		}
	}
	return out
}

// FilterRegex returns the counters whose key matches pattern.
func (c *Collector) FilterRegex(pattern string) (map[string]uint64, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64)
	for _, k := range c.Keys() {
		if re.MatchString(k) {
			out[k] = c.counters[k]
		}
	}
	return out, nil
}

// Snapshot returns a defensive copy of the entire counter set.
func (c *Collector) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Reset clears all counters and float gauges.
func (c *Collector) Reset() {
	c.counters = make(map[string]uint64)
	c.floats = make(map[string]float64)
}

// Merge folds another collector's (typically per-core) counters into
// this one, prefixing each key with prefix (e.g. "core0.").
func (c *Collector) Merge(prefix string, other *Collector) {
	for k, v := range other.counters {
		c.counters[prefix+k] += v
	}
}

// IPC computes instructions-per-cycle from the standard
// "instructions_retired"/"cycles" keys, returning 0 if cycles is 0.
func (c *Collector) IPC() float64 {
	cycles := c.Get("cycles")
	if cycles == 0 {
		return 0
	}
	return float64(c.Get("instructions_retired")) / float64(cycles)
}

// CPI is the reciprocal of IPC, the metric the teacher's pipeline.Stats
// reports directly.
func (c *Collector) CPI() float64 {
	retired := c.Get("instructions_retired")
	if retired == 0 {
		return 0
	}
	return float64(c.Get("cycles")) / float64(retired)
}

// HitRate computes a generic hits/(hits+misses) percentage for the given
// key prefix (e.g. "cache.l1d" looks up "cache.l1d.hits"/"cache.l1d.misses").
func (c *Collector) HitRate(prefix string) float64 {
	hits := c.Get(prefix + ".hits")
	misses := c.Get(prefix + ".misses")
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
