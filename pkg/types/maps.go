package types

import "sort"

// CopyMisses returns an independent copy of a miss counter map
func CopyMisses(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LinkCounts tallies feeder links by status
func (s *Snapshot) LinkCounts() map[FeederStatus]int {
	counts := map[FeederStatus]int{
		FeederStatusLinked: 0,
		FeederStatusNone:   0,
		FeederStatusError:  0,
	}
	for _, link := range s.FeederLinks {
		counts[link.Status]++
	}
	return counts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedDenoms returns the rate table's denoms in lexical order
func (r ExchangeRateTable) SortedDenoms() []string {
	return sortedKeys(r)
}
