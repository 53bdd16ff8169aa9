package domain

import "sort"

// AddressSet is a set of distinct address strings. Each entry remembers the
// first sample point that resolved to it.
type AddressSet struct {
	items map[string]Coordinate
}

// NewAddressSet returns an empty set.
func NewAddressSet() *AddressSet {
	return &AddressSet{items: make(map[string]Coordinate)}
}

// Add inserts address unless already present. It reports whether the
// address was new.
func (s *AddressSet) Add(address string, at Coordinate) bool {
	if _, ok := s.items[address]; ok {
		return false
	}
	s.items[address] = at
	return true
}

// Contains reports whether address is in the set.
func (s *AddressSet) Contains(address string) bool {
	_, ok := s.items[address]
	return ok
}

// Len returns the number of distinct addresses.
func (s *AddressSet) Len() int { return len(s.items) }

// Sorted returns the addresses in lexical order.
func (s *AddressSet) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for a := range s.items {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Located returns the addresses with the coordinate they were found at,
// in lexical order of address.
func (s *AddressSet) Located() []LocatedAddress {
	out := make([]LocatedAddress, 0, len(s.items))
	for _, a := range s.Sorted() {
		out = append(out, LocatedAddress{Address: a, Location: s.items[a]})
	}
	return out
}

// LocatedAddress pairs an address with the point it was resolved from.
type LocatedAddress struct {
	Address  string     `json:"address"`
	Location Coordinate `json:"location"`
}
