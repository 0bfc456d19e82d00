// Package idgen issues version stamps for mutable blocks.
//
// A stamp is a 64-bit hybrid logical clock value:
//
//	41 bits: milliseconds since Epoch
//	10 bits: node id
//	12 bits: sequence
//
// Stamps from one Stamper are strictly increasing, and after Observe they
// exceed every stamp observed, so a local rewrite always supersedes what the
// node has already seen from other writers.
package idgen

import (
	"errors"
	"sync"
)

const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift = sequenceBits
	timeShift = sequenceBits + nodeBits

	// Epoch is 2024-01-01 00:00:00 UTC in milliseconds.
	Epoch = 1704067200000
)

var ErrNodeIDTooLarge = errors.New("node ID too large")

// Stamper generates version stamps.
type Stamper struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   uint64
	lastTime uint64
	sequence uint64
}

// New creates a Stamper for nodeID. A nil clock uses the system clock.
func New(nodeID int64, clock Clock) (*Stamper, error) {
	if nodeID < 0 || nodeID > int64(maxNodeID) {
		return nil, ErrNodeIDTooLarge
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	return &Stamper{clock: clock, nodeID: uint64(nodeID)}, nil
}

// NodeIDFor folds an arbitrary node name into the node id range.
func NodeIDFor(name string) int64 {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return int64(h % (maxNodeID + 1))
}

// Next returns the next stamp. When the clock stalls or steps backwards the
// logical part keeps counting.
func (s *Stamper) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now() - Epoch
	if now < 0 {
		now = 0
	}

	if uint64(now) > s.lastTime {
		s.lastTime = uint64(now)
		s.sequence = 0
	} else {
		s.sequence++
		if s.sequence > maxSequence {
			s.lastTime++
			s.sequence = 0
		}
	}

	return s.lastTime<<timeShift | s.nodeID<<nodeShift | s.sequence
}

// Observe advances the clock past stamp.
func (s *Stamper) Observe(stamp uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Node bits sit above the sequence, so only a later millisecond is
	// guaranteed to outrank a stamp from another node.
	if t := stamp >> timeShift; t >= s.lastTime {
		s.lastTime = t + 1
		s.sequence = 0
	}
}

// Millis extracts the wall clock part of a stamp, in Unix milliseconds.
func Millis(stamp uint64) int64 {
	return int64(stamp>>timeShift) + Epoch
}
