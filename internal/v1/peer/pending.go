package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// offerSlot holds at most one queued remote offer. A newer offer for the
// same slot replaces the older one: the peer that re-offers has abandoned
// its previous offer, so answering it would desynchronize both sides.
type offerSlot struct {
	mu   sync.Mutex
	from string
	sdp  webrtc.SessionDescription
	full bool
}

func (s *offerSlot) Put(from string, sdp webrtc.SessionDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from = from
	s.sdp = sdp
	s.full = true
}

// Take empties the slot, returning false when nothing was queued.
func (s *offerSlot) Take() (string, webrtc.SessionDescription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return "", webrtc.SessionDescription{}, false
	}
	from, sdp := s.from, s.sdp
	s.from, s.sdp, s.full = "", webrtc.SessionDescription{}, false
	return from, sdp, true
}

func (s *offerSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from, s.sdp, s.full = "", webrtc.SessionDescription{}, false
}

// candidateQueue buffers remote ICE candidates that arrive before the
// remote description is applied. Strict FIFO: candidates are ordered by
// priority at the source and dropping or reordering them slows ICE.
type candidateQueue struct {
	mu    sync.Mutex
	items []webrtc.ICECandidateInit
}

func (q *candidateQueue) Push(c webrtc.ICECandidateInit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
}

// Drain returns all queued candidates in arrival order and empties the queue.
func (q *candidateQueue) Drain() []webrtc.ICECandidateInit {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *candidateQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *candidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
