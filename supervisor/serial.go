package supervisor

import (
	"fmt"

	"github.com/xcjail/xc/models"
)

// spawnItem is one pending (id, spec) pair waiting for the event loop's
// next spawn pass.
type spawnItem struct {
	id   string
	spec models.ExecSpec
}

// serialExec is a FIFO of ExecSpec that runs one at a time, advancing
// only when the previously-dispatched element's direct child exits.
// Two instances exist per container: init and deinit.
type serialExec struct {
	baseID    string
	idx       int
	execs     []models.ExecSpec
	lastSpawn *string
	activated bool
}

func newSerialExec(baseID string, execs []models.ExecSpec, activated bool) *serialExec {
	return &serialExec{
		baseID:    baseID,
		execs:     append([]models.ExecSpec(nil), execs...),
		activated: activated,
	}
}

// activate marks the queue activated. It does not itself dispatch
// anything — a separate pop is needed.
func (s *serialExec) activate() { s.activated = true }

func (s *serialExec) isEmpty() bool { return len(s.execs) == 0 }

// popFront mints the next id, removes the head spec, and records it as
// the last-spawned id. Returns ok=false if the queue is empty.
func (s *serialExec) popFront() (id string, spec models.ExecSpec, ok bool) {
	if s.isEmpty() {
		return "", models.ExecSpec{}, false
	}
	id = fmt.Sprintf("%s.%d", s.baseID, s.idx)
	spec = s.execs[0]
	s.execs = s.execs[1:]
	s.lastSpawn = &id
	s.idx++
	return id, spec, true
}

// tryDrain is called when the direct child named exitedID has exited. It
// returns true when the serial phase is now fully drained (its last
// element exited and nothing remains to dispatch). When there is more to
// dispatch, it appends the next (id, spec) to out and returns false.
func (s *serialExec) tryDrain(exitedID string, out *[]spawnItem) bool {
	if !s.activated {
		return false
	}
	if s.lastSpawn != nil && *s.lastSpawn != exitedID {
		return false
	}
	if s.lastSpawn != nil && *s.lastSpawn == exitedID && s.isEmpty() {
		return true
	}
	if !s.isEmpty() {
		id, spec, _ := s.popFront()
		*out = append(*out, spawnItem{id: id, spec: spec})
	}
	return false
}
