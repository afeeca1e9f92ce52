package supervisor

import (
	"testing"

	"github.com/xcjail/xc/models"
)

func specs(n int) []models.ExecSpec {
	out := make([]models.ExecSpec, n)
	for i := range out {
		out[i] = models.ExecSpec{Arg0: "/bin/true"}
	}
	return out
}

func TestSerialExecPopFrontMintsSequentialIDs(t *testing.T) {
	s := newSerialExec("init", specs(2), true)

	id0, _, ok := s.popFront()
	if !ok || id0 != "init.0" {
		t.Fatalf("popFront #1 = (%q, %v), want init.0, true", id0, ok)
	}
	id1, _, ok := s.popFront()
	if !ok || id1 != "init.1" {
		t.Fatalf("popFront #2 = (%q, %v), want init.1, true", id1, ok)
	}
	if _, _, ok := s.popFront(); ok {
		t.Fatalf("popFront on drained queue returned ok=true")
	}
}

func TestSerialExecTryDrainIgnoresUnactivatedQueue(t *testing.T) {
	s := newSerialExec("deinit", specs(1), false)
	var out []spawnItem
	if done := s.tryDrain("anything", &out); done {
		t.Fatalf("tryDrain on unactivated queue reported done")
	}
	if len(out) != 0 {
		t.Fatalf("tryDrain on unactivated queue enqueued work: %v", out)
	}
}

func TestSerialExecTryDrainAdvancesOnMatchingExit(t *testing.T) {
	s := newSerialExec("init", specs(3), true)
	id0, _, _ := s.popFront()

	var out []spawnItem
	if done := s.tryDrain(id0, &out); done {
		t.Fatalf("tryDrain reported done with two specs still queued")
	}
	if len(out) != 1 || out[0].id != "init.1" {
		t.Fatalf("tryDrain did not advance to init.1: %v", out)
	}
}

func TestSerialExecTryDrainIgnoresUnrelatedExit(t *testing.T) {
	s := newSerialExec("init", specs(2), true)
	s.popFront()

	var out []spawnItem
	if done := s.tryDrain("some-other-id", &out); done {
		t.Fatalf("tryDrain reported done for an unrelated exit")
	}
	if len(out) != 0 {
		t.Fatalf("tryDrain dispatched work for an unrelated exit: %v", out)
	}
}

func TestSerialExecTryDrainDoneWhenLastElementExits(t *testing.T) {
	s := newSerialExec("deinit", specs(1), true)
	id0, _, _ := s.popFront()

	var out []spawnItem
	if done := s.tryDrain(id0, &out); !done {
		t.Fatalf("tryDrain did not report done after the only element exited")
	}
	if len(out) != 0 {
		t.Fatalf("tryDrain enqueued work after reporting done: %v", out)
	}
}

func TestSerialExecNewEmptyQueueIsEmpty(t *testing.T) {
	s := newSerialExec("deinit", nil, false)
	if !s.isEmpty() {
		t.Fatalf("new empty serialExec reports non-empty")
	}
}
