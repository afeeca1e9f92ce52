package models

import "testing"

func TestProcessStatSetExitedIsMonotonic(t *testing.T) {
	s := NewProcessStat(ExecSpec{Arg0: "/bin/true"})
	s.SetExited(0)
	s.SetExited(1)
	if s.ExitCode == nil || *s.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0 (first write wins)", s.ExitCode)
	}
}

func TestProcessStatSetStartedIsMonotonic(t *testing.T) {
	s := NewProcessStat(ExecSpec{Arg0: "/bin/true"})
	s.SetStarted(SpawnInfo{PID: 10})
	s.SetStarted(SpawnInfo{PID: 20})
	if s.Spawn == nil || s.Spawn.PID != 10 {
		t.Fatalf("Spawn = %v, want PID 10 (first write wins)", s.Spawn)
	}
}

func TestContainerManifestCloneIsIndependent(t *testing.T) {
	started := int64(100)
	m := ContainerManifest{
		ID:        "c1",
		Started:   &started,
		Processes: map[string]ProcessStat{"main": NewProcessStat(ExecSpec{Arg0: "/bin/true"})},
	}
	clone := m.Clone()
	*clone.Started = 999
	clone.Processes["main"] = ProcessStat{}
	delete(clone.Processes, "extra")
	clone.Processes["extra"] = ProcessStat{}

	if *m.Started != 100 {
		t.Fatalf("mutating clone.Started leaked into original: %d", *m.Started)
	}
	if _, ok := m.Processes["extra"]; ok {
		t.Fatalf("mutating clone.Processes leaked into original")
	}
	if m.Processes["main"].Spec.Arg0 != "/bin/true" {
		t.Fatalf("clone.Processes mutation overwrote original entry")
	}
}
