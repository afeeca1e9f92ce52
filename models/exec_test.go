package models

import (
	"encoding/json"
	"testing"
)

func TestStdioModeRoundTripTerminal(t *testing.T) {
	data, err := json.Marshal(Terminal())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"terminal"` {
		t.Fatalf("Terminal() marshaled to %s, want \"terminal\"", data)
	}
	var m StdioMode
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Kind != StdioTerminal {
		t.Fatalf("round-tripped kind = %v, want StdioTerminal", m.Kind)
	}
}

func TestStdioModeRoundTripFiles(t *testing.T) {
	orig := Files("/var/log/out.log", "/var/log/err.log")
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	var m StdioMode
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Kind != StdioFiles || m.Files != orig.Files {
		t.Fatalf("round-tripped = %+v, want %+v", m, orig)
	}
}

func TestStdioModeRoundTripForward(t *testing.T) {
	orig := Forward(0, 1, 2)
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	var m StdioMode
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.Kind != StdioForward || m.Forward != orig.Forward {
		t.Fatalf("round-tripped = %+v, want %+v", m, orig)
	}
}

func TestStdioModeUnmarshalRejectsUnknownTag(t *testing.T) {
	var m StdioMode
	if err := json.Unmarshal([]byte(`"bogus"`), &m); err == nil {
		t.Fatalf("unmarshal accepted an unknown stdio tag")
	}
}

func TestExecSpecCloneIsIndependent(t *testing.T) {
	orig := ExecSpec{
		Arg0: "/bin/sh",
		Args: []string{"-c", "true"},
		Envs: map[string]string{"PATH": "/bin"},
	}
	clone := orig.Clone()
	clone.Args[0] = "-x"
	clone.Envs["PATH"] = "/usr/bin"

	if orig.Args[0] != "-c" {
		t.Fatalf("mutating clone.Args leaked into orig: %v", orig.Args)
	}
	if orig.Envs["PATH"] != "/bin" {
		t.Fatalf("mutating clone.Envs leaked into orig: %v", orig.Envs)
	}
}

func TestExecSpecSearchPathFallsBackToDefault(t *testing.T) {
	e := ExecSpec{}
	if got := e.SearchPath(); got != DefaultSearchPath {
		t.Fatalf("SearchPath() = %q, want default %q", got, DefaultSearchPath)
	}
	e.Envs = map[string]string{"PATH": "/opt/bin"}
	if got := e.SearchPath(); got != "/opt/bin" {
		t.Fatalf("SearchPath() = %q, want /opt/bin", got)
	}
}
