package models

import "testing"

func TestHostEntryValidateAcceptsGoodEntry(t *testing.T) {
	h := HostEntry{IPAddr: "10.0.0.5", Hostname: "db"}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestHostEntryValidateAcceptsIPv6(t *testing.T) {
	h := HostEntry{IPAddr: "fe80::1", Hostname: "link-local"}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestHostEntryValidateRejectsBadIP(t *testing.T) {
	h := HostEntry{IPAddr: "not-an-ip", Hostname: "db"}
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() accepted a malformed ip_addr")
	}
}

func TestHostEntryValidateRejectsEmptyHostname(t *testing.T) {
	h := HostEntry{IPAddr: "10.0.0.5", Hostname: ""}
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() accepted an empty hostname")
	}
}

func TestHostEntryValidateRejectsHostnameWithSlash(t *testing.T) {
	h := HostEntry{IPAddr: "10.0.0.5", Hostname: "db/evil"}
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() accepted a hostname containing a slash")
	}
}

func TestHostEntryValidateRejectsHostnameWithWhitespace(t *testing.T) {
	h := HostEntry{IPAddr: "10.0.0.5", Hostname: "db host"}
	if err := h.Validate(); err == nil {
		t.Fatalf("Validate() accepted a hostname containing whitespace")
	}
}
