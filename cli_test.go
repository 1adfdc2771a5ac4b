package main

import "testing"

func TestRunCLIVersion(t *testing.T) {
	if !RunCLI([]string{"version"}) {
		t.Fatal("expected version subcommand to be handled")
	}
}

func TestRunCLIUnknownSubcommandFallsThrough(t *testing.T) {
	if RunCLI([]string{"bogus"}) {
		t.Fatal("expected an unknown subcommand to return false")
	}
}

func TestRunCLINoArgs(t *testing.T) {
	if RunCLI(nil) {
		t.Fatal("expected no args to return false")
	}
}
