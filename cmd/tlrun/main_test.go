package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestHotLoopScenarioReportsExpectedFinalLocal(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--scenario", "hot-loop"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.Contains(out.String(), "local[1] = 499999500000") {
		t.Fatalf("expected final local $s = 499999500000 in output, got:\n%s", out.String())
	}
}

func TestUnknownScenarioFails(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--scenario", "does-not-exist"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown scenario")
	}
}
