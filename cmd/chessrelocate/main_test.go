package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPerftCommand(t *testing.T) {
	out, err := execute(t, "--no-store", "--log-level", "error", "perft", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Nodes searched: 8902") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := execute(t, "--no-store", "perft", "deep"); err == nil {
		t.Error("bad depth accepted")
	}
}

func TestOneShotCommand(t *testing.T) {
	out, err := execute(t, "--no-store", "--log-level", "error", "go", "depth", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "bestmove ") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRelocateBadMode(t *testing.T) {
	out, err := execute(t, "--no-store", "relocate", "7")
	if err == nil {
		t.Fatal("bad mode accepted")
	}
	if !strings.Contains(out, "Invalid choice!") {
		t.Errorf("output:\n%s", out)
	}
}

func TestHistoryEmpty(t *testing.T) {
	out, err := execute(t, "--no-store=false", "--data-dir", t.TempDir(), "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No relocation results archived yet.") {
		t.Errorf("output:\n%s", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := execute(t, "--no-store", "--threads", "0", "isready"); err == nil {
		t.Error("zero threads accepted")
	}
	threads = 1
}
