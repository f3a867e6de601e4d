//go:build !windows

package supervise

import (
	"bufio"
	"context"
	"testing"
	"time"
)

func TestSpawnMergesStdoutAndStderr(t *testing.T) {
	p, err := spawn([]string{"sh", "-c", "echo out; echo err 1>&2"}, "")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	scanner := bufio.NewScanner(p.Output())
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want both streams", lines)
	}
	seen := map[string]bool{}
	for _, line := range lines {
		seen[line] = true
	}
	if !seen["out"] || !seen["err"] {
		t.Fatalf("lines = %v, want out and err", lines)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code, done := p.ExitCode(); !done || code != 0 {
		t.Fatalf("exit code = %d (done=%v), want 0", code, done)
	}
}

func TestSpawnReportsExitCode(t *testing.T) {
	p, err := spawn([]string{"sh", "-c", "exit 7"}, "")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.Wait(ctx)

	if !p.Exited() {
		t.Fatal("Exited() = false after wait")
	}
	code, done := p.ExitCode()
	if !done || code != 7 {
		t.Fatalf("exit code = %d (done=%v), want 7", code, done)
	}
}

func TestSpawnRejectsEmptyCommand(t *testing.T) {
	if _, err := spawn(nil, ""); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}
