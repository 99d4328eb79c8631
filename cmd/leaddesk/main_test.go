package main

import (
	"context"
	"testing"
)

func TestValidatePort(t *testing.T) {
	for _, port := range []int{1, 8318, 65535} {
		if err := validatePort(port); err != nil {
			t.Fatalf("validatePort(%d): %v", port, err)
		}
	}
	for _, port := range []int{0, -1, 65536} {
		if err := validatePort(port); err == nil {
			t.Fatalf("validatePort(%d) expected error", port)
		}
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"-config", t.TempDir() + "/config.yaml", "serve-everything"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestRunRejectsInvalidPort(t *testing.T) {
	if err := run(context.Background(), []string{"-port", "70000"}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
