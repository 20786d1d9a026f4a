package main

import "testing"

func TestEncodeList(t *testing.T) {
	if got := encodeList(nil); got != "[]" {
		t.Errorf("encodeList(nil) = %q", got)
	}
	if got := encodeList([]string{"centro", "zona-sul"}); got != `["centro","zona-sul"]` {
		t.Errorf("encodeList = %q", got)
	}
}

func TestAgentAddCmdArgs(t *testing.T) {
	if _, err := execCmd(t, "agent", "add", "only-name"); err == nil {
		t.Error("expected error for missing phone argument")
	}
}
