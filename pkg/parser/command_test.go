package parser

import (
	"testing"
)

func TestScaleAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.1", "100000000000000000"},
		{"1.5", "1500000000000000000"},
		{".25", "250000000000000000"},
		{"0", "0"},
		{"0.0000000000000000019", "1"},
	}

	for _, tc := range cases {
		got, err := ScaleTokenAmount(tc.in)
		if err != nil {
			t.Fatalf("scale %q: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("scale %q: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestScaleAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "-1", "1e18", "1.2.3"} {
		if _, err := ScaleTokenAmount(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount("0"); err == nil {
		t.Fatal("expected zero amount to be rejected")
	}
	if err := ValidateAmount("0.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseChatCommand(t *testing.T) {
	cmd, ok, err := ParseChatCommand("/agent functional-data-agent")
	if err != nil || !ok {
		t.Fatalf("parse agent: ok=%v err=%v", ok, err)
	}
	if cmd.Kind != CommandAgent || cmd.Arg != "functional-data-agent" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	cmd, ok, err = ParseChatCommand("  /exit ")
	if err != nil || !ok || cmd.Kind != CommandQuit {
		t.Fatalf("parse exit: %+v ok=%v err=%v", cmd, ok, err)
	}

	if _, ok, err := ParseChatCommand("swap 1 ETH to USDC"); ok || err != nil {
		t.Fatalf("plain text treated as command: ok=%v err=%v", ok, err)
	}

	if _, ok, err := ParseChatCommand("/agent"); !ok || err == nil {
		t.Fatal("expected usage error for /agent without id")
	}

	if _, ok, err := ParseChatCommand("/dance"); !ok || err == nil {
		t.Fatal("expected unknown command error")
	}
}
