package protocol

import "testing"

func TestParseBasicPrivmsg(t *testing.T) {
	m, err := Parse([]byte(":alice!a@h PRIVMSG #chan :hello world"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Command.String() != "PRIVMSG" {
		t.Fatalf("command = %q", m.Command.String())
	}
	if m.Prefix() != "alice!a@h" {
		t.Fatalf("prefix = %q", m.Prefix())
	}
	if got := m.Params(); len(got) != 2 || got[0] != "#chan" || got[1] != "hello world" {
		t.Fatalf("params = %#v", got)
	}
}

func TestParseNumeric(t *testing.T) {
	m, err := Parse([]byte(":irc.example.net 001 alice :Welcome"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !m.Command.IsNumeric() || m.Command.Numeric() != 1 {
		t.Fatalf("expected numeric 1, got %v", m.Command)
	}
}

func TestParseUnknownVerb(t *testing.T) {
	m, err := Parse([]byte("FROBNICATE target"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !m.Command.IsUnknown() {
		t.Fatalf("expected unknown verb")
	}
}

func TestParamOverflowFoldsIntoTrailing(t *testing.T) {
	// 16 bare params; the 16th+ should fold into the final trailing slot
	// rather than being rejected, per RFC 2812's 15-param cap.
	line := "CMD a b c d e f g h i j k l m n o p"
	m, err := Parse([]byte(line))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.Params()) > MaxParams {
		t.Fatalf("got %d params, want <= %d", len(m.Params()), MaxParams)
	}
}

func TestTagEscapeRoundTrip(t *testing.T) {
	cases := []string{"a;b c\\d\r\n", "plain", "semi;colon", "back\\slash"}
	for _, c := range cases {
		escaped := EscapeTagValue(c)
		got := unescapeTagValue(escaped)
		if got != c {
			t.Errorf("round trip %q -> %q -> %q", c, escaped, got)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	lines := []string{
		"PRIVMSG #chan :hello there friend",
		":srv.example 005 alice CHANTYPES=# :are supported",
		"@time=2021-01-01T00:00:00Z;msgid=abc :nick!u@h PRIVMSG #c :hi",
	}
	for _, line := range lines {
		m, err := Parse([]byte(line))
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		out, err := Serialize(m)
		if err != nil {
			t.Fatalf("serialize %q: %v", line, err)
		}
		m2, err := Parse([]byte(out))
		if err != nil {
			t.Fatalf("reparse %q: %v", out, err)
		}
		if m2.Command.String() != m.Command.String() {
			t.Errorf("command mismatch after round trip: %q vs %q", m.Command, m2.Command)
		}
	}
}
