package gateway

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadProxyHeaderTCP4(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("PROXY TCP4 203.0.113.5 198.51.100.1 54321 6667\r\nNICK alice\r\n"))
	hdr, err := readProxyHeader(r)
	if err != nil {
		t.Fatalf("readProxyHeader: %v", err)
	}
	if hdr.sourceIP != "203.0.113.5" {
		t.Fatalf("expected source ip 203.0.113.5, got %q", hdr.sourceIP)
	}

	rest, _ := r.ReadString('\n')
	if strings.TrimRight(rest, "\r\n") != "NICK alice" {
		t.Fatalf("expected the line after the header to survive, got %q", rest)
	}
}

func TestReadProxyHeaderUnknown(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("PROXY UNKNOWN\r\n"))
	hdr, err := readProxyHeader(r)
	if err != nil {
		t.Fatalf("readProxyHeader: %v", err)
	}
	if hdr.sourceIP != "" {
		t.Fatalf("expected no source ip for UNKNOWN, got %q", hdr.sourceIP)
	}
}

func TestReadProxyHeaderRejectsMissingHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("NICK alice\r\n"))
	if _, err := readProxyHeader(r); err == nil {
		t.Fatal("expected an error when the line isn't a PROXY header")
	}
}

func TestReadProxyHeaderRejectsInvalidAddress(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("PROXY TCP4 not-an-ip 198.51.100.1 1 2\r\n"))
	if _, err := readProxyHeader(r); err == nil {
		t.Fatal("expected an error for an unparseable source address")
	}
}
