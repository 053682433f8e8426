package irc

import "testing"

func TestInviteTableGrantThenConsume(t *testing.T) {
	inv := NewInviteTable()
	inv.Grant("#lounge", "alice")

	if !inv.Consume("#lounge", "alice") {
		t.Fatal("expected invited nick to be consumable once")
	}
	if inv.Consume("#lounge", "alice") {
		t.Fatal("expected a second consume of the same invite to report false")
	}
}

func TestInviteTableConsumeWithoutGrant(t *testing.T) {
	inv := NewInviteTable()
	if inv.Consume("#lounge", "bob") {
		t.Fatal("expected consuming a never-granted invite to report false")
	}
}
