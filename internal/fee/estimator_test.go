package fee

import (
	"strings"
	"testing"
)

func TestEstimate_Send(t *testing.T) {
	if got := EstimateSats(ActionSend, Params{}); got != 546 {
		// 450 bytes is under the dust floor
		t.Errorf("send: got %d, want 546", got)
	}
}

func TestEstimate_MintBurnAtDustFloor(t *testing.T) {
	for _, a := range []Action{ActionMint, ActionBurn} {
		if got := EstimateSats(a, Params{RecipientCount: 10, Message: "ignored"}); got != DustFloor {
			t.Errorf("%s: got %d, want %d", a, got, DustFloor)
		}
	}
}

func TestEstimate_Airdrop(t *testing.T) {
	tests := []struct {
		recipients int
		want       int64
	}{
		{0, 546},    // 250 bytes, clamped
		{5, 570},    // 250 + 34*5 + 150*1
		{10, 890},   // 250 + 34*10 + 150*2
		{100, 6650}, // 250 + 34*100 + 150*20
	}

	for _, tt := range tests {
		got := EstimateSats(ActionAirdrop, Params{RecipientCount: tt.recipients})
		if got != tt.want {
			t.Errorf("airdrop(%d): got %d, want %d", tt.recipients, got, tt.want)
		}
	}
}

func TestEstimate_AirdropMonotonic(t *testing.T) {
	prev := int64(0)
	for n := 0; n <= 500; n++ {
		got := EstimateSats(ActionAirdrop, Params{RecipientCount: n})
		if got < prev {
			t.Fatalf("fee decreased at %d recipients: %d < %d", n, got, prev)
		}
		if got < DustFloor {
			t.Fatalf("fee below dust floor at %d recipients: %d", n, got)
		}
		prev = got
	}
}

func TestEstimate_MessageCountsBytes(t *testing.T) {
	ascii := strings.Repeat("a", 400)
	// "€" is three bytes in UTF-8
	multi := strings.Repeat("€", 400)

	asciiFee := EstimateSats(ActionMessage, Params{Message: ascii})
	multiFee := EstimateSats(ActionMessage, Params{Message: multi})

	if asciiFee != 200+15+400+34 {
		t.Errorf("ascii message: got %d, want %d", asciiFee, 200+15+400+34)
	}
	if multiFee != 200+15+1200+34 {
		t.Errorf("multi-byte message: got %d, want %d", multiFee, 200+15+1200+34)
	}
}

func TestEstimate_NeverBelowDustFloor(t *testing.T) {
	actions := []Action{ActionSend, ActionMint, ActionBurn, ActionAirdrop, ActionMessage, Action("other")}
	for _, a := range actions {
		if got := EstimateSats(a, Params{RecipientCount: -3}); got < DustFloor {
			t.Errorf("%s: got %d, below dust floor", a, got)
		}
	}
}
