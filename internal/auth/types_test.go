package auth

import "testing"

func TestTokenSetVerify(t *testing.T) {
	set := NewTokenSet([]string{"gev_alpha", "gev_beta", ""})

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"first token", "gev_alpha", true},
		{"second token", "gev_beta", true},
		{"unknown token", "gev_gamma", false},
		{"empty token", "", false},
		{"prefix only", "gev_alph", false},
		{"token with suffix", "gev_alpha2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.Verify(tt.token); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestTokenSetEmpty(t *testing.T) {
	if !NewTokenSet(nil).Empty() {
		t.Error("NewTokenSet(nil).Empty() = false, want true")
	}
	// Blank entries do not count as configured tokens
	if !NewTokenSet([]string{"", ""}).Empty() {
		t.Error("blank-only set should be empty")
	}
	if NewTokenSet([]string{"tok"}).Empty() {
		t.Error("one-token set should not be empty")
	}
}

func TestTokenSetEmptyVerifiesNothing(t *testing.T) {
	set := NewTokenSet(nil)
	if set.Verify("anything") {
		t.Error("empty set should verify nothing")
	}
	if set.Verify("") {
		t.Error("empty set should reject empty token")
	}
}
