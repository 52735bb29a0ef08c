package auth

import "crypto/subtle"

// TokenSet holds the static bearer tokens accepted by the HTTP surface.
// Tokens come from the auth section of the config file; there is no
// token database.
type TokenSet struct {
	tokens []string
}

// NewTokenSet builds a set from configured tokens, dropping blanks
func NewTokenSet(tokens []string) *TokenSet {
	set := &TokenSet{}
	for _, t := range tokens {
		if t != "" {
			set.tokens = append(set.tokens, t)
		}
	}
	return set
}

// Empty reports whether no tokens are configured
func (s *TokenSet) Empty() bool {
	return len(s.tokens) == 0
}

// Verify checks a presented token against the set. Every configured
// token is compared in constant time regardless of early matches.
func (s *TokenSet) Verify(token string) bool {
	if token == "" {
		return false
	}
	ok := false
	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			ok = true
		}
	}
	return ok
}

// Identity describes the authenticated caller of a request
type Identity struct {
	Token      string // masked form, safe to log
	RemoteAddr string
}
