package phi

import "strings"

// AliasPrefix is the stable pseudonym prefix. Aliases run PATIENT_A,
// PATIENT_B, ... PATIENT_Z, PATIENT_AA, and so on.
const AliasPrefix = "PATIENT_"

// AliasResolver is the alias registry for a single guard run. It is
// owned by the run and threaded through segment processing; it is never
// shared between sessions. Within one session a real-world patient maps
// to exactly one alias and no alias is ever reassigned to a different
// patient: re-assignment always mints a new alias.
type AliasResolver struct {
	tokens map[string]string
	minted int
}

// NewAliasResolver creates an empty registry.
func NewAliasResolver() *AliasResolver {
	return &AliasResolver{tokens: make(map[string]string)}
}

// Lookup returns the alias registered for a token surface form.
func (r *AliasResolver) Lookup(token string) (string, bool) {
	alias, ok := r.tokens[token]
	return alias, ok
}

// Register binds a token to an alias. Room tokens always overwrite:
// a room changing patients mid-session must point at the new alias.
// Name tokens only fill when unset, so a shared family name cannot
// steal a room's established identity.
func (r *AliasResolver) Register(token, alias string, isRoom bool) {
	if !isRoom {
		if _, exists := r.tokens[token]; exists {
			return
		}
	}
	r.tokens[token] = alias
}

// Mint allocates the next alias in sequence.
func (r *AliasResolver) Mint() string {
	alias := AliasPrefix + aliasSuffix(r.minted)
	r.minted++
	return alias
}

// Map returns a copy of the token registry.
func (r *AliasResolver) Map() map[string]string {
	out := make(map[string]string, len(r.tokens))
	for k, v := range r.tokens {
		out[k] = v
	}
	return out
}

// aliasSuffix converts 0,1,...,25,26,... to A,B,...,Z,AA,... in the
// spreadsheet-column style.
func aliasSuffix(n int) string {
	var b strings.Builder
	n++
	for n > 0 {
		n--
		b.WriteByte(byte('A' + n%26))
		n /= 26
	}
	s := b.String()
	// Builder accumulated least-significant first; reverse.
	runes := []byte(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
