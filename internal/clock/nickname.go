package clock

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// MaxNicknameAttempts bounds how many times NextNickname retries on
// collision before the caller should give up and fail the join.
const MaxNicknameAttempts = 16

// adjectives and nouns are closed word lists; nicknames are <type>-<adj>-<noun>.
var adjectives = []string{
	"gentle", "swift", "quiet", "bold", "calm", "sly", "brisk", "eager",
	"lucid", "nimble", "wry", "stoic", "vivid", "keen", "wary", "spry",
}

var nouns = []string{
	"gecko", "falcon", "otter", "heron", "badger", "lynx", "marmot", "wren",
	"ibex", "puffin", "tapir", "orca", "civet", "kestrel", "mole", "vole",
}

// NextNickname draws a pseudo-random <type>-<adjective>-<noun> candidate.
// Callers are expected to re-check uniqueness against the room under
// atomic_update and call NextNickname again on collision, up to
// MaxNicknameAttempts times.
func NextNickname(agentType string) (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", agentType, adj, noun), nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("clock: drawing random word: %w", err)
	}
	return words[n.Int64()], nil
}
