package types

import (
	"strings"
	"time"
)

// MentionKind classifies how a message's @-reference resolves to recipients.
type MentionKind string

const (
	MentionNone      MentionKind = "none"
	MentionBroadcast MentionKind = "broadcast" // @@type: all agents of a type
	MentionStateful  MentionKind = "stateful"  // @nick-word-word: exact nickname
	MentionStateless MentionKind = "stateless" // @type: first live agent of type
)

// Mention is the resolved target of a message's @-reference.
type Mention struct {
	Kind   MentionKind
	Target string
}

// Envelope carries the wire fields of an encrypted payload (encrypted, v,
// nonce, ct, adata). It is plain data: the room neither seals nor opens it,
// and a Message with a nil Envelope is not encrypted.
type Envelope struct {
	Encrypted bool   `json:"encrypted"`
	V         int    `json:"v,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	CT        string `json:"ct,omitempty"`
	AData     string `json:"adata,omitempty"`
}

// Message is one append-only entry in a room's broadcast log.
type Message struct {
	Seq       uint64    `json:"seq"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Mention   *Mention  `json:"mention,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope  *Envelope `json:"envelope,omitempty"`
}

// ParseMention extracts the @-reference from content per the room's mention
// grammar. Broadcast (@@type) always wins over any other form present.
//
//	@@name            -> Broadcast(name)
//	@name-word-word   -> Stateful(name-word-word)
//	@name             -> Stateless(name)
//	no match          -> None
func ParseMention(content string) Mention {
	words := strings.Fields(content)
	var stateless, stateful string
	for _, w := range words {
		if strings.HasPrefix(w, "@@") {
			name := trimMentionWord(w[2:])
			if name != "" {
				return Mention{Kind: MentionBroadcast, Target: name}
			}
			continue
		}
		if !strings.HasPrefix(w, "@") {
			continue
		}
		name := trimMentionWord(w[1:])
		if name == "" {
			continue
		}
		if strings.Contains(name, "-") {
			if stateful == "" {
				stateful = name
			}
		} else if stateless == "" {
			stateless = name
		}
	}
	if stateful != "" {
		return Mention{Kind: MentionStateful, Target: stateful}
	}
	if stateless != "" {
		return Mention{Kind: MentionStateless, Target: stateless}
	}
	return Mention{Kind: MentionNone}
}

func trimMentionWord(s string) string {
	end := len(s)
	for end > 0 {
		c := s[end-1]
		isWordChar := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
		if isWordChar {
			break
		}
		end--
	}
	return s[:end]
}
