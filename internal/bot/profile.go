// Package bot describes the two chat endpoints taking part in a debate.
package bot

import (
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"net/url"
	"strings"
)

// ErrInvalidProfile is returned when a profile is missing required fields.
var ErrInvalidProfile = errors.New("invalid bot profile")

// OrderingKey is the unsigned integer form of an endpoint's literal IP
// address. IPv4 addresses occupy the low 32 bits; IPv6 uses all 128.
type OrderingKey struct {
	Hi uint64
	Lo uint64
}

// Compare returns -1, 0 or +1.
func (k OrderingKey) Compare(o OrderingKey) int {
	switch {
	case k.Hi < o.Hi:
		return -1
	case k.Hi > o.Hi:
		return 1
	case k.Lo < o.Lo:
		return -1
	case k.Lo > o.Lo:
		return 1
	}
	return 0
}

// Less reports whether k orders before o.
func (k OrderingKey) Less(o OrderingKey) bool { return k.Compare(o) < 0 }

// IsZero reports whether the key is the neutral default.
func (k OrderingKey) IsZero() bool { return k.Hi == 0 && k.Lo == 0 }

// String returns the key in decimal.
func (k OrderingKey) String() string {
	if k.Hi == 0 {
		return fmt.Sprintf("%d", k.Lo)
	}
	n := new(big.Int).SetUint64(k.Hi)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(k.Lo))
	return n.String()
}

// Profile is an immutable description of one debate participant.
type Profile struct {
	name     string
	endpoint string
	model    string
	persona  string
	key      OrderingKey
}

// NewProfile builds a profile and derives its ordering key from endpoint.
func NewProfile(name, endpoint, model, persona string) (Profile, error) {
	name = strings.TrimSpace(name)
	endpoint = strings.TrimSpace(endpoint)
	if name == "" {
		return Profile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if endpoint == "" {
		return Profile{}, fmt.Errorf("%w: endpoint is required for %s", ErrInvalidProfile, name)
	}
	return Profile{
		name:     name,
		endpoint: endpoint,
		model:    model,
		persona:  persona,
		key:      DeriveOrderingKey(endpoint),
	}, nil
}

// Name returns the display name, unique within a debate.
func (p Profile) Name() string { return p.name }

// Endpoint returns the chat completions URL.
func (p Profile) Endpoint() string { return p.endpoint }

// Model returns the model requested from the endpoint, possibly empty.
func (p Profile) Model() string { return p.model }

// Persona returns the persona ID, possibly empty.
func (p Profile) Persona() string { return p.persona }

// OrderingKey returns the key derived from the endpoint.
func (p Profile) OrderingKey() OrderingKey { return p.key }

// DeriveOrderingKey extracts the host of endpoint and, if it is a literal
// IP address, returns its integer value. Anything else yields the zero key.
func DeriveOrderingKey(endpoint string) OrderingKey {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Host == "" {
		return OrderingKey{}
	}
	addr, err := netip.ParseAddr(u.Hostname())
	if err != nil {
		return OrderingKey{}
	}
	if addr.Is4() {
		b := addr.As4()
		return OrderingKey{Lo: uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])}
	}
	b := addr.As16()
	var k OrderingKey
	for i := 0; i < 8; i++ {
		k.Hi = k.Hi<<8 | uint64(b[i])
		k.Lo = k.Lo<<8 | uint64(b[i+8])
	}
	return k
}

// FirstSpeaker orders two profiles for the opening turn. a speaks first
// only when its key is strictly lower; on a tie b opens.
func FirstSpeaker(a, b Profile) (first, second Profile) {
	if !a.key.Less(b.key) {
		return b, a
	}
	return a, b
}
