package message

import "strings"

// Identity answers whether an address belongs to the local user.
type Identity interface {
	IsLocal(address string) bool
}

// LocalIdentity is an Identity backed by a fixed set of addresses.
type LocalIdentity struct {
	addrs map[string]struct{}
}

// NewLocalIdentity returns an Identity that recognises the given addresses.
// Empty strings are ignored.
func NewLocalIdentity(addrs ...string) *LocalIdentity {
	id := &LocalIdentity{addrs: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			id.addrs[a] = struct{}{}
		}
	}
	return id
}

// IsLocal implements Identity.
func (id *LocalIdentity) IsLocal(address string) bool {
	if id == nil {
		return false
	}
	_, ok := id.addrs[address]
	return ok
}

const (
	closedGroupPrefix = "__textsecure_group__!"
	openGroupPrefix   = "__loki_public_chat_group__!"
)

// IsGroupAddress reports whether address names a group rather than a person.
func IsGroupAddress(address string) bool {
	return strings.HasPrefix(address, closedGroupPrefix) || strings.HasPrefix(address, openGroupPrefix)
}
