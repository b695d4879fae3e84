package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key identifies a render. Hash is sha256 of the exact content bytes, so any
// difference, including whitespace, yields a different key.
type Key struct {
	VersionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k Key) String() string {
	// render:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("render:%s:%s", k.VersionID, k.Hash)
}

// BuildKey hashes content as given. versionID scopes keys so a toolchain
// change can invalidate every entry at once.
func BuildKey(content, versionID string) Key {
	sum := sha256.Sum256([]byte(content))
	return Key{
		VersionID: strings.TrimSpace(versionID),
		Hash:      hex.EncodeToString(sum[:]),
	}
}

// parseKey splits render:<VERSION_ID>:<HASH>.
func parseKey(key string) (Key, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "render" {
		return Key{}, false
	}
	return Key{VersionID: parts[1], Hash: parts[2]}, true
}
