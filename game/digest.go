package game

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Digest returns the content digest of a ticket grid: the hex MD5 of the
// compact JSON array of its row-major values, e.g. md5("[7,3,8,1,5,2,7,4,9]").
// The hash detects altered grids; it is not a secret.
func Digest(gridElements []int) (string, error) {
	if gridElements == nil {
		gridElements = []int{}
	}
	payload, err := json.Marshal(gridElements)
	if err != nil {
		return "", fmt.Errorf("failed to encode grid: %w", err)
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:]), nil
}

// MustDigest is Digest for callers that build grids themselves
func MustDigest(gridElements []int) string {
	d, err := Digest(gridElements)
	if err != nil {
		panic(err)
	}
	return d
}

// DigestMatches compares two digests in constant time
func DigestMatches(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
