package hashindex

import "github.com/cespare/xxhash/v2"

// hashBytes folds a 64-bit xxhash digest down to the 32 bits the directory
// indexes on. xxhash is already a dependency of the catalog's metadata
// cache (dgraph-io/ristretto uses it internally); promoting it to a direct
// dependency here gives it a second, independent job as the index's hash
// function rather than leaving it only an indirect, unexercised import.
func hashBytes(b []byte) uint32 {
	sum := xxhash.Sum64(b)
	return uint32(sum) ^ uint32(sum>>32)
}
