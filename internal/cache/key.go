// SPDX-License-Identifier: MIT
package cache

import "strconv"

// PlanKey is the cache key for a plan generated from a given state revision.
// Keying by revision makes invalidation free: a mutated store can never hit
// a stale entry.
func PlanKey(revision uint64) string {
	return "plan:" + strconv.FormatUint(revision, 10)
}
