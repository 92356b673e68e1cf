// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package cache keeps the last known availability per item and wholesaler.

Wholesaler stock changes quickly, so entries live for a few minutes
(DefaultTTL). An expired entry is reported as a miss by Get but stays in the
cache until it is overwritten; there is no eviction goroutine. Peek returns
an entry regardless of expiry.

Writes for the same item and wholesaler overwrite each other, last write
wins. An optional Store receives every write so the cache can be warmed
after a restart:

	c := cache.New(cache.WithTTL(5*time.Minute), cache.WithStore(store))
	_, _ = c.Warm(ctx)

	_ = c.Upsert(ctx, "01234567", "phoenix", 3, result, 0)
	if e, ok := c.Get("01234567", "phoenix"); ok {
	    fmt.Println(e.Status)
	}
*/
package cache
