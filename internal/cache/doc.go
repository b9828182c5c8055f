// Package cache provides the LRU used to keep compiled GPU pipelines alive
// across frames.
//
// Entries own device resources, so eviction is observable: the cache calls
// an eviction callback for every entry it drops, including on Purge.
//
//	pipelines := cache.New[uint64, *bakePipeline](8, func(_ uint64, p *bakePipeline) {
//	    p.destroy()
//	})
//	p, err := pipelines.GetOrCreate(key, build)
//
// Cache is not safe for concurrent use; it lives on the control goroutine.
package cache
