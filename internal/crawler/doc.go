// Package crawler implements the resilient crawl engine: the deduplicating
// frontier, the block classifier, the retry/backoff controller, the crawl
// budget, and the worker-pool state machine that drives listing and detail
// tasks through fetch, classification, and extraction.
package crawler
