// Package memory assembles the conversation context an agent reasons over.
//
// A memory provider contributes zero or more messages per turn. It either
// holds a static message list or computes messages from the current
// transcript and its declared dependencies. Providers are blocking or
// non-blocking and target one of four buckets:
//
//	top/start, top/end, <transcript>, bottom/start, bottom/end
//
// Within a bucket, output follows registration order regardless of which
// provider finished first. The Aggregator awaits blocking providers
// sequentially before Collect returns and launches non-blocking providers
// concurrently; their output is spliced in once ready.
//
// The package also ships a process-local Store with term search and the
// Recall provider built on top of it.
package memory
