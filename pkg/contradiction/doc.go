// Package contradiction detects and resolves conflicting knowledge across
// entity versions and sources. Unlike change detection, which tracks
// evolution over time, a contradiction is a set of claims that coexist at
// the same logical time from different sources.
//
// Detection strategies run over a batch of entities grouped by logical
// identity; each detected conflict carries a severity in [0, 1]. Resolution
// strategies are pure functions from a conflict record to a resolution
// record; when the data cannot support an automatic decision the system
// falls back to marking the conflict or queuing it for human review, never
// dropping it.
package contradiction
