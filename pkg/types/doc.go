// Package types defines the temporal data model shared by every tempograph
// component: versioned entities and relationships, version records, change
// sets, and contradiction/resolution records.
//
// A stable ID names a real-world thing across time; a version ID names one
// recorded state of that thing. Version records are immutable once created
// and are linked backward through TemporalMetadata.PreviousVersionID.
package types
