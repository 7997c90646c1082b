package entities

import "time"

// SearchStatus tags a search outcome
type SearchStatus string

const (
	// SearchStatusOK means places were found
	SearchStatusOK SearchStatus = "ok"

	// SearchStatusNoResults means the lookup succeeded but yielded nothing
	SearchStatusNoResults SearchStatus = "no_results"

	// SearchStatusSuperseded means a newer request replaced this one inside
	// the debounce window and no lookup was issued for it
	SearchStatusSuperseded SearchStatus = "superseded"
)

// ResultSource records where a result set came from
type ResultSource string

const (
	// ResultSourceCache means the TTL cache answered
	ResultSourceCache ResultSource = "cache"

	// ResultSourceProvider means this request issued the provider call
	ResultSourceProvider ResultSource = "provider"

	// ResultSourceShared means the request joined a call already in flight
	ResultSourceShared ResultSource = "shared"

	// ResultSourceHistory means the set was loaded from search history
	ResultSourceHistory ResultSource = "history"

	// ResultSourceNone is used for superseded requests
	ResultSourceNone ResultSource = "none"
)

// SearchResult is the tagged outcome of a coordinated search
type SearchResult struct {
	Key    string       `json:"key"`
	Places []Place      `json:"places"`
	Status SearchStatus `json:"status"`
	Source ResultSource `json:"source"`
}

// PersistedSearch is the last-search blob kept per session. FromHistory
// marks sets loaded from search history so they are not recorded again.
type PersistedSearch struct {
	Places       []Place      `json:"places"`
	SearchParams SearchParams `json:"searchParams"`
	Timestamp    time.Time    `json:"timestamp"`
	FromHistory  bool         `json:"fromHistory"`
}
