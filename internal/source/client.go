package source

import "context"

// Query is one search request against a news source.
type Query struct {
	Text       string
	Language   string
	Country    string
	MaxResults int
}

// SourceObject is the structured publisher descriptor some APIs return in
// place of a plain string.
type SourceObject struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// RawItem is one article as a source reported it, before normalization.
// Fields that a given source does not supply stay zero.
type RawItem struct {
	Title          string
	Link           string
	Summary        string
	Description    string
	Excerpt        string
	PublishedDate  string
	SourceName     string
	SourceObject   *SourceObject
	CleanURL       string
	Rights         string
	Language       string
	SentimentScore float64
	ImageURL       string
}

// RawCluster is a pre-grouped set of items from a source that clusters
// server-side.
type RawCluster struct {
	ClusterID string
	Items     []RawItem
}

// Result is the outcome of one Search call. When Clustered is true the items
// arrive pre-grouped in Clusters; otherwise they arrive flat in Items.
type Result struct {
	Clustered bool
	Clusters  []RawCluster
	Items     []RawItem
}

// Client fetches articles matching a query from one upstream news source.
//
// GroupsLocally reports whether flat results from this source should be
// grouped by text similarity downstream. Feed sources have no notion of
// clustering, so their batches are grouped locally; a flat response from a
// search API means the provider already chose not to cluster those items, and
// they stay standalone.
type Client interface {
	Name() string
	GroupsLocally() bool
	Search(ctx context.Context, query Query) (*Result, error)
}
