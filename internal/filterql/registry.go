// SPDX-License-Identifier: AGPL-3.0-or-later

// Package filterql implements the filter algebra: parsing
// "field_predicate=value" query parameters into Filter values that
// can test a single account (Matches), estimate how many accounts
// they would select without scanning (EstimateOutputSize), and, for
// the subset that support it, hand back a descending-id iterator
// directly from an index (Lookup) instead of a full scan.
package filterql

import (
	"github.com/loveindex/queryserver/internal/dictionary"
	"github.com/loveindex/queryserver/internal/index"
	"github.com/loveindex/queryserver/internal/iter"
	"github.com/loveindex/queryserver/internal/store"
)

// Registry is the read side of every index a Filter might need to
// support a lookup.
type Registry struct {
	Store *store.Store

	Countries *dictionary.Int8
	Cities    *dictionary.Int16
	Interests *dictionary.Int8

	BySex         *index.Inverted // key: int32(store.Sex)
	ByStatus      *index.Inverted // key: int32(store.Status)
	ByCountry     *index.Inverted // key: countryID (dictionary id, includes "" as an interned value)
	ByCity        *index.Inverted // key: cityID
	ByBirthYear   *index.Inverted // key: int8 year-offset-from-1900 widened to int32
	ByJoinedYear  *index.Inverted
	ByInterest    *index.Inverted // key: interestID
	ByEmailDomain *index.StringInverted
}

// Filter is one parsed "field_predicate=value" term.
type Filter interface {
	Name() string
	Matches(a *store.Account) bool
	SupportsLookup() bool
	EstimateOutputSize() int
	Lookup() iter.Iterator

	// ValueID returns the dictionary/enum id this filter pins a field
	// to, for the group planner's cached-breakdown rewrite. -1 if
	// this filter doesn't pin a single discrete value.
	ValueID() int32
}

const invalidID = -1
