// SPDX-License-Identifier: AGPL-3.0-or-later

package filterql

import (
	"sort"
	"strconv"

	"github.com/loveindex/queryserver/internal/iter"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// checkBool: boolValue "1" selects isTrue, "0" selects !isTrue.
func checkBool(isTrue bool, boolValue string) bool {
	if boolValue == "1" {
		return isTrue
	}
	return !isTrue
}

func checkFieldPresent(field, boolValue string) bool {
	return checkBool(field == "", boolValue)
}

func parseBool01(s string) error {
	if s != "0" && s != "1" {
		return qserror.NewBadRequest("unexpected value for null predicate: " + s)
	}
	return nil
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, qserror.NewBadRequest("invalid int32 format: " + s)
	}
	return int32(v), nil
}

func sortDescInt8(s []int8)   { sort.Slice(s, func(i, j int) bool { return s[i] > s[j] }) }
func sortDescInt32(s []int32) { sort.Slice(s, func(i, j int) bool { return s[i] > s[j] }) }

// --- sex ---

type sexFilter struct {
	reg   *Registry
	value store.Sex
}

func (f *sexFilter) Name() string                  { return "sex" }
func (f *sexFilter) Matches(a *store.Account) bool { return a.Sex == f.value }
func (f *sexFilter) SupportsLookup() bool          { return true }
func (f *sexFilter) ValueID() int32                { return int32(f.value) }
func (f *sexFilter) EstimateOutputSize() int {
	return f.reg.BySex.Cardinality(int32(f.value))
}
func (f *sexFilter) Lookup() iter.Iterator {
	return f.reg.BySex.Iterator(int32(f.value))
}

// --- email ---

type emailPredicate int

const (
	emailLT emailPredicate = iota
	emailGT
	emailDomain
)

type emailFilter struct {
	reg   *Registry
	pred  emailPredicate
	value string
}

func (f *emailFilter) Name() string { return "email" }
func (f *emailFilter) Matches(a *store.Account) bool {
	switch f.pred {
	case emailLT:
		return a.Email < f.value
	case emailGT:
		return a.Email > f.value
	default:
		return a.EmailDomain == f.value
	}
}
func (f *emailFilter) SupportsLookup() bool { return f.pred == emailDomain }
func (f *emailFilter) ValueID() int32       { return invalidID }
func (f *emailFilter) EstimateOutputSize() int {
	return f.reg.ByEmailDomain.Cardinality(f.value)
}
func (f *emailFilter) Lookup() iter.Iterator {
	return f.reg.ByEmailDomain.Iterator(f.value)
}

// --- status ---

type statusPredicate int

const (
	statusEQ statusPredicate = iota
	statusNEQ
)

type statusFilter struct {
	reg   *Registry
	pred  statusPredicate
	value store.Status
}

func (f *statusFilter) Name() string { return "status" }
func (f *statusFilter) Matches(a *store.Account) bool {
	if f.pred == statusEQ {
		return a.Status == f.value
	}
	return a.Status != f.value
}
func (f *statusFilter) SupportsLookup() bool { return f.pred == statusEQ }
func (f *statusFilter) ValueID() int32 {
	if f.pred != statusEQ {
		return invalidID
	}
	return int32(f.value)
}
func (f *statusFilter) EstimateOutputSize() int {
	return f.reg.ByStatus.Cardinality(int32(f.value))
}
func (f *statusFilter) Lookup() iter.Iterator {
	return f.reg.ByStatus.Iterator(int32(f.value))
}

// --- fname ---

type fnamePredicate int

const (
	fnameEQ fnamePredicate = iota
	fnameANY
	fnameNULL
)

type fnameFilter struct {
	pred   fnamePredicate
	value  string
	values map[string]struct{}
}

func (f *fnameFilter) Name() string { return "fname" }
func (f *fnameFilter) Matches(a *store.Account) bool {
	switch f.pred {
	case fnameEQ:
		return a.FName == f.value
	case fnameANY:
		_, ok := f.values[a.FName]
		return ok
	default:
		return checkFieldPresent(a.FName, f.value)
	}
}
func (f *fnameFilter) SupportsLookup() bool    { return false }
func (f *fnameFilter) ValueID() int32          { return invalidID }
func (f *fnameFilter) EstimateOutputSize() int { return 0 }
func (f *fnameFilter) Lookup() iter.Iterator   { return iter.NewList(nil) }

// --- sname ---

type snamePredicate int

const (
	snameEQ snamePredicate = iota
	snameSTARTS
	snameNULL
)

type snameFilter struct {
	pred  snamePredicate
	value string
}

func (f *snameFilter) Name() string { return "sname" }
func (f *snameFilter) Matches(a *store.Account) bool {
	switch f.pred {
	case snameEQ:
		return a.SName == f.value
	case snameSTARTS:
		return len(a.SName) >= len(f.value) && a.SName[:len(f.value)] == f.value
	default:
		return checkFieldPresent(a.SName, f.value)
	}
}
func (f *snameFilter) SupportsLookup() bool    { return false }
func (f *snameFilter) ValueID() int32          { return invalidID }
func (f *snameFilter) EstimateOutputSize() int { return 0 }
func (f *snameFilter) Lookup() iter.Iterator   { return iter.NewList(nil) }

// --- phone ---

type phonePredicate int

const (
	phoneCODE phonePredicate = iota
	phoneNULL
)

type phoneFilter struct {
	pred  phonePredicate
	value string
}

func (f *phoneFilter) Name() string { return "phone" }
func (f *phoneFilter) Matches(a *store.Account) bool {
	if f.pred == phoneCODE {
		return a.PhoneCode == f.value
	}
	return checkFieldPresent(a.Phone, f.value)
}
func (f *phoneFilter) SupportsLookup() bool    { return false }
func (f *phoneFilter) ValueID() int32          { return invalidID }
func (f *phoneFilter) EstimateOutputSize() int { return 0 }
func (f *phoneFilter) Lookup() iter.Iterator   { return iter.NewList(nil) }

// --- country ---

type countryPredicate int

const (
	countryEQ countryPredicate = iota
	countryNULL
)

type countryFilter struct {
	reg       *Registry
	pred      countryPredicate
	value     string
	countryID int8
	found     bool
}

func (f *countryFilter) Name() string { return "country" }
func (f *countryFilter) Matches(a *store.Account) bool {
	if f.pred == countryEQ {
		// An unseen country name never matches anything: it was never
		// interned, so no account could have been assigned its id.
		return f.found && a.CountryID == f.countryID
	}
	return checkFieldPresent(a.Country, f.value)
}
func (f *countryFilter) SupportsLookup() bool {
	return f.pred == countryEQ || (f.pred == countryNULL && f.value == "1")
}
func (f *countryFilter) lookupKey() (int32, bool) {
	if f.pred == countryEQ {
		return int32(f.countryID), f.found
	}
	// null=1: accounts with empty country string.
	id, ok := f.reg.Countries.Lookup("")
	return int32(id), ok
}
func (f *countryFilter) ValueID() int32 {
	if !f.found {
		return invalidID
	}
	return int32(f.countryID)
}
func (f *countryFilter) EstimateOutputSize() int {
	key, ok := f.lookupKey()
	if !ok {
		return 0
	}
	return f.reg.ByCountry.Cardinality(key)
}
func (f *countryFilter) Lookup() iter.Iterator {
	key, ok := f.lookupKey()
	if !ok {
		return iter.NewList(nil)
	}
	return f.reg.ByCountry.Iterator(key)
}

// --- city ---

type cityPredicate int

const (
	cityEQ cityPredicate = iota
	cityANY
	cityNULL
)

type cityFilter struct {
	reg     *Registry
	pred    cityPredicate
	value   string
	cityID  int16
	found   bool
	cityIDs map[int16]struct{}
}

func (f *cityFilter) Name() string { return "city" }
func (f *cityFilter) Matches(a *store.Account) bool {
	switch f.pred {
	case cityEQ:
		return f.found && a.CityID == f.cityID
	case cityANY:
		_, ok := f.cityIDs[a.CityID]
		return ok
	default:
		return checkFieldPresent(a.City, f.value)
	}
}
func (f *cityFilter) SupportsLookup() bool {
	return f.pred == cityEQ || (f.pred == cityNULL && f.value == "1")
}
func (f *cityFilter) lookupKey() (int32, bool) {
	if f.pred == cityEQ {
		return int32(f.cityID), f.found
	}
	id, ok := f.reg.Cities.Lookup("")
	return int32(id), ok
}
func (f *cityFilter) ValueID() int32 {
	if f.pred != cityEQ || !f.found {
		return invalidID
	}
	return int32(f.cityID)
}
func (f *cityFilter) EstimateOutputSize() int {
	key, ok := f.lookupKey()
	if !ok {
		return 0
	}
	return f.reg.ByCity.Cardinality(key)
}
func (f *cityFilter) Lookup() iter.Iterator {
	key, ok := f.lookupKey()
	if !ok {
		return iter.NewList(nil)
	}
	return f.reg.ByCity.Iterator(key)
}

// --- birth ---

type birthPredicate int

const (
	birthLT birthPredicate = iota
	birthGT
	birthYEAR
)

type birthFilter struct {
	reg   *Registry
	pred  birthPredicate
	value int32
	year  int8
}

func (f *birthFilter) Name() string { return "birth" }
func (f *birthFilter) Matches(a *store.Account) bool {
	switch f.pred {
	case birthLT:
		return a.Birth < f.value
	case birthGT:
		return a.Birth > f.value
	default:
		return a.BirthYear == f.year
	}
}
func (f *birthFilter) SupportsLookup() bool { return f.pred == birthYEAR }
func (f *birthFilter) ValueID() int32 {
	if f.pred != birthYEAR {
		return invalidID
	}
	return int32(f.year)
}
func (f *birthFilter) EstimateOutputSize() int {
	return f.reg.ByBirthYear.Cardinality(int32(f.year))
}
func (f *birthFilter) Lookup() iter.Iterator {
	return f.reg.ByBirthYear.Iterator(int32(f.year))
}

// --- joined ---

type joinedFilter struct {
	reg  *Registry
	year int8
}

func (f *joinedFilter) Name() string                  { return "joined" }
func (f *joinedFilter) Matches(a *store.Account) bool { return a.JoinedYear == f.year }
func (f *joinedFilter) SupportsLookup() bool          { return true }
func (f *joinedFilter) ValueID() int32                { return int32(f.year) }
func (f *joinedFilter) EstimateOutputSize() int {
	return f.reg.ByJoinedYear.Cardinality(int32(f.year))
}
func (f *joinedFilter) Lookup() iter.Iterator {
	return f.reg.ByJoinedYear.Iterator(int32(f.year))
}

// --- interests ---

type interestsPredicate int

const (
	interestsCONTAINS interestsPredicate = iota
	interestsANY
)

type interestsFilter struct {
	reg       *Registry
	pred      interestsPredicate
	valuesSet map[int8]struct{}
	valuesVec []int8 // sorted descending
	unknown   bool   // at least one query value was never interned
}

func (f *interestsFilter) Name() string { return "interests" }

func (f *interestsFilter) Matches(a *store.Account) bool {
	if f.pred == interestsCONTAINS && f.unknown {
		return false
	}
	if len(f.valuesVec) == 0 {
		return false
	}
	if len(f.valuesVec) == 1 {
		needle := f.valuesVec[0]
		for _, id := range a.Interests {
			if id == needle {
				return true
			}
		}
		return false
	}
	left, right := f.valuesVec, a.Interests
	i, j := 0, 0
	if f.pred == interestsCONTAINS {
		for {
			if i >= len(left) {
				return true
			}
			if j >= len(right) {
				return false
			}
			switch {
			case left[i] == right[j]:
				i++
				j++
			case left[i] > right[j]:
				return false
			default:
				j++
			}
		}
	}
	for {
		if i >= len(left) || j >= len(right) {
			return false
		}
		switch {
		case left[i] == right[j]:
			return true
		case left[i] > right[j]:
			i++
		default:
			j++
		}
	}
}

func (f *interestsFilter) SupportsLookup() bool {
	if f.pred == interestsCONTAINS {
		return true
	}
	return len(f.valuesSet) == 1 && !f.unknown
}
func (f *interestsFilter) ValueID() int32 {
	if len(f.valuesSet) != 1 || (f.pred == interestsCONTAINS && f.unknown) {
		return invalidID
	}
	for id := range f.valuesSet {
		return int32(id)
	}
	return invalidID
}

// bestInterestID picks, for CONTAINS, the smallest-cardinality
// interest among the selected set to drive the lookup from. ok is
// false when no interned interest can drive (the filter then selects
// nothing at all).
func (f *interestsFilter) bestInterestID() (int8, bool) {
	if f.pred == interestsCONTAINS && f.unknown {
		return 0, false
	}
	if len(f.valuesVec) == 0 {
		return 0, false
	}
	if f.pred == interestsANY {
		return f.valuesVec[0], true
	}
	best := f.valuesVec[0]
	bestSize := f.reg.ByInterest.Cardinality(int32(best))
	for id := range f.valuesSet {
		sz := f.reg.ByInterest.Cardinality(int32(id))
		if sz < bestSize {
			best, bestSize = id, sz
		}
	}
	return best, true
}

func (f *interestsFilter) EstimateOutputSize() int {
	id, ok := f.bestInterestID()
	if !ok {
		return 0
	}
	return f.reg.ByInterest.Cardinality(int32(id))
}
func (f *interestsFilter) Lookup() iter.Iterator {
	id, ok := f.bestInterestID()
	if !ok {
		return iter.NewList(nil)
	}
	it := iter.Iterator(f.reg.ByInterest.Iterator(int32(id)))
	if f.pred == interestsCONTAINS {
		// The smallest list drives; every other selected interest
		// narrows it, so the lookup yields exactly the matching ids.
		for other := range f.valuesSet {
			if other != id {
				it = iter.NewIntersect(it, f.reg.ByInterest.Iterator(int32(other)))
			}
		}
	}
	return it
}

// --- likes ---

type likesFilter struct {
	reg    *Registry
	values []int32 // sorted descending
}

func (f *likesFilter) Name() string { return "likes" }

func (f *likesFilter) Matches(a *store.Account) bool {
	i, j := 0, 0
	likes := a.Likes
	for {
		if i >= len(f.values) {
			return true
		}
		if j >= len(likes) {
			return false
		}
		switch {
		case f.values[i] == likes[j].AccountID:
			i++
			j++
		case f.values[i] > likes[j].AccountID:
			return false
		default:
			j++
		}
	}
}

func (f *likesFilter) SupportsLookup() bool { return len(f.values) <= 3 }
func (f *likesFilter) ValueID() int32       { return invalidID }

func (f *likesFilter) backwardIter(id int32) iter.Iterator {
	a := f.reg.Store.Get(id)
	if a.Empty() {
		return iter.NewList(nil)
	}
	edges := make([]iter.Edge, len(a.BackwardLikes))
	for i, e := range a.BackwardLikes {
		edges[i] = iter.Edge{AccountID: e.AccountID}
	}
	return iter.NewEdges(edges)
}

func (f *likesFilter) combined() iter.Iterator {
	switch len(f.values) {
	case 1:
		return f.backwardIter(f.values[0])
	case 2:
		return iter.NewIntersect(f.backwardIter(f.values[0]), f.backwardIter(f.values[1]))
	default:
		a := iter.NewIntersect(f.backwardIter(f.values[0]), f.backwardIter(f.values[1]))
		return iter.NewIntersect(a, f.backwardIter(f.values[2]))
	}
}

func (f *likesFilter) EstimateOutputSize() int { return f.combined().Size() }
func (f *likesFilter) Lookup() iter.Iterator   { return f.combined() }

// --- premium ---

type premiumPredicate int

const (
	premiumNOW premiumPredicate = iota
	premiumNULL
)

type premiumFilter struct {
	pred  premiumPredicate
	value string
}

func (f *premiumFilter) Name() string { return "premium" }
func (f *premiumFilter) Matches(a *store.Account) bool {
	if f.pred == premiumNOW {
		return checkBool(a.HasPremiumNow, f.value)
	}
	return checkBool(a.PremiumStart == 0, f.value)
}
func (f *premiumFilter) SupportsLookup() bool    { return false }
func (f *premiumFilter) ValueID() int32          { return invalidID }
func (f *premiumFilter) EstimateOutputSize() int { return 0 }
func (f *premiumFilter) Lookup() iter.Iterator   { return iter.NewList(nil) }
