// SPDX-License-Identifier: AGPL-3.0-or-later

package filterql

import (
	"strings"

	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// ParseSelector parses one "field_predicate=value" term for the
// filter-query endpoint.
func ParseSelector(field, predicate, value string, reg *Registry) (Filter, error) {
	switch field {
	case "sex":
		if predicate != "eq" {
			return nil, qserror.NewBadRequest("sex: unexpected predicate " + predicate)
		}
		sx, ok := store.ParseSex(value)
		if !ok {
			return nil, qserror.NewBadRequest("sex: unexpected value " + value)
		}
		return &sexFilter{reg: reg, value: sx}, nil

	case "email":
		switch predicate {
		case "lt":
			return &emailFilter{reg: reg, pred: emailLT, value: value}, nil
		case "gt":
			return &emailFilter{reg: reg, pred: emailGT, value: value}, nil
		case "domain":
			return &emailFilter{reg: reg, pred: emailDomain, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("email: unexpected predicate " + predicate)
		}

	case "status":
		st, ok := store.ParseStatus(value)
		if !ok {
			return nil, qserror.NewBadRequest("status: unknown status string " + value)
		}
		switch predicate {
		case "eq":
			return &statusFilter{reg: reg, pred: statusEQ, value: st}, nil
		case "neq":
			return &statusFilter{reg: reg, pred: statusNEQ, value: st}, nil
		default:
			return nil, qserror.NewBadRequest("status: unexpected predicate " + predicate)
		}

	case "fname":
		switch predicate {
		case "eq":
			return &fnameFilter{pred: fnameEQ, value: value}, nil
		case "any":
			names := strings.Split(value, ",")
			set := make(map[string]struct{}, len(names))
			for _, n := range names {
				set[n] = struct{}{}
			}
			return &fnameFilter{pred: fnameANY, values: set}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &fnameFilter{pred: fnameNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("fname: unexpected predicate " + predicate)
		}

	case "sname":
		switch predicate {
		case "eq":
			return &snameFilter{pred: snameEQ, value: value}, nil
		case "starts":
			return &snameFilter{pred: snameSTARTS, value: value}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &snameFilter{pred: snameNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("sname: unexpected predicate " + predicate)
		}

	case "phone":
		switch predicate {
		case "code":
			return &phoneFilter{pred: phoneCODE, value: value}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &phoneFilter{pred: phoneNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("phone: unexpected predicate " + predicate)
		}

	case "country":
		switch predicate {
		case "eq":
			id, found := reg.Countries.Lookup(value)
			return &countryFilter{reg: reg, pred: countryEQ, value: value, countryID: id, found: found}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &countryFilter{reg: reg, pred: countryNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("country: unexpected predicate " + predicate)
		}

	case "city":
		switch predicate {
		case "eq":
			id, found := reg.Cities.Lookup(value)
			return &cityFilter{reg: reg, pred: cityEQ, value: value, cityID: id, found: found}, nil
		case "any":
			names := strings.Split(value, ",")
			ids := make(map[int16]struct{}, len(names))
			for _, n := range names {
				if id, ok := reg.Cities.Lookup(n); ok {
					ids[id] = struct{}{}
				}
			}
			return &cityFilter{reg: reg, pred: cityANY, cityIDs: ids}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &cityFilter{reg: reg, pred: cityNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("city: unexpected predicate " + predicate)
		}

	case "birth":
		switch predicate {
		case "lt":
			ts, err := parseInt32(value)
			if err != nil {
				return nil, err
			}
			return &birthFilter{reg: reg, pred: birthLT, value: ts}, nil
		case "gt":
			ts, err := parseInt32(value)
			if err != nil {
				return nil, err
			}
			return &birthFilter{reg: reg, pred: birthGT, value: ts}, nil
		case "year":
			y, err := parseInt32(value)
			if err != nil {
				return nil, err
			}
			return &birthFilter{reg: reg, pred: birthYEAR, year: int8(y - store.BaseYear)}, nil
		default:
			return nil, qserror.NewBadRequest("birth: unexpected predicate " + predicate)
		}

	case "interests":
		return parseInterests(predicate, value, reg)

	case "likes":
		if predicate != "contains" {
			return nil, qserror.NewBadRequest("likes: unexpected predicate " + predicate)
		}
		return parseLikes(value, reg)

	case "premium":
		switch predicate {
		case "now":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &premiumFilter{pred: premiumNOW, value: value}, nil
		case "null":
			if err := parseBool01(value); err != nil {
				return nil, err
			}
			return &premiumFilter{pred: premiumNULL, value: value}, nil
		default:
			return nil, qserror.NewBadRequest("premium: unexpected predicate " + predicate)
		}

	default:
		return nil, qserror.NewBadRequest("unexpected field: " + field)
	}
}

func parseInterests(predicate, value string, reg *Registry) (Filter, error) {
	var pred interestsPredicate
	switch predicate {
	case "contains":
		pred = interestsCONTAINS
	case "any":
		pred = interestsANY
	default:
		return nil, qserror.NewBadRequest("interests: unexpected predicate " + predicate)
	}
	// Query values resolve through Lookup only: an interest name never
	// seen in the data matches nothing, and must not be interned off
	// the read path.
	names := strings.Split(value, ",")
	set := make(map[int8]struct{}, len(names))
	vec := make([]int8, 0, len(names))
	unknown := false
	for _, n := range names {
		id, ok := reg.Interests.Lookup(n)
		if !ok {
			unknown = true
			continue
		}
		if _, dup := set[id]; dup {
			continue
		}
		set[id] = struct{}{}
		vec = append(vec, id)
	}
	sortDescInt8(vec)
	return &interestsFilter{reg: reg, pred: pred, valuesSet: set, valuesVec: vec, unknown: unknown}, nil
}

func parseLikes(value string, reg *Registry) (Filter, error) {
	parts := strings.Split(value, ",")
	ids := make([]int32, 0, len(parts))
	for _, p := range parts {
		id, err := parseInt32(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sortDescInt32(ids)
	return &likesFilter{reg: reg, values: ids}, nil
}

// ParseGroupFilter parses one breakdown-field filter term for the
// group-query endpoint (always an implicit "eq"/"year"/"contains"
// predicate). Email, phone and premium are deliberately unsupported
// in the group path.
func ParseGroupFilter(field, value string, reg *Registry) (Filter, error) {
	switch field {
	case "sex":
		return ParseSelector("sex", "eq", value, reg)
	case "email":
		return nil, qserror.NewUnsupported("filter by email in group API is unsupported")
	case "status":
		return ParseSelector("status", "eq", value, reg)
	case "fname":
		return ParseSelector("fname", "eq", value, reg)
	case "sname":
		return ParseSelector("sname", "eq", value, reg)
	case "phone":
		return nil, qserror.NewUnsupported("filter by phone in group API is unsupported")
	case "country":
		return ParseSelector("country", "eq", value, reg)
	case "city":
		return ParseSelector("city", "eq", value, reg)
	case "birth":
		return ParseSelector("birth", "year", value, reg)
	case "joined":
		y, err := parseInt32(value)
		if err != nil {
			return nil, err
		}
		return &joinedFilter{reg: reg, year: int8(y - store.BaseYear)}, nil
	case "interests":
		return parseInterests("contains", value, reg)
	case "likes":
		return parseLikes(value, reg)
	case "premium":
		return nil, qserror.NewUnsupported("filter by premium in group API is unsupported")
	default:
		return nil, qserror.NewBadRequest("unexpected field: " + field)
	}
}

// Set is a parsed collection of filter terms, ANDed together.
type Set struct {
	Filters []Filter
}

// ParseParams parses every "field_predicate=value" query parameter in
// params, skipping the known non-filter keys "query_id" and "limit".
func ParseParams(params map[string]string, reg *Registry) (*Set, error) {
	set := &Set{Filters: make([]Filter, 0, len(params))}
	for key, value := range params {
		if key == "query_id" || key == "limit" {
			continue
		}
		idx := strings.IndexByte(key, '_')
		if idx < 0 {
			// Unrecognised tracking-style params carry no
			// field_predicate shape; ignore rather than reject.
			continue
		}
		field, predicate := key[:idx], key[idx+1:]
		f, err := ParseSelector(field, predicate, value, reg)
		if err != nil {
			return nil, err
		}
		set.Filters = append(set.Filters, f)
	}
	return set, nil
}

// Matches reports whether every filter in the set matches a.
func (s *Set) Matches(a *store.Account) bool {
	for _, f := range s.Filters {
		if !f.Matches(a) {
			return false
		}
	}
	return true
}
