// SPDX-License-Identifier: AGPL-3.0-or-later

package filterql

import (
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// LocationFilter narrows a result set to a single country or city,
// the recommend and suggest endpoints' optional location constraint
// (at most one of the two may be given). A nil *LocationFilter
// matches everything.
type LocationFilter struct {
	byCountry bool
	countryID int8
	cityID    int16
	found     bool
}

// ParseLocationFilter builds a LocationFilter from the "country" and
// "city" query parameters, rejecting requests that name both.
func ParseLocationFilter(params map[string]string, reg *Registry) (*LocationFilter, error) {
	countryVal, hasCountry := params["country"]
	cityVal, hasCity := params["city"]
	if hasCountry && hasCity {
		return nil, qserror.NewBadRequest("country and city are mutually exclusive")
	}
	if hasCountry {
		id, ok := reg.Countries.Lookup(countryVal)
		return &LocationFilter{byCountry: true, countryID: id, found: ok}, nil
	}
	if hasCity {
		id, ok := reg.Cities.Lookup(cityVal)
		return &LocationFilter{byCountry: false, cityID: id, found: ok}, nil
	}
	return nil, nil
}

func (lf *LocationFilter) Matches(a *store.Account) bool {
	if lf == nil {
		return true
	}
	if !lf.found {
		return false
	}
	if lf.byCountry {
		return a.CountryID == lf.countryID
	}
	return a.CityID == lf.cityID
}
