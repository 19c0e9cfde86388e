// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/loveindex/queryserver/internal/iter"
	"github.com/loveindex/queryserver/internal/store"
)

// selftest is the zero-argument smoke suite: a handful of pure-helper
// checks that catch gross build misconfiguration before any data is
// loaded.
func selftest() error {
	if got := store.DerivePhoneCode("8(974)1210264"); got != "974" {
		return fmt.Errorf("selftest: phone code = %q, want 974", got)
	}
	if got := store.DerivePhoneCode("8()1210264"); got != "" {
		return fmt.Errorf("selftest: empty parens phone code = %q, want empty", got)
	}
	if got := store.DerivePhoneCode("89741210264"); got != "" {
		return fmt.Errorf("selftest: no-paren phone code = %q, want empty", got)
	}
	if got := store.YearFromUnix(893884157); got != 1998 {
		return fmt.Errorf("selftest: year = %d, want 1998", got)
	}
	if store.SexMale.Opposite() != store.SexFemale || store.SexFemale.Opposite() != store.SexMale {
		return fmt.Errorf("selftest: oppositeSex is not an involution")
	}

	a := iter.NewList([]int32{9, 7, 5, 3, 1})
	b := iter.NewList([]int32{8, 7, 3, 2})
	got := iter.Collect(iter.NewIntersect(a, b), 0)
	if len(got) != 2 || got[0] != 7 || got[1] != 3 {
		return fmt.Errorf("selftest: intersect = %v, want [7 3]", got)
	}
	return nil
}
