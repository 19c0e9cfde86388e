// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loveindex/queryserver/internal/filterql"
	"github.com/loveindex/queryserver/internal/group"
	"github.com/loveindex/queryserver/internal/mutate"
	"github.com/loveindex/queryserver/internal/paging"
	"github.com/loveindex/queryserver/internal/plan"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/recommend"
	"github.com/loveindex/queryserver/internal/store"
	"github.com/loveindex/queryserver/internal/suggest"
)

// FilterGETHandler answers GET /accounts/filter/.
func (m *Module) FilterGETHandler(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	params := queryParams(c)
	set, err := filterql.ParseParams(params, m.eng.Reg)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	ids := plan.RunFilter(m.eng.Reg, set, limit)

	// The response carries id, email, and every field the query
	// referenced; interests and likes are never echoed back.
	selected := make(map[string]bool, len(set.Filters))
	for _, f := range set.Filters {
		selected[f.Name()] = true
	}

	rows := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		a := m.eng.Reg.Store.Get(id)
		if a.Empty() {
			continue
		}
		rows = append(rows, renderAccount(a, selected))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": rows})
}

// GroupGETHandler answers GET /accounts/group/.
func (m *Module) GroupGETHandler(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	order, err := paging.ParseOrder(c.Query("order"))
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	keys, err := parseGroupKeys(c.Query("keys"))
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	filters := make([]filterql.Filter, 0, 2)
	for key, value := range queryParams(c) {
		switch key {
		case "keys", "order", "limit", "query_id":
			continue
		}
		f, err := filterql.ParseGroupFilter(key, value, m.eng.Reg)
		if err != nil {
			ErrorHandler(c, err)
			return
		}
		filters = append(filters, f)
	}

	rows := plan.RunGroup(m.eng.Reg, m.eng.Cache, &plan.GroupQuery{
		Keys:       keys,
		Filters:    filters,
		Descending: order.Descending(),
		Limit:      limit,
	})

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{"count": row.Count}
		for i, key := range keys {
			value, err := plan.FieldValueString(m.eng.Reg, key, row.Values[i])
			if err != nil || value == "" {
				continue
			}
			if key == group.BirthYear || key == group.JoinedYear {
				year, _ := strconv.Atoi(value)
				entry[key] = year
			} else {
				entry[key] = value
			}
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

func parseGroupKeys(raw string) ([]string, error) {
	if raw == "" {
		return nil, qserror.NewBadRequest("group: keys is required")
	}
	keys := strings.Split(raw, ",")
	if len(keys) > 3 {
		return nil, qserror.NewBadRequest("group: more than 3 keys")
	}
	ext := 0
	for _, key := range keys {
		if !group.IsCachedBreakdown(key) {
			return nil, qserror.NewBadRequest("group: unexpected key " + key)
		}
		if key == group.BirthYear || key == group.JoinedYear {
			ext++
		}
	}
	if ext > 1 {
		return nil, qserror.NewBadRequest("group: at most one of birth/joined may be a key")
	}
	return keys, nil
}

// RecommendGETHandler answers GET /accounts/{id}/recommend/.
func (m *Module) RecommendGETHandler(c *gin.Context) {
	id, err := parseAccountID(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	lf, err := filterql.ParseLocationFilter(queryParams(c), m.eng.Reg)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	ids, err := recommend.Recommend(m.eng.Reg, m.eng.Buckets, id, lf, limit)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	rows := make([]gin.H, 0, len(ids))
	for _, candID := range ids {
		a := m.eng.Reg.Store.Get(candID)
		if a.Empty() {
			continue
		}
		entry := renderAccount(a, map[string]bool{
			"status": true, "fname": true, "sname": true, "birth": true, "premium": true,
		})
		rows = append(rows, entry)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": rows})
}

// SuggestGETHandler answers GET /accounts/{id}/suggest/.
func (m *Module) SuggestGETHandler(c *gin.Context) {
	id, err := parseAccountID(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	lf, err := filterql.ParseLocationFilter(queryParams(c), m.eng.Reg)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	ids, err := suggest.Suggest(m.eng.Reg, id, lf, limit)
	if err != nil {
		ErrorHandler(c, err)
		return
	}

	rows := make([]gin.H, 0, len(ids))
	for _, suggestedID := range ids {
		a := m.eng.Reg.Store.Get(suggestedID)
		if a.Empty() {
			continue
		}
		rows = append(rows, renderAccount(a, map[string]bool{
			"status": true, "fname": true, "sname": true,
		}))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": rows})
}

// NewPOSTHandler answers POST /accounts/new/.
func (m *Module) NewPOSTHandler(c *gin.Context) {
	var p mutate.AccountPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&p); err != nil {
		ErrorHandler(c, qserror.NewBadRequest("unparseable account payload"))
		return
	}
	if err := m.eng.Create(&p); err != nil {
		ErrorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

// UpdatePOSTHandler answers POST /accounts/{id}/.
func (m *Module) UpdatePOSTHandler(c *gin.Context) {
	id, err := parseAccountID(c)
	if err != nil {
		ErrorHandler(c, err)
		return
	}
	var p mutate.AccountPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&p); err != nil {
		ErrorHandler(c, qserror.NewBadRequest("unparseable account payload"))
		return
	}
	if err := m.eng.Update(id, &p); err != nil {
		ErrorHandler(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{})
}

// LikesPOSTHandler answers POST /accounts/likes/.
func (m *Module) LikesPOSTHandler(c *gin.Context) {
	var p mutate.LikesPayload
	if err := json.NewDecoder(c.Request.Body).Decode(&p); err != nil {
		ErrorHandler(c, qserror.NewBadRequest("unparseable likes payload"))
		return
	}
	if err := m.eng.ApplyLikes(p.Likes); err != nil {
		ErrorHandler(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{})
}

// renderAccount builds one response row: id always, email when
// non-empty, plus every selected field with a non-empty value.
func renderAccount(a *store.Account, selected map[string]bool) gin.H {
	entry := gin.H{"id": a.ID}
	if a.Email != "" {
		entry["email"] = a.Email
	}
	if selected["sex"] {
		entry["sex"] = a.Sex.String()
	}
	if selected["status"] {
		entry["status"] = a.Status.String()
	}
	if selected["fname"] && a.FName != "" {
		entry["fname"] = a.FName
	}
	if selected["sname"] && a.SName != "" {
		entry["sname"] = a.SName
	}
	if selected["phone"] && a.Phone != "" {
		entry["phone"] = a.Phone
	}
	if selected["country"] && a.Country != "" {
		entry["country"] = a.Country
	}
	if selected["city"] && a.City != "" {
		entry["city"] = a.City
	}
	if selected["birth"] {
		entry["birth"] = a.Birth
	}
	if selected["premium"] && a.PremiumStart > 0 {
		entry["premium"] = gin.H{"start": a.PremiumStart, "finish": a.PremiumFinish}
	}
	return entry
}
