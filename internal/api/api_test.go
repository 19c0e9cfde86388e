// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/loveindex/queryserver/internal/api"
	"github.com/loveindex/queryserver/internal/engine"
	"github.com/loveindex/queryserver/internal/mutate"
	"github.com/loveindex/queryserver/internal/store"
)

type AccountsAPITestSuite struct {
	suite.Suite
	eng    *engine.Engine
	router *gin.Engine
}

func str(s string) *string { return &s }
func i32(v int32) *int32   { return &v }

func (suite *AccountsAPITestSuite) SetupTest() {
	suite.eng = engine.New(1000, 0)
	suite.Require().NoError(suite.eng.Start())

	// Two accounts: 1 is male in C1 with interests I1,I2; 2 is female
	// in C2 with interests I2,I3.
	suite.Require().NoError(suite.eng.Create(&mutate.AccountPayload{
		ID: 1, Email: str("one@mail.ru"),
		Sex: str("m"), Status: str(store.StatusSingleStr),
		Birth: i32(893884157), Joined: i32(1483228800),
		Country: str("C1"), Interests: []string{"I1", "I2"},
	}))
	suite.Require().NoError(suite.eng.Create(&mutate.AccountPayload{
		ID: 2, Email: str("two@mail.ru"),
		Sex: str("f"), Status: str(store.StatusSingleStr),
		Birth: i32(893884157), Joined: i32(1483228800),
		Country: str("C2"), Interests: []string{"I2", "I3"},
	}))
	suite.eng.RebuildNow()

	suite.router = api.New(suite.eng, 8).Router()
}

func (suite *AccountsAPITestSuite) TearDownTest() {
	_ = suite.eng.Stop()
}

func (suite *AccountsAPITestSuite) get(path string) (*httptest.ResponseRecorder, map[string]any) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	// Skip gzip negotiation so the body decodes directly.
	req.Header.Set("Accept-Encoding", "identity")
	suite.router.ServeHTTP(recorder, req)

	body := make(map[string]any)
	if recorder.Code == http.StatusOK {
		suite.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder, body
}

func (suite *AccountsAPITestSuite) post(path string, payload any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(payload)
	suite.Require().NoError(err)
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	suite.router.ServeHTTP(recorder, req)
	return recorder
}

func accountsOf(body map[string]any) []any {
	accounts, _ := body["accounts"].([]any)
	return accounts
}

func (suite *AccountsAPITestSuite) TestFilterByCountry() {
	recorder, body := suite.get("/accounts/filter/?country_eq=C1&limit=10")
	suite.Equal(http.StatusOK, recorder.Code)

	accounts := accountsOf(body)
	suite.Require().Len(accounts, 1)
	row := accounts[0].(map[string]any)
	suite.EqualValues(1, row["id"])
	suite.Equal("one@mail.ru", row["email"])
	suite.Equal("C1", row["country"])
	suite.NotContains(row, "sex")
}

func (suite *AccountsAPITestSuite) TestFilterRequiresLimit() {
	recorder, _ := suite.get("/accounts/filter/?country_eq=C1")
	suite.Equal(http.StatusBadRequest, recorder.Code)
}

func (suite *AccountsAPITestSuite) TestGroupByCountryTieBrokenByValue() {
	recorder, body := suite.get("/accounts/group/?keys=country&order=-1&limit=10")
	suite.Equal(http.StatusOK, recorder.Code)

	groups, _ := body["groups"].([]any)
	suite.Require().Len(groups, 2)
	first := groups[0].(map[string]any)
	second := groups[1].(map[string]any)
	suite.EqualValues(1, first["count"])
	suite.Equal("C1", first["country"])
	suite.Equal("C2", second["country"])
}

func (suite *AccountsAPITestSuite) TestGroupRejectsUnsupportedFilterField() {
	recorder, _ := suite.get("/accounts/group/?keys=country&email=foo@bar&limit=10")
	suite.Equal(http.StatusBadRequest, recorder.Code)
}

func (suite *AccountsAPITestSuite) TestLikesThenSuggestEmpty() {
	recorder := suite.post("/accounts/likes/", mutate.LikesPayload{
		Likes: []mutate.BatchLike{{Liker: 1, Likee: 2, TS: 1000}},
	})
	suite.Equal(http.StatusAccepted, recorder.Code)

	// Suggest walks 2's own likes, and 2 liked nobody: no similar
	// likers, so the result is empty.
	getRecorder, body := suite.get("/accounts/2/suggest/?limit=10")
	suite.Equal(http.StatusOK, getRecorder.Code)
	suite.Empty(accountsOf(body))
}

func (suite *AccountsAPITestSuite) TestFilterInterestsContains() {
	recorder, body := suite.get("/accounts/filter/?interests_contains=I1,I2&limit=10")
	suite.Equal(http.StatusOK, recorder.Code)

	accounts := accountsOf(body)
	suite.Require().Len(accounts, 1)
	suite.EqualValues(1, accounts[0].(map[string]any)["id"])
}

func (suite *AccountsAPITestSuite) TestRecommendOppositeSexSharedInterest() {
	recorder, body := suite.get("/accounts/1/recommend/?limit=10")
	suite.Equal(http.StatusOK, recorder.Code)

	accounts := accountsOf(body)
	suite.Require().Len(accounts, 1)
	suite.EqualValues(2, accounts[0].(map[string]any)["id"])
}

func (suite *AccountsAPITestSuite) TestRecommendUnknownAccount404() {
	recorder, _ := suite.get("/accounts/999/recommend/?limit=10")
	suite.Equal(http.StatusNotFound, recorder.Code)
}

func (suite *AccountsAPITestSuite) TestCreateDuplicateEmailRejected() {
	recorder := suite.post("/accounts/new/", mutate.AccountPayload{
		ID: 3, Email: str("one@mail.ru"),
		Sex: str("f"), Status: str(store.StatusSingleStr),
		Birth: i32(893884157), Joined: i32(1483228800),
	})
	suite.Equal(http.StatusBadRequest, recorder.Code)
	suite.True(suite.eng.Reg.Store.Get(3).Empty())
}

func (suite *AccountsAPITestSuite) TestCreateThenUpdate() {
	recorder := suite.post("/accounts/new/", mutate.AccountPayload{
		ID: 3, Email: str("three@mail.ru"),
		Sex: str("f"), Status: str(store.StatusSingleStr),
		Birth: i32(893884157), Joined: i32(1483228800),
	})
	suite.Equal(http.StatusCreated, recorder.Code)

	recorder = suite.post("/accounts/3/", mutate.AccountPayload{Status: str(store.StatusComplicatedStr)})
	suite.Equal(http.StatusAccepted, recorder.Code)
	suite.Equal(store.StatusComplicated, suite.eng.Reg.Store.Get(3).Status)

	recorder = suite.post("/accounts/99/", mutate.AccountPayload{Status: str(store.StatusComplicatedStr)})
	suite.Equal(http.StatusNotFound, recorder.Code)

	recorder = suite.post("/accounts/3/", mutate.AccountPayload{Status: str("nonsense")})
	suite.Equal(http.StatusBadRequest, recorder.Code)
}

func TestAccountsAPITestSuite(t *testing.T) {
	suite.Run(t, &AccountsAPITestSuite{})
}
