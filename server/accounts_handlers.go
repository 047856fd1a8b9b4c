package server

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// accessTokenForRequest picks the token forwarded to the accounts API: the
// caller's own bearer token, or the session's stored access token.
func accessTokenForRequest(r *http.Request) string {
	if raw := bearerToken(r); raw != "" {
		return raw
	}
	if _, session, ok := sessionFromContext(r.Context()); ok {
		return session.AccessToken
	}
	return ""
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func (s *Server) AccountsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		withBalance := r.URL.Query().Get("withBalance") == "true"
		limit, offset := pagination(r)

		page, err := s.accounts.GetAccounts(r.Context(), accessTokenForRequest(r), withBalance, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("accounts list failed")
			writeJSONError(w, http.StatusBadGateway, "upstream accounts service failed")
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) AccountBalancesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := s.accounts.GetAccountBalance(r.Context(), accessTokenForRequest(r), r.PathValue("id"))
		if err != nil {
			log.Error().Err(err).Msg("account balance failed")
			writeJSONError(w, http.StatusBadGateway, "upstream accounts service failed")
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

func (s *Server) AccountDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := s.accounts.GetAccountDetail(r.Context(), accessTokenForRequest(r), r.PathValue("id"))
		if err != nil {
			log.Error().Err(err).Msg("account detail failed")
			writeJSONError(w, http.StatusBadGateway, "upstream accounts service failed")
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func (s *Server) AccountStatementHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pagination(r)
		fromDate := r.URL.Query().Get("fromDate")
		toDate := r.URL.Query().Get("toDate")

		statement, err := s.accounts.GetAccountStatement(r.Context(), accessTokenForRequest(r), r.PathValue("id"), fromDate, toDate, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("account statement failed")
			writeJSONError(w, http.StatusBadGateway, "upstream accounts service failed")
			return
		}
		writeJSON(w, http.StatusOK, statement)
	}
}
