package controllers

import (
	"net/http"

	"eventlisting/internal/delivery/http/helpers"
	"eventlisting/internal/delivery/http/middleware"
)

// currentUser writes 401 and returns false when the request carries no user.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
	}
	return userID, ok
}

// pathID writes 400 and returns false when the named path value is not an id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, err := helpers.PathID(r, name)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func badQuery(w http.ResponseWriter, err error) {
	helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
}
