// Package httpx holds the JSON response helpers shared by the desk API and
// the gateway relay.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors understood by RespondError without extra rules.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorRule maps errors matching Target to a problem response. An empty
// Detail echoes the error text.
type ErrorRule struct {
	Target error
	Status int
	Title  string
	Detail string
}

var defaultRules = []ErrorRule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Target: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// RespondError writes the first rule whose Target matches err, trying the
// caller's rules before the package defaults. Anything unmatched becomes a
// bare 500 so internal messages never leak.
func RespondError(w http.ResponseWriter, err error, rules ...ErrorRule) {
	for _, set := range [][]ErrorRule{rules, defaultRules} {
		for _, rule := range set {
			if !errors.Is(err, rule.Target) {
				continue
			}
			detail := rule.Detail
			if detail == "" {
				detail = err.Error()
			}
			Problem(w, rule.Status, rule.Title, detail)
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
