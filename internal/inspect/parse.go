package inspect

import (
	"fmt"
	"regexp"
	"strconv"
)

// Request is one parsed inspect query. Exactly one of S or M carries the
// owner: S is a steam id, M a market listing id.
type Request struct {
	S string
	A string
	D string
	M string

	Refresh bool
}

// BadRequestError marks malformed input; the API surfaces it as 400 and it
// is never retried.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return e.Reason }

func badRequest(format string, args ...interface{}) error {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

var (
	steamIDPattern = regexp.MustCompile(`^7656\d{13}$`)
	// The in-game inspect link: steam://rungame/730/<n>/ csgo_econ_action_preview
	// followed by S<owner> or M<listing>, then A<asset> and D<descriptor>.
	// The space after the verb arrives raw, '+'-encoded or %20-encoded
	// depending on who pasted it.
	inspectURLPattern = regexp.MustCompile(
		`^steam://rungame/730/\d+/(?: |\+|%20)csgo_econ_action_preview(?: |%20)?([SM])(\d{1,20})A(\d+)D(\d+)$`)
)

// ParseQuery validates raw query parameters into a Request. Either an
// inspect url or the explicit {s|m, a, d} triple is accepted.
func ParseQuery(s, a, d, m, url string, refresh bool) (Request, error) {
	if url != "" {
		req, err := parseInspectURL(url)
		if err != nil {
			return Request{}, err
		}
		req.Refresh = refresh
		return req, nil
	}

	req := Request{S: s, A: a, D: d, M: m, Refresh: refresh}
	if req.M == "0" {
		req.M = ""
	}

	if req.A == "" || req.D == "" {
		return Request{}, badRequest("missing required parameters a and d")
	}
	if _, err := strconv.ParseUint(req.A, 10, 64); err != nil {
		return Request{}, badRequest("parameter a must be a numeric asset id")
	}
	if _, err := strconv.ParseUint(req.D, 10, 64); err != nil {
		return Request{}, badRequest("parameter d must be numeric")
	}

	switch {
	case req.M != "":
		if _, err := strconv.ParseUint(req.M, 10, 64); err != nil {
			return Request{}, badRequest("parameter m must be a numeric listing id")
		}
	case req.S != "":
		if !steamIDPattern.MatchString(req.S) {
			return Request{}, badRequest("parameter s must be a 7656-prefixed steam id")
		}
	default:
		return Request{}, badRequest("either s, m or url is required")
	}
	return req, nil
}

func parseInspectURL(url string) (Request, error) {
	groups := inspectURLPattern.FindStringSubmatch(url)
	if groups == nil {
		return Request{}, badRequest("unrecognized inspect url")
	}
	req := Request{A: groups[3], D: groups[4]}
	if groups[1] == "S" {
		req.S = groups[2]
		if !steamIDPattern.MatchString(req.S) {
			return Request{}, badRequest("inspect url carries an invalid steam id")
		}
	} else {
		req.M = groups[2]
	}
	return req, nil
}
