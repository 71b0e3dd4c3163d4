package probe

import (
	"fmt"
	"net/http"
	"strconv"
)

// StatusNoWebsite is the report status of a club without a website.
const StatusNoWebsite = "NO WEBSITE"

// Kind tags the variant held by an Outcome.
type Kind int

const (
	KindNoWebsite Kind = iota
	KindSuccess
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransportError:
		return "transport_error"
	default:
		return "no_website"
	}
}

// Outcome is the result of checking one club website: a received response,
// a transport failure, or no website to check at all.
type Outcome struct {
	Kind Kind

	// StatusCode and FinalURL are set for KindSuccess.
	StatusCode int
	FinalURL   string

	// ErrorKind and Err are set for KindTransportError.
	ErrorKind string
	Err       error
}

// Success returns the outcome of a request that received a response.
func Success(statusCode int, finalURL string) Outcome {
	return Outcome{Kind: KindSuccess, StatusCode: statusCode, FinalURL: finalURL}
}

// TransportError returns the outcome of a request that failed below the
// HTTP response layer.
func TransportError(kind string, err error) Outcome {
	return Outcome{Kind: KindTransportError, ErrorKind: kind, Err: err}
}

// NoWebsite returns the outcome of a club without a website.
func NoWebsite() Outcome {
	return Outcome{Kind: KindNoWebsite}
}

// OK reports whether the site answered with 200.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess && o.StatusCode == http.StatusOK
}

// Status renders the outcome in the legacy report notation: the numeric
// status code, "ERROR: <kind>" or "NO WEBSITE".
func (o Outcome) Status() string {
	switch o.Kind {
	case KindSuccess:
		return strconv.Itoa(o.StatusCode)
	case KindTransportError:
		return fmt.Sprintf("ERROR: %s", o.ErrorKind)
	default:
		return StatusNoWebsite
	}
}

// StatusValue is Status as it appears in the JSON report: an int for
// received responses, a string otherwise.
func (o Outcome) StatusValue() interface{} {
	if o.Kind == KindSuccess {
		return o.StatusCode
	}
	return o.Status()
}
