package signing

import (
	"net/http"
	"strings"
	"time"
)

// CanonicalRequest returns the bytes a client signs for a request.
func CanonicalRequest(date, url, body string) []byte {
	return canonical(date, url, body)
}

// CanonicalResponse returns the bytes a server signs for a response. The
// identity is the service the request was authenticated as.
func CanonicalResponse(identity, date, url, body string) []byte {
	return canonical(identity, date, url, body)
}

// canonical joins fields with newlines.
func canonical(fields ...string) []byte {
	return []byte(strings.Join(fields, "\n"))
}

// FormatDate renders t as an RFC 7231 HTTP date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
