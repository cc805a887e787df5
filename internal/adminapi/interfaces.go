package adminapi

import "net/http"

// HTTPDoer is the part of *http.Client the admin client needs; swapped out in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
