// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"
	"net/url"
)

// ResponseFunc is used by Relay to create a http response once the redirect
// parameters were published.
//
// The params are the published redirect parameters. The function should use
// the http.ResponseWriter to send back whatever content (headers, html, JSON,
// etc) it wishes to the browser which followed the redirect.
type ResponseFunc func(params url.Values, w http.ResponseWriter, req *http.Request)

// DefaultSuccessResponse writes a page asking the user to close the window.
func DefaultSuccessResponse(params url.Values, w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	msg := "Authorization complete. You may close this window."
	if params.Get("error") != "" {
		msg = "Authorization failed. You may close this window."
	}
	_, _ = w.Write([]byte("<!DOCTYPE html><html><body><p>" + msg + "</p></body></html>"))
}
