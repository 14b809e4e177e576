// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/cap-authz/channel"
)

// fragmentPage posts the fragment of its location back to the same URL as a
// form body.
const fragmentPage = `<!DOCTYPE html>
<html><body><script>
(function () {
  var data = window.location.hash.substring(1);
  if (!data) { document.body.textContent = "No authorization response."; return; }
  var xhr = new XMLHttpRequest();
  xhr.open("POST", window.location.pathname, true);
  xhr.setRequestHeader("Content-Type", "application/x-www-form-urlencoded");
  xhr.onload = function () { document.body.innerHTML = xhr.responseText; };
  xhr.send(data);
})();
</script></body></html>`

// Relay creates a redirect handler which publishes the redirect parameters
// to r. It responds with 410 Gone when nothing listens to r.
//
// Supported options: WithSuccessResponse, WithLogger
func Relay(r *channel.Relay, opt ...Option) http.HandlerFunc {
	opts := getCallbackOpts(opt...)
	logger := opts.withLogger
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.Relay"
		if r == nil {
			logger.Error("relay is nil", "op", op)
			http.Error(w, fmt.Sprintf("%s: relay is nil", op), http.StatusInternalServerError)
			return
		}

		var params url.Values
		switch req.Method {
		case http.MethodGet:
			if req.URL.RawQuery == "" {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-store")
				_, _ = w.Write([]byte(fragmentPage))
				return
			}
			params = req.URL.Query()
		case http.MethodPost:
			if err := req.ParseForm(); err != nil {
				http.Error(w, "unable to parse form", http.StatusBadRequest)
				return
			}
			params = req.PostForm
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if len(params) == 0 {
			http.Error(w, "no authorization response", http.StatusBadRequest)
			return
		}

		n := r.Publish(channel.Message{
			Data:   params.Encode(),
			Origin: origin(req),
		})
		logger.Debug("published redirect response", "listeners", n)
		if n == 0 {
			http.Error(w, "No authorization is pending.", http.StatusGone)
			return
		}
		opts.withSuccess(params, w, req)
	}
}

func origin(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host
}
