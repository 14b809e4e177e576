// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides the redirect target of authorization
requests: an http.Handler which publishes the redirect parameters to a
channel.Relay as a single message.

Responses delivered in the query (response_mode=query) and as a form post
(response_mode=form_post) are published directly. Responses delivered in the
fragment never reach the server, so a GET without a query is answered with a
small page which posts the fragment back to the handler.

Server runs the handler on a loopback address, for applications which
authorize from the command line:

	relay := channel.NewRelay()
	s, err := callback.NewServer(relay)
	if err != nil {
		// handle error
	}
	if err := s.Start(); err != nil {
		// handle error
	}
	defer s.Shutdown(context.Background())
	redirectURI := s.RedirectURI()
*/
package callback
