// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package assertion signs JWTs with a private key or a client secret for use
// as the assertion of the JWT bearer grant (RFC 7523 section 2.1) or as a
// client_assertion (private_key_jwt).
//
// Example usage:
//
//	j, err := assertion.NewJWT("client-id", []string{"https://auth.example.com/token"},
//		assertion.WithRSAKey(rsaPrivateKey, assertion.RS256),
//		assertion.WithKeyID("jwks-key-id"),
//		assertion.WithSubject("alice@example.com"),
//	)
//	signed, err := j.Serialize()
//
// A *JWT can be given to authz.WithAssertionSigner, in which case a new
// assertion is signed for every jwt-bearer token request.
package assertion
