// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capauthz provides a collection of related packages which obtain OAuth 2.0
// and OpenID Connect tokens on behalf of an HTTP client application.
//
//   - authz drives the grants and exchanges codes at the token endpoint.
//   - channel opens interactive windows and hidden frames for redirect grants
//     and relays the redirect messages.
//   - callback serves the loopback redirect page.
//   - oidc discovers providers and returns one token per OIDC response type.
//   - assertion signs JWT-bearer assertions.
package capauthz
