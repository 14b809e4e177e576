// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-authz/authz"
)

// oidcOptions is the set of options of the Authorizer which aren't options of
// the underlying authz.Authorizer. They're authz.Options so both sets can be
// passed together to NewAuthorizer.
type oidcOptions struct {
	withVerifier *oidc.IDTokenVerifier
}

func oidcDefaults() oidcOptions {
	return oidcOptions{}
}

func getOIDCOpts(opt ...authz.Option) oidcOptions {
	opts := oidcDefaults()
	authz.ApplyOpts(&opts, opt...)
	return opts
}

// WithVerifier provides an optional id_token verifier. When provided,
// id_tokens are verified and their nonce is read from the verified token.
//
// Valid for: Authorizer
func WithVerifier(v *oidc.IDTokenVerifier) authz.Option {
	return func(o interface{}) {
		if o, ok := o.(*oidcOptions); ok {
			o.withVerifier = v
		}
	}
}
