// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// authorizeToken runs the grants which only use the token endpoint.
func (a *Authorizer) authorizeToken(ctx context.Context) (*Token, error) {
	const op = "Authorizer.authorizeToken"
	form, header, err := a.TokenRequest()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fields, err := a.client.Request(ctx, a.cfg.AccessTokenURI, form, header, &a.cfg.CustomData.Token)
	if err != nil {
		return nil, a.exchangeError(err, false)
	}
	return NewToken(fields, a.cfg.Scopes, a.opts.withNowFunc()), nil
}

// TokenRequest returns the form body and headers of the token request for
// the grants which only use the token endpoint. Optional fields are omitted
// rather than sent empty.
func (a *Authorizer) TokenRequest() (url.Values, http.Header, error) {
	const op = "Authorizer.TokenRequest"
	c := a.cfg
	form := url.Values{}
	header := http.Header{}
	form.Set("grant_type", string(c.GrantType))

	switch c.GrantType {
	case GrantImplicit, GrantAuthorizationCode:
		return nil, nil, fmt.Errorf("%s: %s is a redirect grant: %w", op, c.GrantType, ErrInvalidParameter)

	case GrantClientCredentials:
		if c.CredentialsDelivery == DeliverHeader {
			header.Set("Authorization", basicAuth(c.ClientID, string(c.ClientSecret)))
		} else {
			setNotEmpty(form, "client_id", c.ClientID)
			setNotEmpty(form, "client_secret", string(c.ClientSecret))
		}
		setNotEmpty(form, "scope", strings.Join(c.Scopes, " "))

	case GrantPassword:
		form.Set("username", c.Username)
		form.Set("password", string(c.Password))
		setNotEmpty(form, "client_id", c.ClientID)
		setNotEmpty(form, "client_secret", string(c.ClientSecret))
		setNotEmpty(form, "scope", strings.Join(c.Scopes, " "))

	case GrantDeviceCode:
		form.Set("device_code", c.DeviceCode)
		setNotEmpty(form, "client_id", c.ClientID)
		setNotEmpty(form, "client_secret", string(c.ClientSecret))

	case GrantJWTBearer:
		assertion := c.Assertion
		if assertion == "" && a.opts.withAssertion != nil {
			signed, err := a.opts.withAssertion.Serialize()
			if err != nil {
				return nil, nil, fmt.Errorf("%s: unable to sign assertion: %w", op, err)
			}
			assertion = signed
		}
		form.Set("assertion", assertion)
		setNotEmpty(form, "scope", strings.Join(c.Scopes, " "))

	default:
		a.logger.Debug("using custom grant", "grant_type", c.GrantType)
		setNotEmpty(form, "client_id", c.ClientID)
		setNotEmpty(form, "client_secret", string(c.ClientSecret))
		setNotEmpty(form, "redirect_uri", c.RedirectURI)
		setNotEmpty(form, "username", c.Username)
		setNotEmpty(form, "password", string(c.Password))
		setNotEmpty(form, "scope", strings.Join(c.Scopes, " "))
	}
	return form, header, nil
}

func setNotEmpty(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}

func basicAuth(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}
