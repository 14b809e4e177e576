// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/language"
)

// Settings is the serializable form of a Config. Unlike Config, secrets are
// kept in clear so callers can store and restore them.
type Settings struct {
	GrantType            string     `json:"grantType"`
	ClientID             string     `json:"clientId,omitempty"`
	ClientSecret         string     `json:"clientSecret,omitempty"`
	AuthorizationURI     string     `json:"authorizationUri,omitempty"`
	AccessTokenURI       string     `json:"accessTokenUri,omitempty"`
	RedirectURI          string     `json:"redirectUri,omitempty"`
	Scopes               []string   `json:"scopes,omitempty"`
	ResponseType         string     `json:"responseType,omitempty"`
	Interactive          *bool      `json:"interactive,omitempty"`
	PKCE                 bool       `json:"pkce,omitempty"`
	CustomData           CustomData `json:"customData"`
	Assertion            string     `json:"assertion,omitempty"`
	DeviceCode           string     `json:"deviceCode,omitempty"`
	Username             string     `json:"username,omitempty"`
	Password             string     `json:"password,omitempty"`
	State                string     `json:"state,omitempty"`
	IncludeGrantedScopes bool       `json:"includeGrantedScopes,omitempty"`
	LoginHint            string     `json:"loginHint,omitempty"`
	UILocales            []string   `json:"uiLocales,omitempty"`
	CredentialsDelivery  string     `json:"credentialsDelivery,omitempty"`
}

// Settings returns the Config's serializable Settings.
func (c *Config) Settings() Settings {
	cp := c.Clone()
	return Settings{
		GrantType:            string(cp.GrantType),
		ClientID:             cp.ClientID,
		ClientSecret:         string(cp.ClientSecret),
		AuthorizationURI:     cp.AuthorizationURI,
		AccessTokenURI:       cp.AccessTokenURI,
		RedirectURI:          cp.RedirectURI,
		Scopes:               cp.Scopes,
		ResponseType:         cp.ResponseType,
		Interactive:          cp.Interactive,
		PKCE:                 cp.PKCE,
		CustomData:           cp.CustomData,
		Assertion:            cp.Assertion,
		DeviceCode:           cp.DeviceCode,
		Username:             cp.Username,
		Password:             string(cp.Password),
		State:                cp.State,
		IncludeGrantedScopes: cp.IncludeGrantedScopes,
		LoginHint:            cp.LoginHint,
		UILocales:            localeStrings(cp.UILocales),
		CredentialsDelivery:  string(cp.CredentialsDelivery),
	}
}

// RestoreConfig creates a Config from Settings.
func RestoreConfig(s Settings) *Config {
	c := &Config{
		GrantType:            GrantType(s.GrantType),
		ClientID:             s.ClientID,
		ClientSecret:         ClientSecret(s.ClientSecret),
		AuthorizationURI:     s.AuthorizationURI,
		AccessTokenURI:       s.AccessTokenURI,
		RedirectURI:          s.RedirectURI,
		Scopes:               s.Scopes,
		ResponseType:         s.ResponseType,
		Interactive:          s.Interactive,
		PKCE:                 s.PKCE,
		CustomData:           s.CustomData,
		Assertion:            s.Assertion,
		DeviceCode:           s.DeviceCode,
		Username:             s.Username,
		Password:             UserPassword(s.Password),
		State:                s.State,
		IncludeGrantedScopes: s.IncludeGrantedScopes,
		LoginHint:            s.LoginHint,
		UILocales:            parseLocales(s.UILocales),
		CredentialsDelivery:  CredentialsDelivery(s.CredentialsDelivery),
	}
	return c.Clone()
}

// Validate returns every problem found with the Settings, or nil when they
// can be used to authorize.
func (s Settings) Validate() error {
	var errs *multierror.Error
	c := RestoreConfig(s)

	if c.GrantType == "" {
		return multierror.Append(errs, fmt.Errorf("grant type is empty: %w", ErrInvalidParameter))
	}
	if c.GrantType.Redirect() {
		if c.ClientID == "" {
			errs = multierror.Append(errs, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
		}
		if err := checkHTTPURI("authorization URI", c.AuthorizationURI); err != nil {
			errs = multierror.Append(errs, err)
		}
		if c.RedirectURI != "" {
			if err := checkRedirectURI(c.RedirectURI); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if c.GrantType != GrantImplicit {
		if err := checkHTTPURI("access token URI", c.AccessTokenURI); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for _, l := range s.UILocales {
		if _, err := language.Parse(l); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("ui locale %q: %w: %w", l, ErrInvalidParameter, err))
		}
	}

	switch c.GrantType {
	case GrantClientCredentials:
		switch c.CredentialsDelivery {
		case "", DeliverBody:
		case DeliverHeader:
			if c.ClientID == "" {
				errs = multierror.Append(errs, fmt.Errorf("client id is required for header credentials: %w", ErrInvalidParameter))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("unknown credentials delivery %q: %w", c.CredentialsDelivery, ErrInvalidParameter))
		}
	case GrantPassword:
		if c.Username == "" {
			errs = multierror.Append(errs, fmt.Errorf("username is empty: %w", ErrInvalidParameter))
		}
		if c.Password == "" {
			errs = multierror.Append(errs, fmt.Errorf("password is empty: %w", ErrInvalidParameter))
		}
	case GrantDeviceCode:
		if c.DeviceCode == "" {
			errs = multierror.Append(errs, fmt.Errorf("device code is empty: %w", ErrInvalidParameter))
		}
	}
	return errs.ErrorOrNil()
}

// Valid reports whether Validate found no problems.
func (s Settings) Valid() bool {
	return s.Validate() == nil
}

func localeStrings(tags []language.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	locales := make([]string, 0, len(tags))
	for _, t := range tags {
		locales = append(locales, t.String())
	}
	return locales
}

// parseLocales skips the locales which can't be parsed; Validate reports
// them.
func parseLocales(locales []string) []language.Tag {
	var tags []language.Tag
	for _, l := range locales {
		if t, err := language.Parse(l); err == nil {
			tags = append(tags, t)
		}
	}
	return tags
}
