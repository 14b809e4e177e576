// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// maxResponseSize bounds the token endpoint's response body.
const maxResponseSize = 1 << 20

// TokenClient performs back-channel requests to a token endpoint.
type TokenClient struct {
	client        *http.Client
	proxy         string
	proxyEncoding bool
	logger        hclog.Logger
}

// NewTokenClient creates a new TokenClient.
// Supported options: WithHTTPClient, WithTokenProxy, WithProxyEncoding,
// WithLogger
func NewTokenClient(opt ...Option) *TokenClient {
	opts := getAuthzOpts(opt...)
	return newTokenClient(opts)
}

func newTokenClient(opts authzOptions) *TokenClient {
	return &TokenClient{
		client:        opts.withHTTPClient,
		proxy:         opts.withTokenProxy,
		proxyEncoding: opts.withProxyEncoding,
		logger:        opts.withLogger.Named("token-client"),
	}
}

// Request POSTs the form body to the endpoint, after applying the custom
// params, and returns the camel-cased fields of the response. Failures are
// returned as a *CodeExchangeError.
func (c *TokenClient) Request(ctx context.Context, endpoint string, body url.Values, header http.Header, custom *CustomParams) (map[string]interface{}, error) {
	const op = "TokenClient.Request"
	target, form, hdr, err := applyCustomParams(endpoint, body, header, custom)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newRequestError(err.Error(), err))
	}
	target = c.proxied(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newRequestError(fmt.Sprintf("Unable to create the request. %s", err), err))
	}
	req.Header = hdr
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, application/x-www-form-urlencoded;q=0.9")
	}

	c.logger.Debug("token request", "endpoint", endpoint, "grant_type", form.Get("grant_type"), "proxied", c.proxy != "")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newRequestError(fmt.Sprintf("Couldn't connect to the server. %s", err), err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newRequestError(fmt.Sprintf("Unable to read the response. %s", err), err))
	}
	contentType := resp.Header.Get("Content-Type")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, newRequestError("Authorization URI is invalid", nil))
	case resp.StatusCode >= http.StatusInternalServerError:
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %w", op, newRequestError(msg, nil))
	case len(bytes.TrimSpace(raw)) == 0:
		return nil, fmt.Errorf("%s: %w", op, newRequestError("Code response body is empty", nil))
	case resp.StatusCode >= http.StatusBadRequest:
		if fields, err := decodeTokenResponse(contentType, raw); err == nil {
			if exchErr := fieldsError(fields); exchErr != nil {
				return nil, fmt.Errorf("%s: %w", op, exchErr)
			}
		}
		return nil, fmt.Errorf("%s: %w", op, newRequestError(fmt.Sprintf("Client error: %s", raw), nil))
	}

	fields, err := decodeTokenResponse(contentType, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, newRequestError(fmt.Sprintf("Unable to parse the response. %s", err), err))
	}
	if exchErr := fieldsError(fields); exchErr != nil {
		return nil, fmt.Errorf("%s: %w", op, exchErr)
	}
	return fields, nil
}

func (c *TokenClient) proxied(target string) string {
	switch {
	case c.proxy == "":
		return target
	case c.proxyEncoding:
		return c.proxy + url.QueryEscape(target)
	default:
		return c.proxy + target
	}
}

// applyCustomParams returns the endpoint with the custom query parameters
// and copies of the body and header with the custom additions.
func applyCustomParams(endpoint string, body url.Values, header http.Header, custom *CustomParams) (string, url.Values, http.Header, error) {
	form := url.Values{}
	for k, v := range body {
		form[k] = append([]string(nil), v...)
	}
	hdr := http.Header{}
	if header != nil {
		hdr = header.Clone()
	}
	if custom == nil {
		return endpoint, form, hdr, nil
	}

	if len(custom.Parameters) > 0 {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", nil, nil, fmt.Errorf("token endpoint is invalid: %w", err)
		}
		q := u.Query()
		for _, p := range custom.Parameters {
			q.Add(p.Name, p.Value)
		}
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}
	for _, p := range custom.Body {
		form.Add(p.Name, p.Value)
	}
	for _, p := range custom.Headers {
		hdr.Add(p.Name, p.Value)
	}
	return endpoint, form, hdr, nil
}

// decodeTokenResponse decodes a JSON or form encoded body to camel-cased
// fields.
func decodeTokenResponse(contentType string, raw []byte) (map[string]interface{}, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	raw = bytes.TrimSpace(raw)
	if strings.Contains(strings.ToLower(mediaType), "json") || bytes.HasPrefix(raw, []byte("{")) {
		var m map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("response is not an object: %w", ErrInvalidParameter)
		}
		return camelCaseMap(m), nil
	}
	v, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	return CamelCaseValues(v), nil
}

// fieldsError returns the CodeExchangeError for a response's error field.
func fieldsError(fields map[string]interface{}) *CodeExchangeError {
	v, ok := fields[fieldError]
	if !ok || v == nil {
		return nil
	}
	code := fmt.Sprint(v)
	if code == "" {
		return nil
	}
	return &CodeExchangeError{
		Code:    code,
		Message: ErrorMessage(code, stringField(fields, fieldErrorDesc)),
	}
}
