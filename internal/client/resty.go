package client

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fabrichq/fabric/internal/registry"
)

// HTTPInvoker invokes endpoints over plain HTTP using resty.
//
// Resty's built-in retries are disabled: re-attempting is owned entirely
// by the fabric's retry executor so no hidden retry storms can form
// underneath it.
type HTTPInvoker struct {
	client *resty.Client
}

// NewHTTPInvoker creates an HTTP invoker. attemptTimeout bounds each
// single attempt; the overall call deadline is the caller's context.
func NewHTTPInvoker(attemptTimeout time.Duration) *HTTPInvoker {
	rc := resty.New().
		SetRetryCount(0).
		SetTimeout(attemptTimeout).
		SetHeader("User-Agent", "fabric/1.0")

	return &HTTPInvoker{client: rc}
}

// Invoke performs one HTTP request against the endpoint. Non-2xx
// responses are returned as *StatusError so the classification layer can
// decide retryability from the status code.
func (i *HTTPInvoker) Invoke(ctx context.Context, endpoint registry.Endpoint, req *Request) (*Response, error) {
	r := i.client.R().SetContext(ctx)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, "http://"+endpoint.Addr()+req.Path)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}
	if resp.StatusCode() >= 400 {
		return out, &StatusError{Code: resp.StatusCode(), Status: resp.Status()}
	}
	return out, nil
}
