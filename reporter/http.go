package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type httpSinkOptions struct {
	timeout time.Duration
	header  http.Header
}

type HTTPSinkOption func(opts *httpSinkOptions)

func TimeoutHTTPSinkOption(timeout time.Duration) HTTPSinkOption {
	return func(opts *httpSinkOptions) {
		opts.timeout = timeout
	}
}

func HeaderHTTPSinkOption(header http.Header) HTTPSinkOption {
	return func(opts *httpSinkOptions) {
		opts.header = header
	}
}

type httpSink struct {
	url        string
	header     http.Header
	httpClient *http.Client
}

// HTTPSink posts batches as JSON to url.
func HTTPSink(url string, opts ...HTTPSinkOption) Sink {
	var options httpSinkOptions
	for _, opt := range opts {
		opt(&options)
	}

	return &httpSink{
		url:    url,
		header: options.header,
		httpClient: &http.Client{
			Timeout: options.timeout,
		},
	}
}

func (s *httpSink) Name() string { return "http" }

func (s *httpSink) Send(ctx context.Context, b *Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, v := range s.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %d", s.url, resp.StatusCode)
	}
	return nil
}

func (s *httpSink) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
