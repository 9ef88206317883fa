package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxHTTPBodySize    = 4 << 20
)

type httpLoaderOptions struct {
	timeout time.Duration
	header  http.Header
}

type HTTPLoaderOption func(opts *httpLoaderOptions)

func TimeoutHTTPLoaderOption(timeout time.Duration) HTTPLoaderOption {
	return func(opts *httpLoaderOptions) {
		opts.timeout = timeout
	}
}

func HeaderHTTPLoaderOption(header http.Header) HTTPLoaderOption {
	return func(opts *httpLoaderOptions) {
		opts.header = header
	}
}

type httpLoader struct {
	url        string
	header     http.Header
	httpClient *http.Client
}

// HTTPLoader loads data from an HTTP GET request.
func HTTPLoader(url string, opts ...HTTPLoaderOption) Loader {
	var options httpLoaderOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.timeout <= 0 {
		options.timeout = defaultHTTPTimeout
	}
	return &httpLoader{
		url:    url,
		header: options.header,
		httpClient: &http.Client{
			Timeout: options.timeout,
		},
	}
}

func (l *httpLoader) Load(ctx context.Context) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	if l.header != nil {
		req.Header = l.header.Clone()
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", l.url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodySize))
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(data), nil
}

func (l *httpLoader) Close() error {
	l.httpClient.CloseIdleConnections()
	return nil
}
