package service

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-gost/core/auth"
	"github.com/netwarden/warden/api"
)

type options struct {
	accessLog    bool
	pathPrefix   string
	auther       auth.Authenticator
	allowOrigins []string
}

type Option func(*options)

func PathPrefixOption(pathPrefix string) Option {
	return func(o *options) {
		o.pathPrefix = pathPrefix
	}
}

func AccessLogOption(enable bool) Option {
	return func(o *options) {
		o.accessLog = enable
	}
}

func AutherOption(auther auth.Authenticator) Option {
	return func(o *options) {
		o.auther = auther
	}
}

func AllowOriginsOption(origins []string) Option {
	return func(o *options) {
		o.allowOrigins = origins
	}
}

type Service struct {
	s  *http.Server
	ln net.Listener
}

func NewService(network, addr string, c api.Controller, opts ...Option) (*Service, error) {
	if network == "" {
		network = "tcp"
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}

	var options options
	for _, opt := range opts {
		opt(&options)
	}

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	api.Register(r, c, &api.Options{
		AccessLog:    options.accessLog,
		PathPrefix:   options.pathPrefix,
		Auther:       options.auther,
		AllowOrigins: options.allowOrigins,
	})

	return &Service{
		s: &http.Server{
			Handler: r,
		},
		ln: ln,
	}, nil
}

func (s *Service) Serve() error {
	return s.s.Serve(s.ln)
}

func (s *Service) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Service) Close() error {
	return s.s.Close()
}
