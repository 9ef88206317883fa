package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gost/core/logger"
	api_service "github.com/netwarden/warden/api/service"
	"github.com/netwarden/warden/auth"
	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/config/loader"
	reporter_parser "github.com/netwarden/warden/config/parsing/reporter"
	"github.com/netwarden/warden/filter"
	xmetrics "github.com/netwarden/warden/metrics"
	metrics_service "github.com/netwarden/warden/metrics/service"
	"github.com/netwarden/warden/netwatch"
	"github.com/netwarden/warden/network"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the filter with its control API",
	Long:  "Run the filter, the control API, the metrics endpoint, the network watcher and the reporter.\nThe config file is watched and networks and rules are re-applied on change.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	config.Set(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var detector *netwatch.Detector
	var loaderOpts []loader.Option
	if cfg.Netwatch != nil && cfg.Netwatch.Enabled {
		detector, err = netwatch.NewDetector(
			netwatch.NamespaceOption(cfg.Netwatch.Namespace),
			netwatch.ReloadOption(cfg.Netwatch.Reload),
		)
		if err != nil {
			return err
		}
		defer detector.Close()
		loaderOpts = append(loaderOpts, loader.DetectorOption(detector))
	}

	f, err := loader.Load(cfg, loaderOpts...)
	if err != nil {
		return err
	}
	defer f.Close()

	log := logger.Default()

	if detector != nil {
		go func() {
			err := detector.Watch(ctx, func(n *network.Network) {
				st := f.UpdateNetwork(n)
				log.Infof("network %s: %s", n.Label(), st.Reason)
			})
			if err != nil && ctx.Err() == nil {
				log.Errorf("netwatch: %v", err)
			}
		}()
	}

	if cfg.Metrics != nil && cfg.Metrics.Addr != "" {
		xmetrics.Enable(true)

		opts := []metrics_service.Option{
			metrics_service.PathOption(cfg.Metrics.Path),
		}
		if a := cfg.Metrics.Auth; a != nil {
			opts = append(opts, metrics_service.BasicAuthOption(a.Username, a.Password))
		}
		s, err := metrics_service.NewService("tcp", cfg.Metrics.Addr, opts...)
		if err != nil {
			return err
		}
		defer s.Close()
		go func() {
			log.Info("metrics service on ", s.Addr())
			if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err)
			}
		}()
	}

	if cfg.API != nil && cfg.API.Addr != "" {
		s, err := buildAPIService(cfg.API, f)
		if err != nil {
			return err
		}
		defer s.Close()
		go func() {
			log.Info("api service on ", s.Addr())
			if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err)
			}
		}()
	}

	exporter, err := reporter_parser.ParseExporter(f, cfg.Reporter)
	if err != nil {
		return err
	}
	if exporter != nil {
		defer exporter.Close()
		go exporter.Run(ctx)
	}

	if file := config.File(); file != "" {
		w, err := newWatcher(file, func() error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := loader.Apply(f, cfg); err != nil {
				return err
			}
			config.Set(cfg)
			return nil
		})
		if err != nil {
			log.Warnf("config reload disabled: %v", err)
		} else {
			go w.Run(ctx)
		}
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func buildAPIService(cfg *config.APIConfig, f *filter.Filter) (*api_service.Service, error) {
	opts := []api_service.Option{
		api_service.AccessLogOption(cfg.AccessLog),
		api_service.PathPrefixOption(cfg.PathPrefix),
		api_service.AllowOriginsOption(cfg.AllowOrigins),
	}
	if cfg.Auth != nil {
		opts = append(opts, api_service.AutherOption(auth.NewAuthenticator(map[string]string{
			cfg.Auth.Username: cfg.Auth.Password,
		})))
	}
	return api_service.NewService("tcp", cfg.Addr, f, opts...)
}
