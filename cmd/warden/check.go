package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/config/loader"
	"github.com/netwarden/warden/filter"
	"github.com/netwarden/warden/flow"
	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/netwatch"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
	"github.com/spf13/cobra"
)

var (
	checkPID      int
	checkName     string
	checkBundleID string
	checkKind     string
	checkTarget   string
	checkDetect   bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntVarP(&checkPID, "pid", "p", 0, "process id to resolve")
	checkCmd.Flags().StringVar(&checkName, "name", "", "process name, instead of --pid")
	checkCmd.Flags().StringVar(&checkBundleID, "bundle", "", "bundle id, instead of --pid")
	checkCmd.Flags().StringVar(&checkKind, "kind", string(process.KindApplication), "process kind used with --name or --bundle")
	checkCmd.Flags().StringVarP(&checkTarget, "target", "t", "example.com:443", "remote endpoint host:port")
	checkCmd.Flags().BoolVar(&checkDetect, "detect", false, "detect the attached network")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Classify a single connection",
	Long:  "Classify a hypothetical connection of a process against the configured networks and rules,\nwithout recording it.",
	RunE:  runCheck,
}

type checkResult struct {
	Process  process.Identity `json:"process"`
	Trust    *trust.State     `json:"trust"`
	Decision rule.Decision    `json:"decision"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	host, port, err := flow.ParseEndpoint(checkTarget)
	if err != nil {
		return err
	}

	var opts []loader.Option
	if checkDetect {
		d, err := netwatch.NewDetector()
		if err != nil {
			return err
		}
		defer d.Close()
		opts = append(opts, loader.DetectorOption(d))
	}

	f, err := loadFilter(cfg, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	if checkDetect {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if _, err := f.ReevaluateNetwork(ctx); err != nil {
			return err
		}
	}

	res, err := check(f, host, port)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// loadFilter builds a quiet filter without rule sources.
func loadFilter(cfg *config.Config, opts ...loader.Option) (*filter.Filter, error) {
	cfg.RuleSources = nil
	return loader.Load(cfg, append(opts, loader.LoggerOption(xlogger.Nop()))...)
}

func check(f *filter.Filter, host string, port int) (*checkResult, error) {
	p := process.Identity{
		Kind:     process.Kind(checkKind),
		Name:     checkName,
		BundleID: checkBundleID,
	}
	if checkName == "" && checkBundleID == "" {
		p = f.Identify(checkPID)
	}

	d, err := f.Check(p, flow.Event{
		PID:        checkPID,
		RemoteHost: host,
		RemotePort: port,
		Direction:  flow.Outbound,
	})
	if err != nil {
		return nil, err
	}

	return &checkResult{
		Process:  p,
		Trust:    f.Status().Trust,
		Decision: d,
	}, nil
}
