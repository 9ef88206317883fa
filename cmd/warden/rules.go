package main

import (
	"github.com/netwarden/warden/config"
	rule_parser "github.com/netwarden/warden/config/parsing/rule"
	"github.com/netwarden/warden/rule"
	"github.com/spf13/cobra"
)

var (
	rulesFormat string
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().StringVarP(&rulesFormat, "format", "f", "yaml", "output format, yaml or json")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rules",
	Long:  "Print the configured rules followed by the built-in defaults, highest priority first.",
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rules, err := rule_parser.ParseRules(cfg.Rules)
	if err != nil {
		return err
	}
	user, err := rule.Compile(rules)
	if err != nil {
		return err
	}

	out := &config.Config{
		Rules: rule_parser.FormatRules(append(user.Rules(), rule.MustCompile(rule.DefaultRules).Rules()...)),
	}
	return out.Write(cmd.OutOrStdout(), rulesFormat)
}
