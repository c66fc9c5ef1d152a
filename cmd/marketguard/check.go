package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/marketguard/pkg/resilience/xlimit"
)

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "校验配置并打印生效的限流策略表",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			return printPolicies(cmd.Root().Writer, cfg.limit)
		},
	}
}

// printPolicies 按解析优先级输出策略：路由 > 控制器 > 全局
func printPolicies(w io.Writer, cfg xlimit.Config) error {
	r, err := xlimit.NewResolver(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tMATCH\tLIMIT\tWINDOW\tSCOPE\tMESSAGE")

	routes := r.Routes()
	for _, k := range slices.Sorted(maps.Keys(routes)) {
		writePolicy(tw, "route", k, routes[k])
	}
	ctrls := r.Controllers()
	for _, k := range slices.Sorted(maps.Keys(ctrls)) {
		writePolicy(tw, "controller", k, ctrls[k])
	}
	if g, ok := r.Global(); ok {
		writePolicy(tw, "global", "*", g)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	store := cfg.Store.Endpoint
	if store == "" {
		store = "local"
	}
	_, err = fmt.Fprintf(w, "\nkey prefix: %s\nstore: %s (timeout %s, breaker %t)\n",
		cfg.KeyPrefix, store, cfg.Store.Timeout, cfg.Store.Breaker.Enabled)
	return err
}

func writePolicy(w io.Writer, level, match string, p xlimit.Policy) {
	scope := "ip"
	if p.ScopeByUser {
		scope += "+user"
	}
	if p.ScopeByOrganization {
		scope += "+org"
	}
	msg := p.ErrorMessage
	if msg == "" {
		msg = "-"
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", level, match, p.Limit, p.Window, scope, msg)
}
