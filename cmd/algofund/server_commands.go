package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"
)

type healthReport struct {
	URL       string `json:"url"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the API server answers /health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			start := time.Now()
			if err := cl.Health(ctx); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			report := healthReport{
				URL:       c.String("server-url"),
				Healthy:   true,
				LatencyMS: time.Since(start).Milliseconds(),
			}

			if c.Bool("json") {
				return outputJSON(report)
			}
			fmt.Printf("✓ Server is healthy (%dms)\n", report.LatencyMS)
			fmt.Printf("  URL: %s\n", report.URL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show CLI build information",
		Action: func(c *cli.Context) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
				"built":   date,
				"go":      runtime.Version(),
			}
			if c.Bool("json") {
				return outputJSON(info)
			}
			fmt.Printf("algofund CLI %s\n", info["version"])
			fmt.Printf("  Commit: %s\n", info["commit"])
			fmt.Printf("  Built:  %s\n", info["built"])
			fmt.Printf("  Go:     %s\n", info["go"])
			return nil
		},
	}
}
