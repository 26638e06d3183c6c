package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "algofund",
		Usage: "Algorand crowdfunding service CLI",
		Description: `Browse and create campaigns, donate, and sign manual-sign transactions
offline. Follow donation events over SSE or NATS, and manage the database
and the campaign expiry schedule.`,
		Version:              fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		EnableBashCompletion: true,
		Flags:                globalFlags(),
		Commands: []*cli.Command{
			campaignCommands(),
			donateCommand(),
			fundCommand(),
			leaderboardCommand(),
			profileCommand(),
			bountyCommands(),
			txCommands(),
			streamCommand(),
			group("db", "Database management", migrateCommand(), seedCommand(), listCampaignsDBCommand(), expireCommand()),
			group("nats", "NATS donation events", subscribeCommand(), inspectStreamCommand()),
			group("temporal", "Campaign expiry schedule and confirmation workflows",
				describeScheduleCommand(),
				pauseScheduleCommand(),
				resumeScheduleCommand(),
				triggerScheduleCommand(),
				donationStatusCommand(),
			),
			group("wallet", "In-app signing wallets", walletStatusCommand(), walletDisconnectCommand()),
			group("server", "API server utilities", healthCommand(), versionCommand()),
		},
	}
}

func group(name, usage string, subcommands ...*cli.Command) *cli.Command {
	return &cli.Command{Name: name, Usage: usage, Subcommands: subcommands}
}

// envFlag is a string flag that can also be set from the named environment variable.
func envFlag(name, env, value, usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: name, EnvVars: []string{env}, Value: value, Usage: usage}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		envFlag("server-url", "SERVER_URL", "http://localhost:8080", "algofund API server URL"),
		envFlag("database-url", "DATABASE_URL", "", "Postgres URL for the db commands"),
		envFlag("nats-url", "NATS_URL", "nats://localhost:4222", "NATS server URL"),
		envFlag("temporal-host", "TEMPORAL_HOST", "localhost:7233", "Temporal frontend address"),
		envFlag("temporal-namespace", "TEMPORAL_NAMESPACE", "default", "Temporal namespace"),
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Print JSON instead of tables"},
	}
}
