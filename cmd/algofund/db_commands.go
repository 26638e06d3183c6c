package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/algofund/service/db"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create any missing tables and indexes",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(context.Background()); err != nil {
				return err
			}
			fmt.Println("✓ Database schema is up to date")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert the demo campaigns (existing rows are left untouched)",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			n, err := store.Seed(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("✓ Seeded %d demo campaigns\n", n)
			return nil
		},
	}
}

func listCampaignsDBCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-campaigns",
		Usage:   "List campaigns straight from the database",
		Aliases: []string{"ls"},
		Flags:   []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			campaigns, err := store.ListCampaigns(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list campaigns: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(campaigns)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tRAISED\tGOAL\tDONORS\tACTIVE\tDEADLINE\tCREATED")
			for _, campaign := range campaigns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\t%s\t%s\n",
					campaign.ID,
					campaign.Title,
					campaign.Raised,
					campaign.Goal,
					len(campaign.Donors),
					campaign.IsActive,
					campaign.Deadline.Format(time.RFC3339),
					campaign.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d campaigns\n", len(campaigns))
			return nil
		},
	}
}

func expireCommand() *cli.Command {
	return &cli.Command{
		Name:  "expire",
		Usage: "Deactivate campaigns whose deadline has passed",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			n, err := store.ExpireCampaigns(context.Background(), time.Now())
			if err != nil {
				return fmt.Errorf("failed to expire campaigns: %w", err)
			}
			fmt.Printf("✓ Expired %d campaigns\n", n)
			return nil
		},
	}
}

// getStore connects to the database named by --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		return nil, nil, err
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}
