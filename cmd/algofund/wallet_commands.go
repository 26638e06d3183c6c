package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

func walletStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show whether the server signs in-app for an address",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			wallet, err := cl.WalletStatus(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get wallet status: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(wallet)
			}
			fmt.Printf("Address:   %s\n", wallet.Address)
			fmt.Printf("Connected: %v\n", wallet.Connected)
			fmt.Printf("Signing:   %s\n", wallet.Signing)
			return nil
		},
	}
}

func walletDisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "disconnect",
		Usage:     "Drop the server's in-app signer for an address",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			cl, err := newAPIClient(c)
			if err != nil {
				return err
			}
			wallet, err := cl.DisconnectWallet(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to disconnect wallet: %w", err)
			}
			fmt.Printf("✓ Wallet disconnected: %s\n", wallet.Address)
			fmt.Printf("  Donations from this address now need manual signing.\n")
			return nil
		},
	}
}
