package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/encodeous/nylon/internal/config"
	"github.com/encodeous/nylon/internal/identity"
	"github.com/spf13/cobra"
)

func newNetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "net",
		Short: "manage a network's root of trust and its roster (net.json)",
	}
	cmd.AddCommand(newNetInitCmd())
	cmd.AddCommand(newNetSignCmd())
	return cmd
}

func newNetInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "generate a new network root and an empty signed roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := identity.Generate()
			if err != nil {
				return fmt.Errorf("generating root secret: %w", err)
			}
			rootPub, err := root.Public()
			if err != nil {
				return fmt.Errorf("deriving root public key: %w", err)
			}

			claim := identity.NewClaim(config.CentralConfig{
				Version: 0,
				RootCA:  rootPub,
			}, time.Now(), identity.Forever)
			signed, err := identity.SignClaim(claim, root)
			if err != nil {
				return fmt.Errorf("self-signing roster: %w", err)
			}

			if err := config.AtomicWriteJSON(filepath.Join(dir, "root.json"), root, 0o600); err != nil {
				return fmt.Errorf("writing root.json: %w", err)
			}
			if err := config.AtomicWriteJSON(filepath.Join(dir, "net.json"), signed, 0o644); err != nil {
				return fmt.Errorf("writing net.json: %w", err)
			}

			fmt.Printf("wrote %s and %s\n", filepath.Join(dir, "root.json"), filepath.Join(dir, "net.json"))
			fmt.Println("root.json is secret material: keep it off of ordinary nodes.")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write root.json/net.json into")
	return cmd
}

func newNetSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign <net.json> <root.json>",
		Short: "bump the roster's version and re-sign it under the network root",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			netPath, rootPath := args[0], args[1]

			sc, err := config.LoadCentralConfig(netPath)
			if err != nil {
				return fmt.Errorf("loading %s: %w", netPath, err)
			}
			root, err := config.LoadRootSecret(rootPath)
			if err != nil {
				return fmt.Errorf("loading %s: %w", rootPath, err)
			}
			rootPub, err := root.Public()
			if err != nil {
				return fmt.Errorf("deriving root public key: %w", err)
			}
			if !rootPub.Equal(sc.Claim.Data.RootCA) {
				return fmt.Errorf("%s's root_ca does not match %s", netPath, rootPath)
			}

			data := sc.Claim.Data
			data.Version++
			claim := identity.NewClaim(data, time.Now(), identity.Forever)
			resigned, err := identity.SignClaim(claim, root)
			if err != nil {
				return fmt.Errorf("re-signing roster: %w", err)
			}

			if err := config.AtomicWriteJSON(netPath, resigned, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", netPath, err)
			}
			fmt.Printf("%s now at version %d\n", netPath, data.Version)
			return nil
		},
	}
	return cmd
}
