package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/encodeous/nylon/internal/config"
	"github.com/encodeous/nylon/internal/identity"
	"github.com/spf13/cobra"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "node", Short: "manage a single node's local identity (node.json)"}
	cmd.AddCommand(newNodeInitCmd())
	return cmd
}

func newNodeInitCmd() *cobra.Command {
	var dir, vlan, control, datagram, dataPlane string
	cmd := &cobra.Command{
		Use:   "init <friendly-id>",
		Short: "generate a node keypair and print a roster stub to paste into net.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			friendlyID := args[0]

			secret, err := identity.Generate()
			if err != nil {
				return fmt.Errorf("generating node key: %w", err)
			}
			pub, err := secret.Public()
			if err != nil {
				return fmt.Errorf("deriving node public key: %w", err)
			}
			wgKey, err := wgtypes.GeneratePrivateKey()
			if err != nil {
				return fmt.Errorf("generating wireguard key: %w", err)
			}

			nc := config.NodeConfig{
				NodePrivkey: secret,
				WgPrivkey:   wgKey,
				Sock: config.LinkInfo{
					Control:   control,
					Datagram:  datagram,
					DataPlane: dataPlane,
				},
			}
			if err := config.AtomicWriteJSON(filepath.Join(dir, "node.json"), nc, 0o600); err != nil {
				return fmt.Errorf("writing node.json: %w", err)
			}

			stub := config.NodeInfo{
				Identity: config.NodeIdentity{
					FriendlyID: friendlyID,
					Pubkey:     pub,
					DpPubkey:   wgKey.PublicKey().String(),
				},
				ReachableVia: []config.LinkInfo{{Control: control, Datagram: datagram, DataPlane: dataPlane}},
			}
			if vlan != "" {
				cidr, err := config.ParseIPCidr(vlan)
				if err != nil {
					return fmt.Errorf("parsing --vlan: %w", err)
				}
				stub.AddrVlan = cidr
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			fmt.Println("wrote node.json; paste the following NodeInfo into net.json's nodes array, then run `nylon net sign`:")
			return enc.Encode(stub)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to write node.json into")
	cmd.Flags().StringVar(&vlan, "vlan", "", "this node's overlay VLAN address in CIDR form, e.g. 10.10.0.2/24")
	cmd.Flags().StringVar(&control, "control", ":7770", "control-stream TCP listen address")
	cmd.Flags().StringVar(&datagram, "datagram", ":7771", "UDP probe listen address")
	cmd.Flags().StringVar(&dataPlane, "data-plane", ":7772", "WireGuard UDP listen address")
	return cmd
}
