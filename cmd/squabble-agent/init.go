package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/builders-garden/squabble-agent-xmtp/internal/fsstore"
	"github.com/builders-garden/squabble-agent-xmtp/internal/statepaths"
	"github.com/builders-garden/squabble-agent-xmtp/mesh"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the bot's mesh identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir := statepaths.StateDir()
			identityPath := statepaths.IdentityPath()

			if existing, ok, err := mesh.LoadIdentity(identityPath); err != nil {
				return err
			} else if ok {
				fmt.Printf("identity already exists\npeer_id: %s\n", existing.PeerID)
				return nil
			}

			identity, err := mesh.GenerateIdentity(time.Now())
			if err != nil {
				return err
			}
			identity.WalletAddress = strings.TrimSpace(flagOrViperString(cmd, "wallet-address", "wallet.address"))

			if err := fsstore.EnsureDir(stateDir, 0); err != nil {
				return err
			}
			if err := mesh.SaveIdentity(identityPath, identity); err != nil {
				return err
			}

			fmt.Printf("identity created\npeer_id: %s\npath: %s\n", identity.PeerID, identityPath)
			return nil
		},
	}

	cmd.Flags().String("wallet-address", "", "Wallet address announced with presence (optional).")

	return cmd
}
