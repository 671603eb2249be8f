package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bridgetx/internal/config"
	"github.com/rovshanmuradov/bridgetx/internal/wallet"
)

func newWalletCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage wallet keys in the OS keyring",
	}
	cmd.AddCommand(newWalletImportCmd(global), newWalletShowCmd(global))
	return cmd
}

func openKeystore(global *globalOptions) (wallet.Keystore, error) {
	cfg, err := config.LoadConfig(global.configPath)
	if err != nil {
		return nil, err
	}
	return wallet.OpenKeyring(wallet.KeyringOptions{FileDir: cfg.KeyringDir})
}

func newWalletImportCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <name>",
		Short: "Store a base58 private key read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read private key: %w", err)
			}
			key := strings.TrimSpace(line)
			if key == "" {
				return errors.New("empty private key")
			}
			w, err := wallet.NewWallet(key)
			if err != nil {
				return err
			}

			ks, err := openKeystore(global)
			if err != nil {
				return err
			}
			if err := importKey(ks, args[0], w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s)\n", args[0], w.PublicKey())
			return nil
		},
	}
}

func importKey(ks wallet.Keystore, name string, w *wallet.Wallet) error {
	if err := ks.Store(name, w.PrivateKeyBase58()); err != nil {
		return fmt.Errorf("store key %q: %w", name, err)
	}
	return nil
}

func newWalletShowCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the public key of a stored wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openKeystore(global)
			if err != nil {
				return err
			}
			w, err := wallet.LoadFromKeystore(ks, args[0])
			if err != nil {
				return fmt.Errorf("load %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.PublicKey().String())
			return nil
		},
	}
}
