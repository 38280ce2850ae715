package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the local keypair",
	}
	cmd.AddCommand(keysInitCmd(), keysFingerprintCmd(), keysResetCmd(), keysSyncCmd())
	return cmd
}

func keysInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local keypair if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := startSpinner("Preparing keypair...")
			if _, err := appCtx.Keys.EnsureKeyPair(cmd.Context()); err != nil {
				stopSpinner(s, errMark+" Key generation failed")
				return err
			}
			fp, err := appCtx.Keys.Fingerprint(cmd.Context())
			if err != nil {
				stopSpinner(s, errMark+" Could not read keypair")
				return err
			}
			stopSpinner(s, okMark+" Keypair ready")
			fmt.Printf("Fingerprint: %s\n", fp)
			return nil
		},
	}
}

func keysFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local public key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := appCtx.Keys.Fingerprint(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(fp)
			return nil
		},
	}
}

func keysResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the local keypair",
		Long: "Delete the local keypair. Messages encrypted to the old key can no longer\n" +
			"be read on this device unless the key is restored from a backup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete keys without --yes")
			}
			if err := appCtx.Keys.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("%s Local keys deleted\n", okMark)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func keysSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Publish the local public key if the server copy differs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := me()
			if err != nil {
				return err
			}
			if err := appCtx.Keys.SyncPublicKey(cmd.Context(), p.Username); err != nil {
				return err
			}
			fmt.Printf("%s Public key in sync for %s\n", okMark, p.Username)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}
