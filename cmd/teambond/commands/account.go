package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"teambond/internal/domain"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Prepare keys for a new account and print the recovery code",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := me()
			if err != nil {
				return err
			}
			pw, err := readSecret("Password: ")
			if err != nil {
				return err
			}

			s := startSpinner("Generating keys and uploading backups...")
			code, err := appCtx.Account.Register(cmd.Context(), p.Username, pw)
			if err != nil {
				stopSpinner(s, errMark+" Registration failed")
				return err
			}
			stopSpinner(s, okMark+" Keys ready for "+p.Username.String())
			if err := saveProfile(p); err != nil {
				return err
			}

			fmt.Println()
			fmt.Println("Your recovery code:")
			fmt.Printf("  %s\n", color.New(color.Bold, color.FgYellow).Sprint(code))
			fmt.Printf("%s Write it down. It is shown only once and restores your key if you forget your password.\n", warnMark)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Restore keys from the server backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := me()
			if err != nil {
				return err
			}
			pw, err := readSecret("Password: ")
			if err != nil {
				return err
			}

			backups, err := appCtx.Relay.FetchAccountBackups(cmd.Context(), p.Username)
			if err != nil {
				return err
			}
			prompt := func(ctx context.Context, attempt int) (string, error) {
				if attempt == 1 {
					fmt.Fprintf(color.Error, "%s Your password did not unlock the key backup.\n", warnMark)
				}
				return readLine("Recovery code: ")
			}

			outcome, err := appCtx.Account.Login(cmd.Context(), p.Username, pw, backups, prompt)
			if errors.Is(err, domain.ErrRestore) {
				return offerStartOver(cmd.Context(), p, pw, err)
			}
			if err != nil {
				return err
			}
			if err := saveProfile(p); err != nil {
				return err
			}
			fmt.Printf("%s Logged in as %s (%s)\n", okMark, p.Username, outcome)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Re-upload the password-encrypted key backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := me()
			if err != nil {
				return err
			}
			pw, err := readSecret("Password: ")
			if err != nil {
				return err
			}
			if err := appCtx.Vault.Backup(cmd.Context(), p.Username, pw); err != nil {
				return err
			}
			fmt.Printf("%s Backup uploaded\n", okMark)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

func recoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Issue a new recovery code, replacing the previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := me()
			if err != nil {
				return err
			}
			code, err := appCtx.Recovery.GenerateCode()
			if err != nil {
				return err
			}
			ok, err := appCtx.Recovery.BackupWithCode(cmd.Context(), p.Username, code)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: run `teambond login` first", domain.ErrNoPrivateKey)
			}
			fmt.Printf("New recovery code: %s\n", color.New(color.Bold, color.FgYellow).Sprint(code))
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

// offerStartOver asks whether to replace the unrecoverable keypair. Declining
// returns cause unchanged so the reset hint is printed.
func offerStartOver(ctx context.Context, p domain.Participant, pw string, cause error) error {
	fmt.Fprintf(color.Error, "%s Neither your password nor a recovery code unlocked the key backup.\n", errMark)
	fmt.Fprintf(color.Error, "%s Starting over creates new keys. Earlier messages become unreadable.\n", warnMark)
	answer, err := readLine("Reset secure chat and start over? [y/N] ")
	if err != nil {
		return cause
	}
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		return cause
	}

	s := startSpinner("Generating new keys...")
	code, err := appCtx.Account.StartOver(ctx, p.Username, pw)
	if err != nil {
		stopSpinner(s, errMark+" Reset failed")
		return err
	}
	stopSpinner(s, okMark+" New keys ready for "+p.Username.String())
	if err := saveProfile(p); err != nil {
		return err
	}
	fmt.Println("Your new recovery code:")
	fmt.Printf("  %s\n", color.New(color.Bold, color.FgYellow).Sprint(code))
	return nil
}

// saveProfile remembers p for this origin when its identifiers are known.
func saveProfile(p domain.Participant) error {
	if p.Username == "" {
		return errors.New("no username to remember")
	}
	return appCtx.Profiles.SaveProfile(domain.Profile{
		Origin:   appCtx.Config.APIBase,
		Username: p.Username,
		UserID:   p.ID,
	})
}
