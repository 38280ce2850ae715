package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"teambond/internal/app"
	"teambond/internal/crypto"
	"teambond/internal/domain"
)

// connectTimeout bounds how long send waits for the realtime channel.
const connectTimeout = 20 * time.Second

var (
	partnerName string
	partnerID   string
)

func addPartnerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&partnerName, "to", "", "partner username")
	cmd.Flags().StringVar(&partnerID, "to-id", "", "partner user id")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("to-id")
}

func partner() domain.Participant {
	return domain.Participant{ID: domain.UserID(partnerID), Username: domain.Username(partnerName)}
}

// openConversation ensures keys and activates the chat session with the
// partner. The connection lives until ctx ends or the wire is closed.
func openConversation(ctx context.Context) (domain.Participant, error) {
	self, err := me()
	if err != nil {
		return self, err
	}
	if !self.Known() {
		return self, errors.New("--user-id required (or run login first)")
	}
	if _, err := appCtx.Keys.EnsureKeyPair(ctx); err != nil {
		return self, err
	}
	if err := appCtx.Chat.SetParticipants(ctx, self, partner()); err != nil {
		return self, err
	}
	if err := appCtx.Chat.SetKeySetupComplete(ctx, true); err != nil {
		return self, err
	}
	return self, nil
}

func printMessage(w io.Writer, self domain.Username, m domain.ChatMessage) {
	who := color.CyanString(m.Sender.String())
	if m.Sender == self {
		who = color.GreenString(m.Sender.String())
	}
	text := m.Content
	if m.Failed {
		text = color.RedString(text)
	}
	fmt.Fprintf(w, "%s %s: %s\n", m.Timestamp.Local().Format("15:04"), who, text)
}

func peerKeyCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "peer-key <username>",
		Short: "Resolve a partner's public key and print its fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := appCtx.Peers.Resolve(cmd.Context(), domain.Username(args[0]), refresh)
			if err != nil {
				return err
			}
			fp, err := crypto.FingerprintRSA(pub)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", args[0], fp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "always ask the server first")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the decrypted history with a partner",
		RunE: func(cmd *cobra.Command, args []string) error {
			self, err := me()
			if err != nil {
				return err
			}
			if !self.Known() {
				return errors.New("--user-id required (or run login first)")
			}
			chat := domain.NewChatID(self.ID, partner().ID)
			records, err := appCtx.Relay.FetchHistory(cmd.Context(), chat)
			if err != nil {
				return err
			}
			for _, wm := range records {
				printMessage(os.Stdout, self.Username, appCtx.Decoder.Decode(cmd.Context(), wm))
			}
			if len(records) == 0 {
				fmt.Println("No messages yet.")
			}
			return nil
		},
	}
	addIdentityFlags(cmd)
	addPartnerFlags(cmd)
	return cmd
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Encrypt and send one message to a partner",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := startSpinner("Connecting...")
			if _, err := openConversation(ctx); err != nil {
				stopSpinner(s, errMark+" Could not open conversation")
				return err
			}
			waitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()
			if err := appCtx.Transport.WaitConnected(waitCtx); err != nil {
				stopSpinner(s, errMark+" Not connected")
				return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
			}
			if err := appCtx.Chat.Send(ctx, strings.Join(args, " ")); err != nil {
				stopSpinner(s, errMark+" Send failed")
				return err
			}
			stopSpinner(s, okMark+" Sent")
			return nil
		},
	}
	addIdentityFlags(cmd)
	addPartnerFlags(cmd)
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with a partner",
		Long: "Opens the conversation, prints its history and every new message, and\n" +
			"sends each line typed on stdin. End with Ctrl-D or Ctrl-C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			appCtx.Transport.OnStateChange(func(st domain.ConnState) {
				switch st {
				case domain.Connected:
					fmt.Fprintf(os.Stderr, "%s connected\n", okMark)
				case domain.Disconnected:
					fmt.Fprintf(os.Stderr, "%s disconnected, retrying\n", warnMark)
				}
			})

			self, err := openConversation(ctx)
			if err != nil {
				return err
			}
			for _, m := range appCtx.Chat.Messages() {
				printMessage(os.Stdout, self.Username, m)
			}
			appCtx.Timeline.SetObserver(func(m domain.ChatMessage) {
				if m.Sender != self.Username || !m.Pending {
					printMessage(os.Stdout, self.Username, m)
				}
			})
			if !appCtx.Chat.Ready() {
				fmt.Fprintf(os.Stderr, "%s %s has no public key yet; sending will retry the lookup\n", warnMark, partnerName)
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				for {
					line, err := stdin.ReadString('\n')
					if line = strings.TrimSpace(line); line != "" {
						select {
						case lines <- line:
						case <-ctx.Done():
							return
						}
					}
					if err != nil {
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if err := appCtx.Chat.Send(ctx, line); err != nil {
						fmt.Fprintf(os.Stderr, "%s %v\n", errMark, err)
						continue
					}
					printMessage(os.Stdout, self.Username, domain.ChatMessage{
						Sender: self.Username, Content: line, Timestamp: time.Now(),
					})
				}
			}
		},
	}
	addIdentityFlags(cmd)
	addPartnerFlags(cmd)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", configPath)
			}
			if err := app.SaveConfig(configPath, loadedCfg); err != nil {
				return err
			}
			fmt.Printf("%s Wrote %s\n", okMark, configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
