package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatResume  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the concierge in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := strings.TrimSpace(chatSession)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s (type \"exit\" to quit)\n", sessionID)

		if chatResume {
			res, err := a.orchestrator.Resume(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "assistant> %s\n", res.Reply)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "you> ")
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			switch text {
			case "":
				continue
			case "exit", "quit":
				return nil
			}

			reply, err := a.orchestrator.HandleMessage(ctx, sessionID, text)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "assistant> %s\n", reply)
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id (a new one is generated when empty)")
	chatCmd.Flags().BoolVar(&chatResume, "resume", false, "resume the session's interrupted turn before reading input")
}
