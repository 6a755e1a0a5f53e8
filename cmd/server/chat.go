package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
	"github.com/healthshop/clerk/internal/usecase"
)

var chatUserID int64

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the clerk in the terminal",
	Long: `Start a terminal chat session. Replies stream as they are generated.
Type "exit" or press Ctrl-D to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Int64VarP(&chatUserID, "user", "u", 0, "user id of the session (default: shop.default_user_id)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	userID := chatUserID
	if userID == 0 {
		userID = cfg.Shop.DefaultUserID
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\nChatting as user %d. Type \"exit\" to leave.\n\n", cfg.Shop.Name, userID)
	return chatLoop(ctx, a.router, userID, cmd.InOrStdin(), out)
}

type streamResponder interface {
	RespondStream(ctx context.Context, userID int64, history domain.Conversation, message string) (*usecase.StreamReply, error)
}

// chatLoop reads one message per line and streams each reply
func chatLoop(ctx context.Context, router streamResponder, userID int64, in io.Reader, out io.Writer) error {
	var history domain.Conversation
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			return nil
		}

		reply, err := router.RespondStream(ctx, userID, history, message)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("chat turn failed", zap.Error(err))
			fmt.Fprintf(out, "clerk> %v\n\n", err)
			continue
		}

		fmt.Fprint(out, "clerk> ")
		var text strings.Builder
		for tok := range reply.Tokens {
			if tok.Error != nil {
				fmt.Fprint(out, "\n[reply interrupted]")
				break
			}
			text.WriteString(tok.Content)
			fmt.Fprint(out, tok.Content)
		}
		fmt.Fprint(out, "\n\n")

		history = history.Append(
			domain.Turn{Role: domain.RoleUser, Text: message},
			domain.Turn{Role: domain.RoleAssistant, Text: text.String()},
		)
	}
}
