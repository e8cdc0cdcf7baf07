package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/spf13/cobra"
)

const (
	userPrompt  = "Você: "
	replyPrefix = "Coordenador: "
	exitWord    = "sair"
)

var sessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop",
	Long: `Starts a conversation. Every question in the loop shares one session, so
follow-up questions see the previous answers. Type 'sair' to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&sessionID, "session", config.DefaultSessionId, "conversation session id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	log := logger_i.NewLogger("cli").With("session", sessionID)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Como posso ajudar você hoje? Digite '%s' para encerrar\n\n", exitWord)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, exitWord) {
			return nil
		}

		outcome, err := services.Asker.Run(cmd.Context(), sessionID, question)
		if err != nil {
			log.Error("question failed", "err", err)
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
		}
		answer := outcome.Answer
		if answer == "" {
			answer = agent.FailedAnswer
		}
		fmt.Fprintln(out, replyPrefix+answer)
	}
}
