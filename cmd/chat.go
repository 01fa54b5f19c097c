package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"calbridge/internal/chat"
)

func newChatCmd() *cobra.Command {
	var (
		serverURL  string
		profile    string
		storageDir string
		model      string
		prompt     string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with your calendar through an LLM",
		Long: `Connect to a calbridge MCP server, hand its calendar tools to a chat
completion model, and let the model answer questions by calling them.

Requires OPENAI_API_KEY for the chat model and a stored Google credential
for the selected profile (or GOOGLE_REFRESH_TOKEN for headless use).

With --prompt the command answers once and exits; without it, an
interactive session reads prompts from stdin until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = os.Getenv("SERVER_URL")
			}
			if serverURL == "" {
				serverURL = "http://localhost:8000"
			}

			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable is required")
			}
			if model == "" {
				model = os.Getenv("OPENAI_MODEL")
			}

			return runChat(serverURL, profile, storageDir, model, prompt, apiKey)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server-url", "", "Base URL of the calbridge MCP server. Can also use SERVER_URL env var. Default: http://localhost:8000")
	cmd.Flags().StringVar(&profile, "profile", chat.DefaultProfile, "Credential profile to use")
	cmd.Flags().StringVar(&storageDir, "storage-dir", "", "Directory for stored credentials (default: ~/.calbridge)")
	cmd.Flags().StringVar(&model, "model", "", "Chat model to use. Can also use OPENAI_MODEL env var. Default: "+chat.DefaultModel)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Single prompt to answer; omit for an interactive session")

	return cmd
}

func runChat(serverURL, profile, storageDir, model, prompt, apiKey string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	profiles, err := chat.NewProfileStore(storageDir)
	if err != nil {
		return err
	}

	session, err := chat.NewSession(chat.SessionConfig{
		ServerURL: serverURL,
		Model:     model,
		Profile:   profile,
		Profiles:  profiles,
		OpenAI:    openai.NewClient(apiKey),
	})
	if err != nil {
		return err
	}

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		_ = session.Close()
	}()

	if prompt != "" {
		answer, err := session.Run(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	return runChatREPL(ctx, session)
}

// runChatREPL reads prompts from stdin until EOF or interrupt.
func runChatREPL(ctx context.Context, session *chat.Session) error {
	fmt.Println("Connected. Ask about your calendar (Ctrl-D to exit).")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			return nil
		}

		answer, err := session.Run(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
