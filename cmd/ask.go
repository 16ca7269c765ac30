package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursenav/internal/llm"
	"coursenav/internal/rag"
	"coursenav/internal/retriever"
)

// historyLimit caps the conversation turns sent back to the model.
const historyLimit = 20

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask questions about the indexed course documents",
	Long: `Answers a single question when one is given, or starts an
interactive session otherwise. Answers are grounded in retrieved document
chunks; questions the corpus cannot answer are declined.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireIndexArtifact(cfg); err != nil {
			return err
		}

		emb, err := buildEmbedder(cfg)
		if err != nil {
			return err
		}
		idx, err := openIndex(cmd.Context(), cfg, emb.Dimensions())
		if err != nil {
			return err
		}
		defer idx.Close()

		gen, err := llm.NewOpenAIChat(llm.ChatConfig{
			APIKey:  os.Getenv(cfg.Answer.APIKeyEnv),
			BaseURL: cfg.Answer.BaseURL,
			Model:   cfg.Answer.Model,
		})
		if err != nil {
			return err
		}

		r := retriever.New(emb, idx, time.Duration(cfg.Retrieval.QueryTimeoutSecs)*time.Second)
		answerer := rag.NewAnswerer(r, gen, cfg.Retrieval.MaxResults, cfg.Retrieval.SimilarityFloor)

		if len(args) > 0 {
			answer, err := answerer.Answer(cmd.Context(), strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		}

		var history []llm.Message
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("coursenav ask (type /help for commands, /exit to quit)")
		fmt.Println()

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/clear":
				history = nil
				fmt.Println("Conversation cleared.")
				continue
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /clear  - clear conversation history")
				fmt.Println("  /exit   - quit")
				fmt.Println("  /help   - show this help")
				continue
			}

			answer, err := answerer.Answer(cmd.Context(), question, history)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}

			fmt.Println()
			fmt.Println(answer)
			fmt.Println()

			history = append(history,
				llm.Message{Role: "user", Content: question},
				llm.Message{Role: "assistant", Content: answer},
			)
			if len(history) > historyLimit {
				history = history[len(history)-historyLimit:]
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
