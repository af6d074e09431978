package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/logger"
	"github.com/spigell/hh-interviewer/internal/pipeline"
	"github.com/spigell/hh-interviewer/internal/upload"
)

const (
	PromptRetry = "Retry"
	PromptExit  = "Exit"

	defaultIdentity = "cli"
)

var retryPrompt = promptui.Select{
	Label: "Transcript is not available yet. Retry?",
	Items: []string{PromptRetry, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a finished interview by its conversation id",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("conversation-id", "c", "", "conversation id of the finished interview (prompted when empty)")
	analyzeCmd.Flags().String("cv", "", "path to a .pdf, .txt or .md CV")
	analyzeCmd.Flags().String("identity", defaultIdentity, "rate limit identity of this caller")
	analyzeCmd.Flags().BoolP("yes", "y", false, "do not ask, retry once automatically when the transcript is not ready")
}

func analyze(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hh-interviewer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	conversationID, err := resolveConversationID(cmd)
	if err != nil {
		logger.Fatal("reading conversation id", zap.String("message", interview.PublicMessage(err)), zap.Error(err))
	}

	cvText, err := readCV(cmd.Flag("cv").Value.String())
	if err != nil {
		logger.Fatal("reading cv", zap.Error(err))
	}

	deps, _, err := buildPipeline(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	input := pipeline.Input{
		ConversationID: conversationID,
		CVText:         cvText,
		Identity:       cmd.Flag("identity").Value.String(),
	}
	autoApprove := cmd.Flag("yes").Value.String() == "true"
	retried := false

	for {
		// Every try is a fresh attempt; a failed pipeline is never resumed.
		attempt := pipeline.New(deps, input)

		result, err := attempt.Run(ctx)
		if err == nil {
			pretty, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(pretty))
			return
		}

		if errors.Is(err, interview.ErrNotReady) && shouldRetry(autoApprove, &retried, logger) {
			logger.Info("retrying the analysis", zap.String("conversation_id", conversationID.String()))
			continue
		}

		logger.Fatal("analysis failed",
			zap.String("kind", string(interview.KindOf(err))),
			zap.String("message", interview.PublicMessage(err)),
			zap.Error(err),
		)
	}
}

func resolveConversationID(cmd *cobra.Command) (interview.ConversationID, error) {
	raw := strings.TrimSpace(cmd.Flag("conversation-id").Value.String())
	if raw == "" {
		prompt := promptui.Prompt{
			Label: "Conversation ID",
			Validate: func(s string) error {
				_, err := interview.ParseConversationID(s)
				return err
			},
		}

		var err error
		raw, err = prompt.Run()
		if err != nil {
			return "", err
		}
	}

	return interview.ParseConversationID(raw)
}

func readCV(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := upload.Extract(filepath.Base(path), data)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// shouldRetry asks the user, or with auto approval retries exactly once.
func shouldRetry(autoApprove bool, retried *bool, logger *zap.Logger) bool {
	if autoApprove {
		if *retried {
			return false
		}
		*retried = true
		return true
	}

	_, action, err := retryPrompt.Run()
	if err != nil {
		logger.Warn("retry prompt failed", zap.Error(err))
		return false
	}
	return action == PromptRetry
}
