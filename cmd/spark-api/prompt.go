package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/spark-agent/internal/app/spark"
	"github.com/PabloGalante/spark-agent/internal/domain"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the coach prompt built for a stage",
	Long: `Builds the LLM prompt for a sample session sitting at the given stage.
Useful when tuning the stage instructions.

Example:
  spark-api prompt --stage AFFECT --message "I can't focus"`,
	RunE: runPrompt,
}

var (
	promptStage   string
	promptMessage string
)

func init() {
	rootCmd.AddCommand(promptCmd)

	promptCmd.Flags().StringVar(&promptStage, "stage", string(domain.StageSituation), "stage to build the prompt for")
	promptCmd.Flags().StringVar(&promptMessage, "message", "I don't know where to start.", "user message")
}

func runPrompt(cmd *cobra.Command, _ []string) error {
	stage := domain.Stage(strings.ToUpper(strings.TrimSpace(promptStage)))
	if !stage.Valid() || stage == domain.StageCompleted {
		return fmt.Errorf("unknown stage %q", promptStage)
	}

	sess := &domain.Session{
		ID:           "prompt-preview",
		OwnerID:      "cli",
		CurrentStage: stage,
		Data: domain.StageData{
			Situation: &domain.SituationData{
				Description: "A report is due tomorrow and I haven't started",
				Thoughts:    "I always leave things too late",
			},
		},
	}

	m, err := spark.Restore(sess)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), m.LLMPrompt(promptMessage))
	return nil
}
