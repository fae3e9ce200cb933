package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blakedemarest/SamplePackAgent/clients"
	"github.com/blakedemarest/SamplePackAgent/config"
	"github.com/blakedemarest/SamplePackAgent/library"
	"github.com/blakedemarest/SamplePackAgent/loudness"
	"github.com/blakedemarest/SamplePackAgent/orchestrator"
	"github.com/blakedemarest/SamplePackAgent/prompt"
)

func main() {
	// .env carries the API key; a missing file is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		feedback   bool
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "sfx [brief...]",
		Short: "Generate normalized sound effects from a text brief",
		Long: "sfx decomposes a sound brief with a local language model, renders prompts,\n" +
			"generates audio variations through the ElevenLabs API, normalizes them to a\n" +
			"target loudness and records everything in a YAML prompt library.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			brief := strings.TrimSpace(strings.Join(args, " "))
			if brief == "" {
				var err error
				brief, err = promptForBrief(cmd)
				if err != nil {
					return err
				}
			}
			if brief == "" {
				return fmt.Errorf("no brief given")
			}

			pipe := orchestrator.New(orchestrator.Deps{
				Decomposer: clients.NewOllama(""),
				Composer:   prompt.Composer{},
				Generator:  clients.NewSoundAPI("", ""),
				Normalizer: loudness.NewEngine(),
				Library:    library.Store{},
			}, orchestrator.WithWorkers(parallel))

			files, errs := pipe.Run(cmd.Context(), brief, configPath)
			for _, e := range errs {
				logrus.Error(e)
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}

			if feedback && len(files) > 0 {
				if err := suggestTweaks(cmd, brief, configPath); err != nil {
					logrus.WithError(err).Warn("feedback unavailable")
				}
			}

			if len(files) == 0 && len(errs) > 0 {
				return fmt.Errorf("no audio produced")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/sfx_agent.yml", "path to the agent config file")
	cmd.Flags().BoolVar(&feedback, "feedback", false, "ask the model for prompt improvement suggestions afterwards")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "how many variations to generate concurrently")
	return cmd
}

func promptForBrief(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Describe your SFX brief: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read brief: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// suggestTweaks feeds the latest library entry for brief back to the model
// and logs its suggested prompt adjustments.
func suggestTweaks(cmd *cobra.Command, brief, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cat, err := library.Store{}.Load(cfg.LibraryPath)
	if err != nil {
		return err
	}
	entry := cat.LastEntry(brief)
	if entry == nil {
		return fmt.Errorf("no library entry for %q", brief)
	}

	promptText, _ := entry["prompt"].(string)
	metrics := map[string]any{}
	for k, v := range entry {
		switch k {
		case "brief", "prompt", "raw_audio_path", "output_path":
		default:
			metrics[k] = v
		}
	}

	suggestions, err := clients.NewOllama("").SuggestTweaks(cmd.Context(), promptText, metrics, cfg)
	if err != nil {
		return err
	}
	for field, tip := range suggestions {
		logrus.WithFields(logrus.Fields{
			"field":      field,
			"suggestion": tip,
		}).Info("prompt tweak")
	}
	return nil
}
