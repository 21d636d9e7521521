package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/logger"
)

var (
	cfgFile string
	version = "dev" // Set via build flags

	// cfg and log are ready once a command runs
	cfg config.Config
	log *logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ocrmark",
	Short: "Locate and mark text in OCR results",
	Long: `ocrmark loads the OCR result of a document and runs the mark engines over it:
keyword search, drag selection and structured block lookup.

Supported inputs:
  - ocrmark JSON (legacy or pdf2md schema)
  - hOCR produced by Tesseract and similar engines
  - Google Document AI responses, saved as JSON or fetched live

Settings are read from --config, then OCRMARK_* environment variables
(OCRMARK_LOG_LEVEL, OCRMARK_DOCAI_PROJECT_ID, ...), then flags.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("format", formatAuto, "input format: auto, json, hocr, docai")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))

	viper.SetEnvPrefix("OCRMARK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// setup loads the config file and applies environment and flag overrides on top of it
func setup(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	override := func(key string, dst *string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	override("log.level", &cfg.Log.Level)
	override("log.format", &cfg.Log.Format)
	override("log.output", &cfg.Log.Output)
	override("docai.project_id", &cfg.DocAI.ProjectID)
	override("docai.location", &cfg.DocAI.Location)
	override("docai.processor_id", &cfg.DocAI.ProcessorID)
	override("marks.layer_name", &cfg.Marks.LayerName)

	log, err = logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Debugw("configuration loaded", "file", cfgFile, "format", viper.GetString("format"))
	return nil
}
