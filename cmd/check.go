package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/inference"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/reporter"
)

var checkBoard string

type checkResult struct {
	BoardID    string             `json:"board_id,omitempty"`
	HasDefect  bool               `json:"has_defect"`
	Detections []models.Detection `json:"detections"`
}

var checkCmd = &cobra.Command{
	Use:   "check <image>",
	Short: "Run the defect model on an image file and print the verdict",
	Long: `Прогоняет снимок с диска через ту же модель и пороги, что и станция.
С флагом --board вердикт дополнительно отправляется на сервер.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		engine, closeEngine, err := newEngine(cfg)
		if err != nil {
			return fmt.Errorf("init inference engine: %w", err)
		}
		defer closeEngine()

		verdict, err := inference.NewPipeline(engine).
			WithThresholds(cfg.Inference.IOUThreshold, cfg.Inference.ConfidenceThreshold).
			Infer(cmd.Context(), image)
		if err != nil {
			return err
		}
		verdict.BoardID = checkBoard

		out, err := json.MarshalIndent(checkResult{
			BoardID:    verdict.BoardID,
			HasDefect:  verdict.HasDefect,
			Detections: verdict.Detections,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if checkBoard == "" {
			return nil
		}
		rep := reporter.New(cfg.ReportURL(), cfg.Report.Timeout, logsink.New(logsink.NewStd()))
		return rep.Report(cmd.Context(), verdict)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkBoard, "board", "", "send the verdict to the server under this board id")
}
