package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "station",
	Short: "Inspection station: capture, detect defects, report and release boards",
	Long: `Станция контроля плат. Ждёт команду START по управляющему каналу,
делает снимок, прогоняет его через модель, отправляет вердикт на сервер
и возвращает сигнал RELEASE.

Без подкоманды работает как "station run".`,
	SilenceUsage: true,
	RunE:         runStation,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the station until SIGINT/SIGTERM",
	Args:  cobra.NoArgs,
	RunE:  runStation,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the station version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config")
	rootCmd.AddCommand(runCmd, checkCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
