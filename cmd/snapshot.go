package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/host"
	"github.com/smazurov/camsync/internal/logging"
	"github.com/smazurov/camsync/internal/snapshot"
	"github.com/spf13/cobra"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var (
		configFile string
		outDir     string
		format     string
		quality    int
		rounds     uint64
		every      bool
		logLevel   string
		logJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture rounds and save every camera's frame",
		Long: `Runs the configured acquisition for a number of rounds and writes the frames to disk as ` +
			`image-<round>_cam-<channel>.<ext>. By default only the last round is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogging(logLevel, logJSON)
			logger := logging.GetLogger("snapshot")

			if rounds == 0 {
				return errors.New("--rounds must be at least 1")
			}

			cfg, err := config.LoadAcquisition(configFile)
			if err != nil {
				return err
			}
			imgFormat, err := snapshot.ParseFormat(format)
			if err != nil {
				return err
			}
			saver, err := snapshot.New(snapshot.Options{Dir: outDir, Format: imgFormat, Quality: quality})
			if err != nil {
				return err
			}

			acq, err := OpenAcquisition(cfg, events.New())
			if err != nil {
				return err
			}

			var saved []string
			var saveErr error
			runner := host.NewRunner(acq, host.Options{
				MaxRounds: rounds,
				AfterRound: func(n uint64) {
					if !every && n != rounds {
						return
					}
					paths, err := saver.Save(acq)
					saved = append(saved, paths...)
					if err != nil {
						saveErr = err
					}
				},
			})
			if err := runner.RunWithSignals(context.Background()); err != nil {
				return err
			}

			for _, p := range saved {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			logger.Info("Snapshot command finished", "rounds", runner.Rounds(), "files", len(saved))
			return saveErr
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Configuration file")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&format, "format", "f", "jpg", "Image format (jpg, png, bmp, tiff)")
	cmd.Flags().IntVar(&quality, "quality", snapshot.DefaultQuality, "JPEG quality")
	cmd.Flags().Uint64VarP(&rounds, "rounds", "n", 1, "Rounds to capture")
	cmd.Flags().BoolVar(&every, "every", false, "Save every round instead of only the last")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging level")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	return cmd
}
