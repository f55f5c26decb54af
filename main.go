// Command gauge-telemetry reads an analog dial gauge through a camera and
// turns it into a logged, charted and published numeric signal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gauge-telemetry/internal/camera"
	"gauge-telemetry/internal/config"
	"gauge-telemetry/internal/version"
)

var (
	logLevel     = "info"
	settingsPath = config.DefaultSettingsPath
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}
	return nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		if errors.Is(err, camera.ErrCameraUnavailable) {
			fmt.Fprintln(os.Stderr, "\nError: no camera could be opened")
			fmt.Fprintln(os.Stderr, "  - Check camera_index in the settings file")
			fmt.Fprintln(os.Stderr, "  - Or try a still image with 'gaugetest <image>'")
		}
		os.Exit(1)
	}
}

// NewCommand builds the root command. Without a subcommand it runs the live
// reader.
func NewCommand() *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "gauge-telemetry",
		Short: "Read an analog dial gauge from a camera",
		Long: `gauge-telemetry locates a round dial gauge in a camera feed, finds its needle,
converts the needle angle to a value using a calibration profile, and logs,
charts and publishes the smoothed reading.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLive(cmd.Context(), headless)
		},
	}

	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", settingsPath, "path to the settings file")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the dashboard window")

	cmd.AddCommand(
		NewVersionCommand(),
		NewSettingsCommand(),
	)
	return cmd
}

// NewVersionCommand prints build metadata.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			bold := color.New(color.Bold)
			cmd.Printf("%s %s\n", bold.Sprint("gauge-telemetry"), version.Version)
			cmd.Printf("  commit: %s\n  built:  %s\n", version.GitCommit, version.BuildTime)
		},
	}
}

// NewSettingsCommand prints the effective settings.
func NewSettingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective settings and calibration profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			for k, v := range s.LogrusFields() {
				cmd.Printf("%-14s %v\n", k+":", v)
			}
			store, err := config.OpenStore(s.GetProfilePath())
			if err != nil {
				return err
			}
			p, ok := config.NewProfiles(store).Load()
			if !ok {
				cmd.Printf("%-14s %s\n", "profile:", color.YellowString("none saved, defaults apply"))
				return nil
			}
			cmd.Printf("%-14s %s needle, %.1f..%.1f deg, %g..%g %s\n", "profile:",
				p.NeedleColor, p.MinAngle, p.MaxAngle, p.MinValue, p.MaxValue, s.GetUnitLabel())
			return nil
		},
	}
}
