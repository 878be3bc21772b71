package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/config"
	"github.com/smazurov/camsync/internal/driver"
	"github.com/spf13/cobra"
)

// probeReport is the JSON form of the probe output.
type probeReport struct {
	Status  camarray.Status `json:"status"`
	Cameras []probeCamera   `json:"cameras"`
}

type probeCamera struct {
	Channel    int                        `json:"channel"`
	Info       driver.CameraInfo          `json:"info"`
	Properties []camarray.PropertyReading `json:"properties"`
	Modes      []camarray.ModeSupport     `json:"modes,omitempty"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var (
		configFile string
		asJSON     bool
		modes      bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the camera array's capabilities",
		Long: `Connects every camera with the configured video mode, prints the array summary, ` +
			`each camera's identity and readable properties, and optionally the supported video modes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogging(logLevel, false)

			cfg, err := config.LoadAcquisition(configFile)
			if err != nil {
				return err
			}
			session, err := OpenSession(cfg)
			if err != nil {
				return err
			}
			defer session.Shutdown()

			report, err := buildProbeReport(session, modes)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			writeProbeReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Configuration file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&modes, "modes", false, "Also list supported video modes and frame rates")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level while probing")
	return cmd
}

func buildProbeReport(session *camarray.Session, withModes bool) (probeReport, error) {
	report := probeReport{Status: session.Status()}
	for ch, info := range session.Cameras() {
		props, err := session.ReadProperties(ch)
		if err != nil {
			return report, fmt.Errorf("channel %d: %w", ch, err)
		}
		cam := probeCamera{Channel: ch, Info: info, Properties: props}
		if withModes {
			if cam.Modes, err = session.VideoModes(ch); err != nil {
				return report, fmt.Errorf("channel %d: %w", ch, err)
			}
		}
		report.Cameras = append(report.Cameras, cam)
	}
	return report, nil
}

func writeProbeReport(w io.Writer, report probeReport) {
	fmt.Fprintln(w, report.Status.String())
	for _, cam := range report.Cameras {
		info := cam.Info
		fmt.Fprintf(w, "\nChannel %d: serial %d\n", cam.Channel, info.Serial)
		fmt.Fprintf(w, "  Model:      %s\n", info.Model)
		fmt.Fprintf(w, "  Vendor:     %s\n", info.Vendor)
		fmt.Fprintf(w, "  Sensor:     %s\n", info.Sensor)
		fmt.Fprintf(w, "  Resolution: %s\n", info.Resolution)
		fmt.Fprintf(w, "  Firmware:   %s\n", info.Firmware)
		fmt.Fprintf(w, "  Interface:  %s\n", info.Interface)
		for _, p := range cam.Properties {
			fmt.Fprintf(w, "  %s: %g %s\n", p.Name, p.Value, p.Unit)
		}
		for _, m := range cam.Modes {
			rates := make([]string, len(m.Rates))
			for i, r := range m.Rates {
				rates[i] = r.String()
			}
			fmt.Fprintf(w, "  Mode %s: %s fps\n", m.Mode, strings.Join(rates, ", "))
		}
	}
}
