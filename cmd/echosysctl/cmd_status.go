package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/echosysai/echosys-go/internal/dashboard"
)

func init() {
	rootCmd.AddCommand(statusCmd, dashboardCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		health, err := api.SystemHealth(cmd.Context())
		if err != nil {
			return fmt.Errorf("system health: %w", err)
		}

		fmt.Fprintf(os.Stdout, "System status: %s\n", health.SystemStatus)
		fmt.Fprintf(os.Stdout, "Models:        %d active / %d total\n", health.ActiveModels, health.TotalModels)
		fmt.Fprintf(os.Stdout, "Open incidents: %d\n", health.OpenIncidents)
		if health.LastRCA != nil {
			fmt.Fprintf(os.Stdout, "Last RCA:      %s\n", health.LastRCA.Format("2006-01-02 15:04 MST"))
		}

		if avail := api.Availability(); avail != nil {
			fmt.Fprintf(os.Stdout, "Backend:       reachable=%v circuit=%s\n", avail.Reachable(), avail.CircuitState)
		}
		return nil
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the full dashboard snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		snap := dashboard.NewLoader(api, cliLogger()).Load(cmd.Context())
		if snap.Failed() {
			return fmt.Errorf("backend unreachable: every dashboard section failed")
		}

		if snap.Health.Err != nil {
			fmt.Fprintf(os.Stdout, "Health: unavailable (%v)\n", snap.Health.Err)
		} else {
			h := snap.Health.Value
			fmt.Fprintf(os.Stdout, "Health: %s, %d/%d models active, %d open incidents\n",
				h.SystemStatus, h.ActiveModels, h.TotalModels, h.OpenIncidents)
		}

		fmt.Fprintln(os.Stdout)
		if snap.Models.Err != nil {
			fmt.Fprintf(os.Stdout, "Models: unavailable (%v)\n", snap.Models.Err)
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tVERSION\tSTATUS")
			for _, m := range snap.Models.Value {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Version, m.Status)
			}
			w.Flush()
		}

		fmt.Fprintln(os.Stdout)
		if snap.Incidents.Err != nil {
			fmt.Fprintf(os.Stdout, "Incidents: unavailable (%v)\n", snap.Incidents.Err)
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INCIDENT\tSEVERITY\tSTATUS\tTITLE")
			for _, in := range snap.Incidents.Value {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", in.ID, in.Severity, in.Status, in.Title)
			}
			w.Flush()
		}

		fmt.Fprintln(os.Stdout)
		if snap.Projects.Err != nil {
			fmt.Fprintf(os.Stdout, "Projects: unavailable (%v)\n", snap.Projects.Err)
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROJECT\tMEMBERS")
			for _, p := range snap.Projects.Value {
				fmt.Fprintf(w, "%d\t%s\t%d\n", p.ID, p.Name, len(p.Members))
			}
			w.Flush()
		}
		return nil
	},
}
