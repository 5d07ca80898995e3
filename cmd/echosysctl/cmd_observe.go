package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(modelsCmd, incidentsCmd, logsCmd, tracesCmd, chatCmd)
	incidentsCmd.AddCommand(incidentsGetCmd)

	incidentsCmd.Flags().String("status", "", "filter by status (open, investigating, resolved)")
	logsCmd.Flags().String("model", "", "filter by model ID")
	tracesCmd.Flags().String("model", "", "filter by model ID")
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List deployed models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		models, err := api.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tLAST UPDATED")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.ID, m.Name, m.Version, m.Status, m.LastUpdated.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List incidents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		api, err := newAPI()
		if err != nil {
			return err
		}
		incidents, err := api.ListIncidents(cmd.Context(), status)
		if err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODEL\tSEVERITY\tSTATUS\tTITLE")
		for _, in := range incidents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", in.ID, in.ModelID, in.Severity, in.Status, in.Title)
		}
		return w.Flush()
	},
}

var incidentsGetCmd = &cobra.Command{
	Use:   "get <incident-id>",
	Short: "Show one incident with its logs and traces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		incident, err := api.GetIncident(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}
		return printJSON(incident)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelID, _ := cmd.Flags().GetString("model")

		api, err := newAPI()
		if err != nil {
			return err
		}
		logs, err := api.ListLogs(cmd.Context(), modelID)
		if err != nil {
			return fmt.Errorf("list logs: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tLEVEL\tMODEL\tMESSAGE")
		for _, l := range logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				l.Timestamp.Format("2006-01-02 15:04:05"), l.Level, l.ModelID, l.Message)
		}
		return w.Flush()
	},
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List execution traces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelID, _ := cmd.Flags().GetString("model")

		api, err := newAPI()
		if err != nil {
			return err
		}
		traces, err := api.ListTraces(cmd.Context(), modelID)
		if err != nil {
			return fmt.Errorf("list traces: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tSTART\tDURATION")
		for _, t := range traces {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.ModelID, t.Status,
				t.StartTime.Format("2006-01-02 15:04:05"),
				t.EndTime.Sub(t.StartTime))
		}
		return w.Flush()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>...",
	Short: "Send a message to the analysis chat",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		resp, err := api.SendChat(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		fmt.Fprintln(os.Stdout, resp.Response)
		return nil
	},
}
