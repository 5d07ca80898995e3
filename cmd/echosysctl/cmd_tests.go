package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/echosysai/echosys-go/internal/domain"
)

func init() {
	rootCmd.AddCommand(testsCmd)
	testsCmd.AddCommand(testsListCmd, testsAddCmd, testsUpdateCmd, testsRemoveCmd, testsResultsCmd)

	for _, c := range []*cobra.Command{testsAddCmd, testsUpdateCmd} {
		c.Flags().String("name", "", "test name")
		c.Flags().String("instruction", "", "instruction sent to the analysis chat")
		c.Flags().String("date", "", "first run date (YYYY-MM-DD)")
		c.Flags().String("time", "", "run time of day (HH:MM)")
		c.Flags().String("frequency", "daily", "run frequency")
		c.Flags().StringSlice("tag", nil, "tags (repeatable)")
		c.Flags().StringSlice("agent", nil, "target agents (repeatable)")
		c.Flags().StringSlice("env", nil, "target environments (repeatable)")
	}
	_ = testsAddCmd.MarkFlagRequired("name")
	_ = testsAddCmd.MarkFlagRequired("instruction")
}

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Manage scheduled sanity tests",
}

var testsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		schedules, err := api.ListTestSchedules(cmd.Context())
		if err != nil {
			return fmt.Errorf("list test schedules: %w", err)
		}

		if len(schedules) == 0 {
			fmt.Fprintln(os.Stdout, "No test schedules.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFREQUENCY\tTIME\tAGENTS\tENVIRONMENTS")
		for _, t := range schedules {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.TestName, t.Frequency, t.Time,
				strings.Join(t.Agents, ","), strings.Join(t.Environments, ","))
		}
		return w.Flush()
	},
}

var testsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a test schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := scheduleRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		api, err := newAPI()
		if err != nil {
			return err
		}
		schedule, err := api.CreateTestSchedule(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("create test schedule: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Test schedule %q added (id %d).\n", schedule.TestName, schedule.ID)
		return nil
	},
}

var testsUpdateCmd = &cobra.Command{
	Use:   "update <schedule-id>",
	Short: "Replace a test schedule definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid schedule id %q", args[0])
		}
		req, err := scheduleRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		api, err := newAPI()
		if err != nil {
			return err
		}
		schedule, err := api.UpdateTestSchedule(cmd.Context(), id, req)
		if err != nil {
			return fmt.Errorf("update test schedule: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Test schedule %d updated.\n", schedule.ID)
		return nil
	},
}

var testsRemoveCmd = &cobra.Command{
	Use:   "rm <schedule-id>",
	Short: "Remove a test schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid schedule id %q", args[0])
		}

		api, err := newAPI()
		if err != nil {
			return err
		}
		if err := api.DeleteTestSchedule(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete test schedule: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Test schedule %d removed.\n", id)
		return nil
	},
}

var testsResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List recorded test results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		results, err := api.ListTestResults(cmd.Context())
		if err != nil {
			return fmt.Errorf("list test results: %w", err)
		}

		if len(results) == 0 {
			fmt.Fprintln(os.Stdout, "No test results.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN DATE\tNAME\tSTATUS\tAGENT\tENVIRONMENT\tINCIDENT")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.RunDate.Format("2006-01-02 15:04"), r.TestName, r.Status,
				r.Agent, r.Environment, r.IncidentID)
		}
		return w.Flush()
	},
}

func scheduleRequestFromFlags(cmd *cobra.Command) (domain.TestScheduleRequest, error) {
	name, _ := cmd.Flags().GetString("name")
	instruction, _ := cmd.Flags().GetString("instruction")
	dateStr, _ := cmd.Flags().GetString("date")
	timeOfDay, _ := cmd.Flags().GetString("time")
	frequency, _ := cmd.Flags().GetString("frequency")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	agents, _ := cmd.Flags().GetStringSlice("agent")
	envs, _ := cmd.Flags().GetStringSlice("env")

	date := time.Now().UTC()
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return domain.TestScheduleRequest{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", dateStr)
		}
		date = parsed
	}

	return domain.TestScheduleRequest{
		TestName:     name,
		Instruction:  instruction,
		Date:         date,
		Time:         timeOfDay,
		Frequency:    frequency,
		Tags:         tags,
		Agents:       agents,
		Environments: envs,
	}, nil
}
