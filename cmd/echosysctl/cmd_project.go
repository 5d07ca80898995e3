package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/echosysai/echosys-go/internal/domain"
	"github.com/echosysai/echosys-go/internal/optimistic"
)

func init() {
	rootCmd.AddCommand(projectCmd, integrationsCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectInviteCmd)
	integrationsCmd.AddCommand(integrationsListCmd, integrationsAddCmd, integrationsRemoveCmd)

	projectCreateCmd.Flags().String("name", "", "project name (required)")
	projectCreateCmd.Flags().String("description", "", "project description")
	projectCreateCmd.Flags().String("color", "", "color scheme")
	_ = projectCreateCmd.MarkFlagRequired("name")

	projectInviteCmd.Flags().String("email", "", "invitee email (required)")
	projectInviteCmd.Flags().String("role", domain.RoleMember, "role (owner or member)")
	_ = projectInviteCmd.MarkFlagRequired("email")
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project (joins the existing one if the name is taken)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		color, _ := cmd.Flags().GetString("color")

		api, err := newAPI()
		if err != nil {
			return err
		}
		project, err := api.CreateProject(cmd.Context(), domain.CreateProjectRequest{
			Name:        name,
			Description: description,
			ColorScheme: color,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Project %q ready (id %d, %d members).\n",
			project.Name, project.ID, len(project.Members))
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}
		projects, err := api.MyProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Fprintln(os.Stdout, "No projects.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tDESCRIPTION")
		for _, p := range projects {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.ID, p.Name, len(p.Members), p.Description)
		}
		return w.Flush()
	},
}

var projectInviteCmd = &cobra.Command{
	Use:   "invite <project-id>",
	Short: "Invite a member to a project (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")

		api, err := newAPI()
		if err != nil {
			return err
		}
		member, err := api.InviteMember(cmd.Context(), projectID, email, role)
		if err != nil {
			return fmt.Errorf("invite member: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Invited %s as %s.\n", member.Email, member.Role)
		return nil
	},
}

var integrationsCmd = &cobra.Command{
	Use:   "integrations",
	Short: "Manage project integrations",
}

var integrationsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "Show a project's connected tools per category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}

		api, err := newAPI()
		if err != nil {
			return err
		}
		integrations, err := api.ProjectIntegrations(cmd.Context(), projectID)
		if err != nil {
			return fmt.Errorf("get integrations: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tTOOLS")
		for _, category := range domain.Categories() {
			tools := integrations[category]
			fmt.Fprintf(w, "%s\t%s\n", category, strings.Join(tools, ", "))
		}
		return w.Flush()
	},
}

var integrationsAddCmd = &cobra.Command{
	Use:   "add <project-id> <category> <tool>",
	Short: "Connect a tool under a category",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editIntegrations(cmd, args, true)
	},
}

var integrationsRemoveCmd = &cobra.Command{
	Use:   "remove <project-id> <category> <tool>",
	Short: "Disconnect a tool from a category",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editIntegrations(cmd, args, false)
	},
}

// editIntegrations seeds an optimistic editor with the server's current state
// and applies a single add or remove, patching only the touched category.
func editIntegrations(cmd *cobra.Command, args []string, add bool) error {
	projectID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid project id %q", args[0])
	}
	category := domain.Category(args[1])
	tool := args[2]

	api, err := newAPI()
	if err != nil {
		return err
	}
	current, err := api.ProjectIntegrations(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("get integrations: %w", err)
	}

	editor := optimistic.NewIntegrationEditor(projectID, api, current)
	if add {
		if err := editor.AddTool(cmd.Context(), category, tool); err != nil {
			return fmt.Errorf("add tool: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Connected %q under %s.\n", tool, category)
	} else {
		if err := editor.RemoveTool(cmd.Context(), category, tool); err != nil {
			return fmt.Errorf("remove tool: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Disconnected %q from %s.\n", tool, category)
	}
	return nil
}
