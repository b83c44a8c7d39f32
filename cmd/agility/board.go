package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Prathameshworks247/AGILITY/internal/domain"
	"github.com/Prathameshworks247/AGILITY/internal/engine"
	agilitysdk "github.com/Prathameshworks247/AGILITY/sdk/go"
)

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organization membership"}
	org.AddCommand(orgAddMemberCmd())
	org.AddCommand(orgRemoveMemberCmd())
	org.AddCommand(orgMembersCmd())
	return org
}

func orgAddMemberCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add-member <user-id>",
		Short: "Add a user to the organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.AddMember(ctx, viper.GetString("org"), args[0], role); err != nil {
					return err
				}
				ui.Success("%s is a member of %s", args[0], viper.GetString("org"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "member", "membership role (informational)")
	return cmd
}

func orgRemoveMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <user-id>",
		Short: "Remove a user from the organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.RemoveMember(ctx, viper.GetString("org"), args[0]); err != nil {
					return err
				}
				ui.Success("%s removed from %s", args[0], viper.GetString("org"))
				return nil
			})
		},
	}
}

func orgMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List organization members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.Repo.ListMembers(ctx, viper.GetString("org"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Role"})
				for _, m := range members {
					tw.AppendRow(table.Row{m.UserID, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project in the organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.OrgID = viper.GetString("org")
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				ui.Success("Created project %s (%s)", p.ID, p.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the organization's projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.Repo.ListProjects(ctx, viper.GetString("org"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Description", "Created"})
				for _, p := range projects {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Description, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func sprintCmd() *cobra.Command {
	sp := &cobra.Command{Use: "sprint", Short: "Manage sprints"}
	var opts engine.SprintCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSprint(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				ui.Success("Created sprint %s in %s", s.ID, s.ProjectID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&opts.ID, "id", "", "sprint id (generated when empty)")
	create.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	create.Flags().StringVar(&opts.Name, "name", "", "sprint name")
	create.Flags().StringVar(&opts.Goal, "goal", "", "sprint goal")
	_ = create.MarkFlagRequired("project")
	_ = create.MarkFlagRequired("name")
	sp.AddCommand(create)
	return sp
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				ui.Success("Created task %s: %s", t.ID, t.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.SprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee", "", "assignee user id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var q engine.TaskBoardQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with their latest review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				board, err := e.TaskBoard(ctx, viper.GetString("user"), q)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				ui.Board(board)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.SprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&q.ProjectID, "project", "", "project id")
	return cmd
}

func reviewCmd() *cobra.Command {
	rv := &cobra.Command{Use: "review", Short: "Read reviews from a review store"}
	var limit int
	var serverURL string
	history := &cobra.Command{
		Use:   "history <task-id>",
		Short: "Show a task's reviews, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := requireEnv("token")
			if err != nil {
				return err
			}
			client := agilitysdk.New(serverURL, token)
			reviews, err := client.ReviewHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(reviews)
			}
			ui.History(toDomainReviews(reviews))
			return nil
		},
	}
	history.Flags().IntVar(&limit, "limit", engine.DefaultHistoryLimit, "number of reviews (capped by the server)")
	history.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "review store base URL")
	rv.AddCommand(history)
	return rv
}

func toDomainReviews(in []agilitysdk.Review) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Review{
			ID:          r.ID,
			TaskID:      r.TaskID,
			DeveloperID: r.DeveloperID,
			Status:      domain.Verdict(r.Status),
			Summary:     r.Summary,
			Findings:    domain.NormalizeFindings(r.Findings),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}
