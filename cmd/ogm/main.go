package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ogmissions/internal/app"
	"ogmissions/internal/config"
	"ogmissions/internal/db"
	"ogmissions/internal/domain"
	"ogmissions/internal/engine"
	"ogmissions/internal/repo"
	"ogmissions/internal/scheduler"
	"ogmissions/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ogm",
	Short: "OG Missions CLI",
	Long: `OG Missions assigns work and keeps score with karma.
- Missions: tasks with an estimated difficulty (1..5) that doubles as the karma reward.
- Lifecycle: OPEN -> IN_PROGRESS -> REVIEW -> DONE, with REWORK loops and decline/cancel/overdue exits.
- Karma: every exit from the happy path costs karma; approvals pay the difficulty, same-day deadlines pay a bonus.
- Ranks: derived from karma in 100-point steps, from Drifter up to Street Legend.
- Reminders: a background sweep walks deadlines through 24h/5h/1h warnings and closes missed ones as overdue.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OGM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("user", 0, "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(karmaCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(appealCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
}

func actingUser() (int64, error) {
	id := viper.GetInt64("user")
	if id == 0 {
		return 0, fmt.Errorf("--user is required")
	}
	return id, nil
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userRmCmd())
	user.AddCommand(userAdminCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var id int64
	var handle, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register or update a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if name == "" {
					name = handle
				}
				if err := e.Repo.UpsertUser(ctx, id, handle, name, e.Config.RankTable().Base()); err != nil {
					return err
				}
				u, err := e.Repo.GetUser(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "user id")
	cmd.Flags().StringVar(&handle, "handle", "", "handle")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func userListCmd() *cobra.Command {
	var page int
	var pattern string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users with active mission counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				users, total, err := e.Repo.ListUsersWithStats(ctx, page, e.Config.Missions.UserPageSize, pattern)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"users": users, "total": total})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Handle", "Name", "Karma", "Rank", "Active", "Admin"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Handle, u.Name, u.Karma, u.Rank, u.ActiveMissions, u.IsAdmin})
				}
				tw.Render()
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&pattern, "pattern", "", "filter by handle or name")
	return cmd
}

func userRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <user-id>",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Repo.SetActive(ctx, id, false); err != nil {
					return err
				}
				fmt.Printf("user %d deactivated\n", id)
				return nil
			})
		},
	}
	return cmd
}

func userAdminCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "admin <user-id>",
		Short: "Grant or revoke admin rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Repo.SetAdmin(ctx, id, !revoke); err != nil {
					return err
				}
				fmt.Printf("user %d admin=%v\n", id, !revoke)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}

func missionCmd() *cobra.Command {
	mission := &cobra.Command{
		Use:   "mission",
		Short: "Manage missions",
		Long:  "Missions carry an estimated difficulty that doubles as the karma reward. They flow OPEN -> IN_PROGRESS -> REVIEW -> DONE; declining, cancelling and missing the deadline are penalized exits.",
	}
	mission.AddCommand(missionCreateCmd())
	mission.AddCommand(missionTextCmd())
	mission.AddCommand(missionListCmd())
	mission.AddCommand(missionShowCmd())
	mission.AddCommand(missionActiveCmd())
	for _, t := range []struct {
		use, short, event string
	}{
		{"accept <mission-id>", "Accept an offered mission", "accept"},
		{"decline <mission-id>", "Decline a mission (costs karma)", "decline"},
		{"approve <mission-id>", "Approve submitted work (admin)", "approve"},
		{"rework <mission-id>", "Send work back for another pass (admin)", "rework"},
		{"cancel <mission-id>", "Cancel your own open mission", "cancel"},
	} {
		mission.AddCommand(simpleTransitionCmd(t.use, t.short, t.event))
	}
	mission.AddCommand(missionReportCmd())
	mission.AddCommand(missionPostponeCmd())
	mission.AddCommand(missionRmCmd())
	return mission
}

func simpleTransitionCmd(use, short, event string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			actorID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.Transition(ctx, missionID, event, actorID, engine.TransitionParams{})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func missionCreateCmd() *cobra.Command {
	var title, description, deadline string
	var difficulty int
	var assignees []int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			authorID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var deadlineTs *int64
				if deadline != "" {
					deadlineTs = e.Clock.ParseDate(deadline)
					if deadlineTs == nil {
						deadlineTs = e.Clock.ParseDeadline(deadline)
					}
					if deadlineTs == nil {
						return fmt.Errorf("unparseable deadline %q", deadline)
					}
				}
				m, err := e.CreateMission(ctx, engine.MissionCreateOptions{
					Title:       title,
					Description: description,
					AuthorID:    authorID,
					AssigneeIDs: assignees,
					DeadlineTs:  deadlineTs,
					Difficulty:  difficulty,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (DD.MM[.YYYY], ISO, or free text)")
	cmd.Flags().IntVar(&difficulty, "difficulty", 0, "difficulty 1..5 (0 = estimate)")
	cmd.Flags().Int64SliceVar(&assignees, "assignee", nil, "assignee user id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func missionTextCmd() *cobra.Command {
	var assignees []int64
	cmd := &cobra.Command{
		Use:   "text <free-text>",
		Short: "Create a mission from free text",
		Long:  "Runs the validity gate and the estimator. Rejected text costs the author karma and records an appeal.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authorID, err := actingUser()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.CreateMissionFromText(ctx, authorID, text, assignees)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&assignees, "assignee", nil, "assignee user id (repeatable)")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func missionListCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				missions, total, err := e.ListPage(ctx, page)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"missions": missions, "total": total})
				}
				renderMissions(e, missions)
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func missionActiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "active",
		Short: "Your missions still in flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				missions, err := e.ListActive(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				renderMissions(e, missions)
				return nil
			})
		},
	}
	return cmd
}

func renderMissions(e *engine.Engine, missions []domain.Mission) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Difficulty", "Deadline", "Stage"})
	for _, m := range missions {
		deadline := ""
		if m.DeadlineTs != nil {
			deadline = e.Clock.Format(*m.DeadlineTs)
		}
		tw.AppendRow(table.Row{m.ID, m.Title, m.Status, m.DifficultyLabel, deadline, m.ReminderStage})
	}
	tw.Render()
}

func missionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Mission with its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				s, err := e.Summary(ctx, missionID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func missionReportCmd() *cobra.Command {
	var reportJSON string
	cmd := &cobra.Command{
		Use:   "report <mission-id>",
		Short: "Submit your work for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			actorID, err := actingUser()
			if err != nil {
				return err
			}
			var report map[string]any
			if reportJSON != "" {
				if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
					return fmt.Errorf("report JSON: %w", err)
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.SubmitReport(ctx, missionID, actorID, report)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&reportJSON, "report", "", "report payload as JSON")
	return cmd
}

func missionPostponeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "postpone <mission-id>",
		Short: "Move the deadline by 1..3 days",
		Long:  "The first day is free, the second costs 1 karma, the third costs 2. Every postponement makes a later overdue fine harsher.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			actorID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.Postpone(ctx, missionID, actorID, days)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "days to postpone (1..3)")
	return cmd
}

func missionRmCmd() *cobra.Command {
	var withPenalty bool
	cmd := &cobra.Command{
		Use:   "rm <mission-id>",
		Short: "Remove a mission (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			adminID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.CancelAdmin(ctx, missionID, adminID, withPenalty)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().BoolVar(&withPenalty, "penalty", false, "charge the assignees the removal fine")
	return cmd
}

func karmaCmd() *cobra.Command {
	karma := &cobra.Command{Use: "karma", Short: "Manage the karma ledger"}
	karma.AddCommand(karmaAddCmd())
	karma.AddCommand(karmaHistoryCmd())
	karma.AddCommand(karmaResetCmd())
	return karma
}

func karmaAddCmd() *cobra.Command {
	var userID int64
	var delta int
	var reason string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Manually adjust a user's karma (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				balance, err := e.AdjustKarma(ctx, adminID, userID, delta, reason)
				if err != nil {
					return err
				}
				fmt.Printf("user %d: %d karma (%s)\n", userID, balance, e.Config.RankTable().For(balance))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "id", 0, "target user id")
	cmd.Flags().IntVar(&delta, "delta", 0, "karma delta, may be negative")
	cmd.Flags().StringVar(&reason, "reason", "manual adjustment", "ledger reason")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func karmaHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Recent ledger entries of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				entries, err := e.Repo.KarmaHistory(ctx, userID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Delta", "Reason"})
				for _, k := range entries {
					tw.AppendRow(table.Row{e.Clock.Format(k.CreatedAt), k.Delta, k.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}

func karmaResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset every balance to zero (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, err := actingUser()
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("pass --yes to confirm wiping every karma balance")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.ResetKarma(ctx, adminID); err != nil {
					return err
				}
				fmt.Println("karma reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Karma leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				top, bottom, err := e.Repo.Leaderboard(ctx, 10)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"top": top, "bottom": bottom})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Handle", "Karma", "Rank"})
				for i, u := range top {
					tw.AppendRow(table.Row{i + 1, u.Handle, u.Karma, u.Rank})
				}
				tw.Render()
				if bottom != nil {
					fmt.Printf("anti-hero: %s (%d)\n", bottom.Handle, bottom.Karma)
				}
				return nil
			})
		},
	}
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [user-id|@handle]",
		Short: "User profile with rank progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var userID int64
			var handle string
			var err error
			switch {
			case len(args) == 1 && strings.HasPrefix(args[0], "@"):
				handle = strings.TrimPrefix(args[0], "@")
			case len(args) == 1:
				userID, err = strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("user id: %w", err)
				}
			default:
				if userID, err = actingUser(); err != nil {
					return err
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var u domain.User
				var err error
				if handle != "" {
					u, err = e.Repo.GetUserByHandle(ctx, handle)
					userID = u.ID
				} else {
					u, err = e.Repo.GetUser(ctx, userID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("%s (@%s)\n", u.Name, u.Handle)
				fmt.Printf("karma: %d  rank: %s\n", u.Karma, u.Rank)
				if needs, name, ok := e.Config.RankTable().NextThreshold(u.Karma); ok {
					fmt.Printf("next rank: %s in %d karma\n", name, needs)
				}
				active, err := e.ListActive(ctx, userID)
				if err != nil {
					return err
				}
				if len(active) > 0 {
					fmt.Println("active missions:")
					renderMissions(e, active)
				}
				return nil
			})
		},
	}
	return cmd
}

func estimateCmd() *cobra.Command {
	var dueToday bool
	cmd := &cobra.Command{
		Use:   "estimate <text>",
		Short: "Dry-run the difficulty estimator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if v := e.Estimator.Check(text); !v.Valid {
					return fmt.Errorf("invalid text: %s", v.Violation)
				}
				est := e.Estimator.Estimate(text, dueToday)
				return printJSONOrTable(est)
			})
		},
	}
	cmd.Flags().BoolVar(&dueToday, "due-today", false, "apply the same-day urgency bonus")
	return cmd
}

func journalCmd() *cobra.Command {
	var limit int
	var missionID int64
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var entries []repo.JournalEntry
				var err error
				if missionID != 0 {
					entries, err = e.Repo.MissionEvents(ctx, missionID, limit)
				} else {
					entries, err = e.Repo.RecentEvents(ctx, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Kind", "Mission", "Actor"})
				for _, j := range entries {
					tw.AppendRow(table.Row{e.Clock.Format(j.CreatedAt), j.Kind, j.MissionTitle, j.ActorHandle})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "events to show")
	cmd.Flags().Int64Var(&missionID, "mission", 0, "show events of one mission")
	return cmd
}

func pendingCmd() *cobra.Command {
	pending := &cobra.Command{
		Use:   "pending",
		Short: "Manage the awaited free-text input",
		Long:  "Two-step flows: first mark what your next text means (a report, a new task, an appeal plea), then deliver it with `ogm say`.",
	}
	pending.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show what input is awaited",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.PendingFor(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	pending.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Drop the awaited input",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.CancelPending(ctx, userID); err != nil {
					return err
				}
				fmt.Println("cancelled")
				return nil
			})
		},
	})
	pending.AddCommand(&cobra.Command{
		Use:   "report <mission-id>",
		Short: "Expect the next text as a mission report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("mission id: %w", err)
			}
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.AwaitReportText(ctx, missionID, userID); err != nil {
					return err
				}
				fmt.Printf("awaiting report text for mission %d\n", missionID)
				return nil
			})
		},
	})
	pending.AddCommand(&cobra.Command{
		Use:   "task",
		Short: "Expect the next text as a new self-assigned mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.AwaitTaskText(ctx, userID); err != nil {
					return err
				}
				fmt.Println("awaiting task text")
				return nil
			})
		},
	})
	pending.AddCommand(&cobra.Command{
		Use:   "appeal",
		Short: "Expect the next text as the plea on your open appeal",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.AwaitAppealText(ctx, userID); err != nil {
					return err
				}
				fmt.Println("awaiting appeal plea")
				return nil
			})
		},
	})
	return pending
}

func sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Deliver the awaited free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.SubmitText(ctx, userID, text)
				if err != nil {
					return err
				}
				if m.ID == 0 {
					fmt.Println("recorded")
					return nil
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func appealCmd() *cobra.Command {
	appeal := &cobra.Command{Use: "appeal", Short: "Manage appeals against rejected texts"}
	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List appeals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				appeals, err := e.Repo.ListAppeals(ctx, status, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(appeals)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (open, approved, rejected)")
	list.Flags().IntVar(&limit, "limit", 20, "appeals to show")
	appeal.AddCommand(list)

	var approve bool
	resolve := &cobra.Command{
		Use:   "resolve <appeal-id>",
		Short: "Resolve an appeal (admin); approving refunds the penalty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appealID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("appeal id: %w", err)
			}
			adminID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				a, err := e.ResolveAppeal(ctx, appealID, adminID, approve)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	resolve.Flags().BoolVar(&approve, "approve", false, "approve instead of reject")
	appeal.AddCommand(resolve)
	return appeal
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				s := scheduler.New(e, e.Logger)
				n, err := s.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("advanced %d missions\n", n)
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server with the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			a, err := app.Open(workspace)
			if err != nil {
				return err
			}
			defer a.Close()

			rt, err := config.LoadRuntime()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = rt.ListenAddr
			}
			authCfg := server.AuthConfig{JWTSecret: rt.JWTSecret, Logger: a.Logger}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("OGM_JWT_SECRET is required for bearer auth")
			}

			reg := prometheus.NewRegistry()
			a.Engine.Metrics = engine.NewMetrics(reg)

			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg, Metrics: true})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if !noScheduler {
				s := scheduler.New(a.Engine, a.Logger)
				s.Metrics = scheduler.NewMetrics(reg)
				go s.Run(ctx)
			}
			server.StartWebhookDispatcher(ctx, a.Engine, a.Logger)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
			a.Logger.Info("serving", "addr", addr, "base_path", basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to OGM_LISTEN_ADDR)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the reminder scheduler")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyIssueCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRmCmd())
	return key
}

func apikeyIssueCmd() *cobra.Command {
	var userID int64
	var name string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				id, key, err := e.IssueAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				fmt.Printf("id:  %s\nkey: %s\n", id, key)
				fmt.Println("the key is shown only once, store it now")
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "id", 0, "user id the key acts as")
	cmd.Flags().StringVar(&name, "name", "", "label for the key")
	cmd.MarkFlagRequired("id")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "id", 0, "filter by user id")
	return cmd
}

func apikeyRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked")
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate ogmissions.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
