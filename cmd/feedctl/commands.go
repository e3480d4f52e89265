package main

import (
	"fmt"
	"strconv"
	"time"

	"jobfeed/internal/cache"
	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/models"
	"jobfeed/internal/notifications"
	"jobfeed/internal/repository"
	"jobfeed/internal/seed"
	"jobfeed/internal/server"
	"jobfeed/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env carries what every subcommand needs. Commands that touch the
// database call open in their RunE so --help works without one.
type env struct {
	cfg *config.Config
	db  *gorm.DB
}

func (e *env) open() error {
	if e.cfg == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}
	if e.db == nil {
		db, err := database.Open(e.cfg)
		if err != nil {
			return err
		}
		e.db = db
	}
	return nil
}

func (e *env) close() {
	if e.db == nil {
		return
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "feedctl [command] [flags]",
		Short:         "Operate the jobfeed database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newSweepCmd(e),
		newSetRoleCmd(e),
		newTokenCmd(e),
	)
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the feed schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedCmd(e *env) *cobra.Command {
	var (
		fixtures string
		opts     seed.Options
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data, generated or from a YAML fixtures file",
		Example: "  feedctl seed --fixtures fixtures/demo.yml\n" +
			"  feedctl seed --accounts 20 --posts 200 --seed 42 --clean",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := database.Migrate(ctx, e.db); err != nil {
				return err
			}

			s := seed.NewSeeder(e.db)
			var (
				sum seed.Summary
				err error
			)
			if fixtures != "" {
				fx, lerr := seed.LoadFixtures(fixtures)
				if lerr != nil {
					return lerr
				}
				if opts.Clean {
					if err := s.ClearAll(ctx); err != nil {
						return err
					}
				}
				sum, err = s.ApplyFixtures(ctx, fx)
			} else {
				sum, err = s.Generate(ctx, opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts, %d posts, %d likes, %d comments\n",
				sum.Accounts, sum.Posts, sum.Likes, sum.Comments)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML fixtures file; generated data is used when empty")
	cmd.Flags().IntVar(&opts.Accounts, "accounts", 10, "number of generated accounts")
	cmd.Flags().IntVar(&opts.Posts, "posts", 50, "number of generated posts")
	cmd.Flags().IntVar(&opts.MaxDays, "days", 30, "spread generated posts over this many days")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 = random)")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "delete existing feed rows first")
	return cmd
}

func newSweepCmd(e *env) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Publish scheduled drafts that are due, once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(); err != nil {
				return err
			}
			if publish {
				cache.InitRedis(e.cfg.RedisURL)
			}
			posts := repository.NewPostRepository(e.db, e.cfg.MutationMaxRetries)
			scheduler := service.NewScheduler(posts, notifications.NewNotifier(cache.GetClient()),
				e.cfg.SchedulerInterval, e.cfg.SchedulerBatchSize)

			promoted, err := scheduler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d scheduled posts\n", promoted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", true, "announce promotions on Redis for connected feeds")
	return cmd
}

func newSetRoleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <account-id> <role>",
		Short: "Change an account's role (e.g. promote to admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			role := models.Role(args[1])
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[1])
			}
			if err := e.open(); err != nil {
				return err
			}
			if err := repository.NewAccountRepository(e.db).SetRole(cmd.Context(), id, role); err != nil {
				if repository.IsNotFound(err) {
					return fmt.Errorf("account %d not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d is now %s\n", id, role)
			return nil
		},
	}
}

func newTokenCmd(e *env) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <account-id>",
		Short: "Print a bearer token for an account (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if e.cfg == nil {
				cfg, err := config.LoadConfig()
				if err != nil {
					return err
				}
				e.cfg = cfg
			}
			if e.cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens in %s", e.cfg.Env)
			}
			token, err := server.IssueToken(e.cfg.JWTSecret, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return uint(id), nil
}
