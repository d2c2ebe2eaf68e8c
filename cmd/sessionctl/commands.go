package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/sessioncas"
	"github.com/unkn0wn-root/sessioncas/internal/config"
	"github.com/unkn0wn-root/sessioncas/internal/util"
)

type app struct {
	open func(*config.Config, *zap.Logger) (sessioncas.Store, error)

	configPath string
	backend    string
	logLevel   string

	store  sessioncas.Store
	logger *zap.Logger
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and repair sessions in a sessioncas store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "override backend (redis|memcache)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level")

	root.AddCommand(
		newGetCommand(a),
		newUnlockCommand(a),
		newRemoveCommand(a),
		newTouchCommand(a),
		newSeedCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	c := config.Default()
	if a.configPath != "" {
		var err error
		if c, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.backend != "" {
		c.Backend = a.backend
	}
	if a.logLevel != "" {
		c.LogLevel = a.logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(c.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("config loaded", zap.String("backend", c.Backend), zap.String("key_prefix", c.KeyPrefix))

	store, err := a.open(c, logger)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// execute runs root and then closes whatever setup opened, including when the
// command itself failed (cobra skips post-run hooks on error).
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if cerr := a.teardown(ctx); err == nil {
		err = cerr
	}
	return err
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.store != nil {
		err = a.store.Close(ctx)
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func newGetCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a session without locking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.store.ReadShared(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				if res.Record != nil {
					_, err = out.Write(res.Record.Content)
				}
				return err
			}
			fmt.Fprintf(out, "status:  %s\n", res.Status)
			switch res.Status {
			case sessioncas.StatusLocked:
				fmt.Fprintf(out, "lock-id: %d\nage:     %s\n", res.LockID, res.LockAge)
			case sessioncas.StatusFound:
				r := res.Record
				fmt.Fprintf(out, "lock-id: %d\nactions: %s\ntimeout: %dm\ncontent: %d bytes\n",
					r.LockID, res.Actions, r.TimeoutMinutes, len(r.Content))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write the raw content bytes to stdout")
	return cmd
}

func lockIDFlag(cmd *cobra.Command, v *uint64) {
	cmd.Flags().Uint64Var(v, "lock-id", 0, "lock id observed with `get` (required)")
	_ = cmd.MarkFlagRequired("lock-id")
}

func newUnlockCommand(a *app) *cobra.Command {
	var lockID uint64
	cmd := &cobra.Command{
		Use:   "unlock <id>",
		Short: "Force-release a lock held with the given lock id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.ForceRelease(cmd.Context(), args[0], sessioncas.LockID(lockID)); err != nil {
				return err
			}
			a.logger.Info("force release sent", zap.String("id", util.Redact(args[0])), zap.Uint64("lock_id", lockID))
			return nil
		},
	}
	lockIDFlag(cmd, &lockID)
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	var lockID uint64
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a session if the lock id is current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Remove(cmd.Context(), args[0], sessioncas.LockID(lockID)); err != nil {
				return err
			}
			a.logger.Info("remove sent", zap.String("id", util.Redact(args[0])), zap.Uint64("lock_id", lockID))
			return nil
		},
	}
	lockIDFlag(cmd, &lockID)
	return cmd
}

func newTouchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "touch <id>",
		Short: "Reset a session's expiration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.RefreshExpiration(cmd.Context(), args[0])
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "seed <id>",
		Short: "Write an uninitialized placeholder session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.SeedUninitialized(cmd.Context(), args[0], timeout); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seeded", strconv.Quote(args[0]))
			return nil
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 0, "timeout in minutes (0 = configured default)")
	return cmd
}
