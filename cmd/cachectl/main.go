// cachectl inspects and manipulates a device's routine cache store file.
// It is a development tool: point it at the SQLite store the application
// writes and look at keys, invalidate entries or seed demo data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/liftlog/routinecache/cache"
	"github.com/liftlog/routinecache/logger"
	"github.com/liftlog/routinecache/routine"
	"github.com/liftlog/routinecache/source"
	"github.com/liftlog/routinecache/store"
)

type fileConfig struct {
	Store    string `yaml:"store"`
	MaxBytes int64  `yaml:"max_bytes"`
	LogLevel string `yaml:"log_level"`
}

var (
	flagStore    string
	flagMaxBytes int64
	flagLogLevel string
	flagConfig   string
	flagTimeout  string

	log logger.Logger
)

func loadConfig() error {
	if flagConfig == "" {
		return nil
	}
	buf, err := os.ReadFile(flagConfig)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if flagStore == "" {
		flagStore = cfg.Store
	}
	if flagMaxBytes == 0 && cfg.MaxBytes > 0 {
		flagMaxBytes = cfg.MaxBytes
	}
	if flagLogLevel == "" {
		flagLogLevel = cfg.LogLevel
	}
	return nil
}

func openStore() (store.Store, error) {
	if flagStore == "" {
		return nil, fmt.Errorf("no store file given, use --store or a config file")
	}
	opts := []store.Option{store.WithLogger(log)}
	if flagMaxBytes > 0 {
		opts = append(opts, store.WithMaxBytes(flagMaxBytes))
	}
	return store.NewSQLite(flagStore, opts...)
}

func newService(st store.Store, src source.Source) *cache.Service {
	opts := []cache.Option{cache.WithLogger(log)}
	if src != nil {
		opts = append(opts, cache.WithSource(src))
	}
	return cache.New(st, opts...)
}

func main() {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "inspect and manipulate a routine cache store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			log = logger.NewConsoleLogger(logger.ParseLevel(flagLogLevel, logger.GetLevelFromEnv()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagStore, "store", "", "path to the SQLite store file")
	root.PersistentFlags().Int64Var(&flagMaxBytes, "max-bytes", 0, "store byte budget (default 5 MiB)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "trace|debug|info|warn|error")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "optional YAML config file")

	keysCmd := &cobra.Command{
		Use:   "keys [prefix]",
		Short: "list stored keys, optionally filtered by prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := st.Keys(prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "print the raw stored envelope for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			val, found, err := st.Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no entry for %s", args[0])
			}
			fmt.Println(string(val))
			return nil
		},
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <domain> <ownerID>",
		Short: "delete the cache entry for an owner (domain: preferences|owned|shared)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			svc := newService(st, nil)
			switch args[0] {
			case "preferences":
				svc.Preferences().ForceInvalidate(args[1])
			case "owned":
				svc.OwnedRoutines().ForceInvalidate(args[1])
			case "shared":
				svc.SharedRoutines().ForceInvalidate(args[1])
			default:
				return fmt.Errorf("unknown domain %q", args[0])
			}
			log.Info("invalidated %s cache for %s", args[0], args[1])
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <ownerID>",
		Short: "summarize the owner's cached state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			svc := newService(st, nil)
			ownerID := args[0]
			prefs := svc.Preferences().Get(ownerID)
			owned := svc.OwnedRoutines().Get(ownerID)
			shared := svc.SharedRoutines().Get(ownerID)
			fmt.Printf("preferences: cached=%v, populating=%v\n", prefs != nil, svc.Preferences().IsPopulating(ownerID))
			fmt.Printf("owned routines: %d cached\n", len(owned))
			fmt.Printf("shared routines: %d cached, expired=%v\n", len(shared), svc.SharedRoutines().IsExpired(ownerID))
			return nil
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed <ownerID>",
		Short: "populate the store with demo data for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := str2duration.ParseDuration(flagTimeout)
			if err != nil {
				return fmt.Errorf("invalid --timeout: %w", err)
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ownerID := args[0]
			src := source.NewMemory()
			src.PutOwner(source.OwnerRecord{
				ID:          ownerID,
				Preferences: &routine.Preferences{AccentColor: "teal", Language: "en", WeightUnit: "kg"},
			})
			src.PutRoutines(ownerID, demoRoutines(ownerID))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			svc := newService(st, src)
			if err := svc.InitCache(ctx, ownerID, true); err != nil {
				return err
			}
			log.Info("seeded demo cache for %s", ownerID)
			return nil
		},
	}
	seedCmd.Flags().StringVar(&flagTimeout, "timeout", "10s", "population timeout (e.g. 10s, 1m)")

	root.AddCommand(keysCmd, getCmd, invalidateCmd, statusCmd, seedCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func demoRoutines(ownerID string) []routine.Routine {
	base := int64(1760000000)
	return []routine.Routine{
		{
			Name:      "Push Pull Legs",
			OwnerID:   ownerID,
			CreatedAt: routine.FromSeconds(base),
			Days: []routine.RoutineDay{
				{Name: "Push", Exercises: []routine.ExerciseSet{
					{ExerciseID: "bench-press", Name: "Bench Press", Sets: 5, Reps: 5, Weight: 80},
					{ExerciseID: "ohp", Name: "Overhead Press", Sets: 3, Reps: 8, Weight: 40},
				}},
				{Name: "Pull", Exercises: []routine.ExerciseSet{
					{ExerciseID: "deadlift", Name: "Deadlift", Sets: 3, Reps: 5, Weight: 120},
				}},
			},
		},
		{
			Name:      "Starting Strength",
			OwnerID:   ownerID,
			CreatedAt: routine.FromSeconds(base + 86400),
			Days: []routine.RoutineDay{
				{Name: "A", Exercises: []routine.ExerciseSet{
					{ExerciseID: "squat", Name: "Squat", Sets: 3, Reps: 5, Weight: 100},
				}},
			},
		},
	}
}
