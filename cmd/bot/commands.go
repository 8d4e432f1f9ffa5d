package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pivot-itm-bot/internal/api"
	"pivot-itm-bot/internal/calendar"
	"pivot-itm-bot/internal/store"
	"pivot-itm-bot/internal/trace"
	"pivot-itm-bot/internal/tradelog"
)

const version = "1.0.0"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bot",
		Short: "Pivot ITM - intraday NIFTY weekly option bot",
		Long: `Pivot ITM trades at most two in-the-money NIFTY weekly options a day.
The prior session's pivot and the first five-minute candle set the bias;
entries wait for a pullback into the pivot zone.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeSystem()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newReportCmd(&configPath))
	rootCmd.AddCommand(newStatusCmd(&configPath))
	rootCmd.AddCommand(newConfigCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), *configPath)
		},
	}
}

// newReportCmd creates the report command
func newReportCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the end-of-day report for a trading date",
		Long: `Summarize a day's closed trades from the journal and write its CSV.
Example: bot report --date=2026-03-04`,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			return runReportCommand(cmd.Context(), *configPath, date)
		},
	}

	cmd.Flags().String("date", "", "Trading date in YYYY-MM-DD format (today if not provided)")

	return cmd
}

func newStatusCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the live state of a running bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return runStatusCommand(cmd.Context(), *configPath, addr)
		},
	}

	cmd.Flags().String("addr", "", "Dashboard address (dashboard.addr from config if not provided)")

	return cmd
}

// newConfigCmd creates the config command
func newConfigCmd(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig(*configPath)
			if err != nil {
				fmt.Println(errorStyle.Render("✗ " + err.Error()))
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s is valid (%s mode, %d x %d units)",
				*configPath, cfg.Mode, cfg.Lots, cfg.LotSize)))
			return nil
		},
	})

	return configCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pivot-itm-bot v" + version)
		},
	}
}

func runCommand(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	return runBot(ctx, cfg)
}

// runReportCommand rebuilds the daily report from the journal.
func runReportCommand(ctx context.Context, configPath, date string) error {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cal, err := calendar.New(cfg)
	if err != nil {
		return err
	}
	loc := cal.Location()

	day := time.Now().In(loc)
	if date != "" {
		day, err = time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
		}
	}

	journal := tradelog.New(cfg.Journal.Dir, loc)
	rep, err := initializeEOD(cfg, journal, loc).SummarizeDay(ctx, day)
	if err != nil {
		return err
	}
	trades, err := journal.ReadDay(rep.Date)
	if err != nil {
		return err
	}

	fmt.Println(renderReport(rep, trades))
	return nil
}

func runStatusCommand(ctx context.Context, configPath, addr string) error {
	if addr == "" {
		cfg, err := store.LoadConfig(configPath)
		if err != nil {
			return err
		}
		addr = cfg.Dashboard.Addr
	}

	client := api.NewClient(api.WithBaseURL(addr))
	snap, err := client.State(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ bot unreachable at "+addr))
		return err
	}

	fmt.Println(renderStatus(snap))
	return nil
}
