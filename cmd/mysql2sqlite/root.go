// Command mysql2sqlite converts a MySQL dump file or a live MySQL database
// into a SQLite database file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mysql2sqlite/internal/coerce"
	"mysql2sqlite/internal/config"
	"mysql2sqlite/internal/convert"
	"mysql2sqlite/internal/progress"
	"mysql2sqlite/internal/source"
	"mysql2sqlite/internal/sqlite"
)

var (
	cfgFile   string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:           "mysql2sqlite",
	Short:         "Convert a MySQL dump or database to SQLite",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return exitCode
}

// exitCode carries a non-zero status for runs that completed but dropped
// rows or tables.
var exitCode int

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.Flags()
	f.StringP("input", "i", "", "MySQL dump file; omit to connect to a server")
	f.StringP("output", "o", "", "output SQLite file (required)")
	f.String("host", "localhost", "MySQL host")
	f.Int("port", 3306, "MySQL port")
	f.String("user", "root", "MySQL user")
	f.String("password", "", "MySQL password")
	f.String("database", "", "MySQL database name")
	f.StringSlice("include-tables", nil, "convert only these tables")
	f.StringSlice("exclude-tables", nil, "skip these tables")
	f.Int("batch-size", sqlite.DefaultBatchSize, "rows per destination transaction")
	f.Int("fetch-window", source.DefaultFetchWindow, "rows per server round trip (live mode)")
	f.Bool("validate-json", false, "reject malformed documents in json columns")
	f.Bool("vacuum", false, "VACUUM the output after conversion")
	f.Bool("check", false, "validate the configuration and exit")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./mysql2sqlite.yaml)")
	pf.CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v, -vv)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "errors only")

	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("mysql2sqlite")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("MYSQL2SQLITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbosity == 1:
		level = zerolog.DebugLevel
	case verbosity > 1:
		level = zerolog.TraceLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadConfig() config.Config {
	return config.Config{
		DumpPath:     viper.GetString("input"),
		Host:         viper.GetString("host"),
		Port:         viper.GetInt("port"),
		User:         viper.GetString("user"),
		Password:     viper.GetString("password"),
		Database:     viper.GetString("database"),
		Output:       viper.GetString("output"),
		Include:      viper.GetStringSlice("include-tables"),
		Exclude:      viper.GetStringSlice("exclude-tables"),
		BatchSize:    viper.GetInt("batch-size"),
		FetchWindow:  viper.GetInt("fetch-window"),
		ValidateJSON: viper.GetBool("validate-json"),
		Vacuum:       viper.GetBool("vacuum"),
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg := loadConfig()

	// host and user carry defaults even when unused; clear them in dump mode
	// so validation does not see two sources.
	if cfg.DumpPath != "" {
		cfg.Host, cfg.User = "", ""
	}

	issues := config.Validate(cfg)
	for _, i := range issues {
		if i.Severity == config.SeverityError {
			log.Error().Str("path", i.Path).Msg(i.Message)
		} else {
			log.Warn().Str("path", i.Path).Msg(i.Message)
		}
	}
	if errs := config.Errors(issues); len(errs) > 0 {
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	if viper.GetBool("check") {
		log.Info().Msg("configuration ok")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		src source.Source
		err error
	)
	if cfg.DumpPath != "" {
		log.Info().Str("file", cfg.DumpPath).Msg("reading dump")
		src, err = source.OpenDump(cfg.DumpPath, 0)
	} else {
		log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database).Msg("connecting")
		src, err = source.OpenLive(ctx, cfg.DSN(), cfg.FetchWindow)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	db, err := sqlite.Open(ctx, cfg.Output)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := convert.Run(ctx, src, db, convert.Options{
		BatchSize: cfg.BatchSize,
		Filter:    cfg.Filter(),
		Coerce:    coerce.Options{ValidateJSON: cfg.ValidateJSON},
		Sink:      progress.Logger{Log: log},
	})
	if report != nil && !quiet {
		fmt.Fprint(os.Stderr, report.Summary())
	}
	if err != nil {
		return err
	}

	if cfg.Vacuum {
		log.Info().Msg("vacuuming")
		if err := db.Vacuum(ctx); err != nil {
			return err
		}
	}

	if report.Failed() {
		exitCode = 2
	}
	return nil
}
