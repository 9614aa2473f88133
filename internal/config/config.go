// Package config models a conversion run's settings and lints them before
// anything touches a database.
package config

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Config is the fully resolved configuration of one conversion run. Exactly
// one of DumpPath and the MySQL connection settings must be populated.
type Config struct {
	// DumpPath is a mysqldump SQL file to read. Empty selects live mode.
	DumpPath string

	// Live connection settings, ignored in dump mode.
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Output is the destination SQLite file path.
	Output string

	// Include restricts conversion to the named tables; empty means all.
	Include []string
	// Exclude removes the named tables; applied after Include.
	Exclude []string

	// BatchSize is the destination commit granularity in rows.
	BatchSize int
	// FetchWindow bounds rows pulled per round trip in live mode.
	FetchWindow int

	// ValidateJSON rejects malformed documents in json columns.
	ValidateJSON bool
	// Vacuum compacts the destination file after a successful run.
	Vacuum bool
}

// IssueSeverity grades a validation finding.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into the config.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate lints the config without touching any file or server. Callers
// decide whether warnings block.
func Validate(c Config) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	dumpMode := strings.TrimSpace(c.DumpPath) != ""
	liveMode := c.Host != "" || c.Database != "" || c.User != ""
	switch {
	case dumpMode && liveMode:
		errf("source", "dump file and live connection are mutually exclusive")
	case !dumpMode && !liveMode:
		errf("source", "either a dump file or connection settings are required")
	case liveMode && c.Database == "":
		errf("database", "live mode requires a database name")
	}

	if strings.TrimSpace(c.Output) == "" {
		errf("output", "destination path must not be empty")
	}

	if c.BatchSize < 0 {
		errf("batch-size", "must not be negative")
	}
	if c.FetchWindow < 0 {
		errf("fetch-window", "must not be negative")
	}
	if dumpMode && c.FetchWindow > 0 {
		warnf("fetch-window", "only applies to live mode")
	}

	seen := map[string]string{}
	for _, t := range c.Include {
		seen[strings.ToLower(t)] = t
	}
	for _, t := range c.Exclude {
		if _, ok := seen[strings.ToLower(t)]; ok {
			warnf("exclude", "table %s is both included and excluded; exclusion wins", t)
		}
	}

	return issues
}

// Errors filters issues down to the blocking ones.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// DSN assembles the go-sql-driver connection string for live mode.
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = c.Database
	return mc.FormatDSN()
}

// Filter builds the table predicate from the include and exclude lists.
// Matching is case-insensitive, like MySQL table names on default installs.
func (c Config) Filter() func(table string) bool {
	include := map[string]struct{}{}
	for _, t := range c.Include {
		include[strings.ToLower(t)] = struct{}{}
	}
	exclude := map[string]struct{}{}
	for _, t := range c.Exclude {
		exclude[strings.ToLower(t)] = struct{}{}
	}
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	return func(table string) bool {
		k := strings.ToLower(table)
		if _, out := exclude[k]; out {
			return false
		}
		if len(include) == 0 {
			return true
		}
		_, in := include[k]
		return in
	}
}
