// Command migrate manages the run journal schema.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"newsdigest/internal/config"
	"newsdigest/migrations"
)

type options struct {
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/digest.db" description:"Path to the journal database"`
	Args         struct {
		Command string `positional-arg-name:"command" description:"up, up-one, down, status, version or reset"`
	} `positional-args:"yes"`
}

const usage = `Commands:
  up          Migrate to the latest version
  up-one      Migrate one version up
  down        Roll back one version
  status      Show migration status
  version     Show current version
  reset       Roll back all migrations`

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[--db path] <command>\n\n" + usage
	if _, err := parser.Parse(); err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			return
		}
		log.Error("parse arguments", "error", err)
		os.Exit(2)
	}
	if opts.Args.Command == "" {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", opts.DatabasePath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		log.Error("set up migrations", "error", err)
		os.Exit(1)
	}

	cmd := opts.Args.Command
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		log.Error("unknown command", "command", cmd)
		os.Exit(2)
	}

	if err != nil {
		log.Error("migration failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}
