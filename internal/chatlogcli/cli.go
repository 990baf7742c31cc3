// cli.go holds the chatlog CLI entrypoint (Main), the command tree, and the
// shared wiring helpers.
package chatlogcli

import (
	"context"
	"fmt"
	"os"

	libbus "github.com/contenox/chatlog/libbus"
	libdb "github.com/contenox/chatlog/libdbexec"
	"github.com/contenox/chatlog/messagestore"
	"github.com/contenox/chatlog/serverapi"
	"github.com/spf13/cobra"
)

const defaultSQLitePath = "chatlog.db"

// Main runs the chatlog CLI.
func Main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatlog",
	Short: "Minimal chat backend with an append-only message log.",
	Long: `Chatlog is a small chat backend over a relational message log. It streams
assistant replies, keeps a rolling Japanese digest per conversation, and
exposes an operator surface for browsing and exporting transcripts.

  Quickstart:
    chatlog initdb                    # create the schema (SQLite by default)
    chatlog hash-password <password>  # derive ADMIN_PASSWORD_HASH
    chatlog serve                     # start the HTTP server

  Storage is SQLite out of the box; set DATABASE_URL for Postgres.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server.",
	RunE:  runServe,
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Apply the database schema and exit.",
	RunE:  runInitDB,
}

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Write one conversation as CSV to stdout.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Derive the bcrypt hash for ADMIN_PASSWORD_HASH.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHashPassword,
}

func init() {
	rootCmd.AddCommand(serveCmd, initdbCmd, exportCmd, hashPasswordCmd)
}

// loadConfig reads the environment and overlays the optional YAML file.
func loadConfig() (*serverapi.Config, error) {
	config := &serverapi.Config{}
	if err := serverapi.LoadConfig(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := serverapi.MergeConfigFile(config); err != nil {
		return nil, err
	}
	return config, nil
}

// openDatabase connects to Postgres when DATABASE_URL is set, otherwise to a
// local SQLite file. The schema is applied on every open.
func openDatabase(ctx context.Context, config *serverapi.Config) (libdb.DBManager, error) {
	if config.DatabaseURL != "" {
		dbInstance, err := libdb.NewPostgresDBManager(ctx, config.DatabaseURL, messagestore.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return dbInstance, nil
	}
	path := config.SQLitePath
	if path == "" {
		path = defaultSQLitePath
	}
	dbInstance, err := libdb.NewSQLiteDBManager(ctx, path, messagestore.SchemaSQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return dbInstance, nil
}

func openPubSub(ctx context.Context, config *serverapi.Config) (libbus.Messenger, error) {
	return libbus.NewPubSub(ctx, &libbus.Config{
		NATSURL:      config.NATSURL,
		NATSUser:     config.NATSUser,
		NATSPassword: config.NATSPassword,
	})
}
