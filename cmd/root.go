// file: cmd/root.go
// version: 2.1.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jdfalk/music-catalog/internal/config"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/jdfalk/music-catalog/internal/logger"
	"github.com/jdfalk/music-catalog/internal/metadata"
	"github.com/jdfalk/music-catalog/internal/server"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var cfgFile string
var databasePath string
var databaseType string
var logFile string

// logHandle is the open --log-file, closed after the command finishes.
var logHandle *os.File

// Seams for command tests.
var (
	openStore   = database.OpenStore
	startServer = func(ctx context.Context, srv *server.Server) error { return srv.Start(ctx) }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "music-catalog",
	Short: "Song catalog with remote audio metadata extraction",
	Long: `Music Catalog keeps a small catalog of songs (title, singer, song and
image URLs, year) behind a JSON API and a browser dashboard.

It can also download a remote audio file, read its embedded tags and report
the title, artist, year and whether cover art is present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("log_file")
		if path == "" {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := logger.SetupFileLogging(path)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logHandle = f
		return nil
	},
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  `Start the HTTP server exposing the song API, metadata extraction and the dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, &cfg.Server); err != nil {
			return err
		}

		ctx := commandContext(cmd)
		store, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Using database: %s (%s)\n", cfg.DatabasePath, cfg.DatabaseType)

		srv := server.NewServer(server.Deps{
			Store:     store,
			Extractor: metadata.NewExtractorFromConfig(cfg.Extract),
			Config:    cfg,
		})
		return startServer(ctx, srv)
	},
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract metadata from a remote audio file",
	Long: `Download the audio file at the given http(s) URL, read its embedded tags
and print the title, singer, year and whether cover art is present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		var bar *progressbar.ProgressBar
		var opts []metadata.Option
		if !asJSON && !quiet {
			opts = append(opts, metadata.WithProgress(func(total int64) io.Writer {
				bar = progressbar.DefaultBytes(total, "downloading")
				return bar
			}))
		}

		md, err := metadata.NewExtractorFromConfig(cfg.Extract, opts...).Extract(commandContext(cmd), args[0])
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		return printExtracted(cmd.OutOrStdout(), md, cfg.Extract.PlaceholderImageURL, asJSON)
	},
}

// userCmd groups user management
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage stored users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user with a bcrypt-hashed password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])
		if username == "" {
			return errors.New("username must not be empty")
		}
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return errors.New("--password is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		store, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.GetUserByUsername(ctx, username); err == nil {
			return fmt.Errorf("user %q already exists", username)
		} else if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user, err := store.CreateUser(ctx, username, string(hash))
		if errors.Is(err, database.ErrDuplicate) {
			return fmt.Errorf("user %q already exists", username)
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(closeLogFile)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.music-catalog.yaml)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "music.db", "path to database")
	rootCmd.PersistentFlags().StringVar(&databaseType, "db-type", "sqlite", "database type: sqlite (default) or pebble")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")

	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database_type", rootCmd.PersistentFlags().Lookup("db-type"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(configCmd)
	userCmd.AddCommand(userAddCmd)
	configCmd.AddCommand(configShowCmd)

	// Add serve command specific flags
	serveCmd.Flags().String("port", "8080", "port to run the web server on")
	serveCmd.Flags().String("host", "localhost", "host to bind the web server to")
	serveCmd.Flags().String("read-timeout", "15s", "read timeout (e.g. 15s, 1m)")
	serveCmd.Flags().String("write-timeout", "60s", "write timeout (e.g. 60s, 2m)")
	serveCmd.Flags().String("idle-timeout", "60s", "idle timeout (e.g. 60s, 2m)")

	extractCmd.Flags().Bool("json", false, "print the result as JSON")
	extractCmd.Flags().BoolP("quiet", "q", false, "hide the download progress bar")

	userAddCmd.Flags().String("password", "", "password for the new user")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".music-catalog")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func closeLogFile() {
	if logHandle != nil {
		log.SetOutput(os.Stderr)
		_ = logHandle.Close()
		logHandle = nil
	}
}

// loadConfig builds the effective configuration from flags, environment,
// config file and defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openCatalog makes sure the database directory exists, then opens and
// migrates the store.
func openCatalog(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if dbDir := filepath.Dir(cfg.DatabasePath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := openStore(ctx, cfg.DatabaseType, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// applyServeFlags overrides the listener settings with flags set explicitly
// on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.ServerConfig) error {
	if f := cmd.Flag("host"); f.Changed {
		cfg.Host = f.Value.String()
	}
	if f := cmd.Flag("port"); f.Changed {
		cfg.Port = f.Value.String()
	}
	durations := []struct {
		flag string
		dst  *time.Duration
	}{
		{"read-timeout", &cfg.ReadTimeout},
		{"write-timeout", &cfg.WriteTimeout},
		{"idle-timeout", &cfg.IdleTimeout},
	}
	for _, d := range durations {
		f := cmd.Flag(d.flag)
		if !f.Changed {
			continue
		}
		v, err := time.ParseDuration(f.Value.String())
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", d.flag, err)
		}
		*d.dst = v
	}
	return nil
}

func printExtracted(w io.Writer, md metadata.ExtractedMetadata, imageURL string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(server.ExtractResponse{
			Title:           md.Title,
			Singer:          md.Artist,
			ImageURL:        imageURL,
			Year:            md.Year,
			CoverArtPresent: md.CoverArtPresent,
		})
	}

	cover := "absent"
	if md.CoverArtPresent {
		cover = "present"
	}
	fmt.Fprintf(w, "Title:  %s\n", md.Title)
	fmt.Fprintf(w, "Singer: %s\n", md.Artist)
	fmt.Fprintf(w, "Year:   %d\n", md.Year)
	fmt.Fprintf(w, "Cover:  %s\n", cover)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
