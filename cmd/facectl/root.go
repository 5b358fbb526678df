package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/config"
	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
	"github.com/saturnino-fabrica-de-software/facegate/internal/directory"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider/client"
)

// Version is the application version.
const Version = "0.1.0"

// cliConfig is the subset of the API environment the CLI reads.
type cliConfig struct {
	DirectoryBackend string `envconfig:"DIRECTORY_BACKEND" default:"file"`
	UsersFile        string `envconfig:"USERS_FILE" default:"users.json"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	MatchProfile     string `envconfig:"MATCH_PROFILE" default:"embedding-128"`
}

type app struct {
	cfg cliConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "facectl",
		Short:         "Inspect the facegate user directory and matcher",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env file is optional, don't fail if not found
			_ = godotenv.Load()

			// flags win over the environment
			usersFile, profile := a.cfg.UsersFile, a.cfg.MatchProfile
			if err := envconfig.Process("", &a.cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("users-file") {
				a.cfg.UsersFile = usersFile
				a.cfg.DirectoryBackend = config.DirectoryFile
			}
			if cmd.Flags().Changed("profile") {
				a.cfg.MatchProfile = profile
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfg.UsersFile, "users-file", "", "users.json to read instead of DIRECTORY_BACKEND")
	root.PersistentFlags().StringVar(&a.cfg.MatchProfile, "profile", "", "matching profile (default: MATCH_PROFILE or embedding-128)")

	root.AddCommand(
		a.usersCmd(),
		a.matchCmd(),
		a.distanceCmd(),
		a.profilesCmd(),
		a.eventsCmd(),
	)
	return root
}

// openDirectory returns the configured directory and a func releasing it.
func (a *app) openDirectory(ctx context.Context) (directory.Directory, func(), error) {
	switch a.cfg.DirectoryBackend {
	case config.DirectoryPostgres:
		pool, err := a.openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return directory.NewPostgresDirectory(pool), pool.Close, nil
	case config.DirectoryFile, "":
		return directory.NewFileDirectory(a.cfg.UsersFile), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown DIRECTORY_BACKEND %q", a.cfg.DirectoryBackend)
	}
}

func (a *app) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(a.cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func (a *app) profile() (biometric.Profile, error) {
	return config.LoadProfile(a.cfg.MatchProfile)
}

// readVector loads a feature vector from a JSON array of numbers, or from a
// client frame ({"faces":[[...]]}) holding exactly one face.
func readVector(ctx context.Context, path string) (biometric.FeatureVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var v biometric.FeatureVector
	if err := json.Unmarshal(data, &v); err == nil {
		return v, nil
	}

	faces, err := client.New().Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(faces) != 1 {
		return nil, fmt.Errorf("read %s: frame holds %d faces, want 1", path, len(faces))
	}
	return faces[0], nil
}
