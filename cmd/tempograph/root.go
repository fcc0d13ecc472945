package tempograph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	tg "github.com/soundprediction/tempograph"
	"github.com/soundprediction/tempograph/pkg/alert"
	"github.com/soundprediction/tempograph/pkg/config"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/logger"
	"github.com/soundprediction/tempograph/pkg/versionstore"
)

var (
	cfgFile      string
	outputFormat string

	rootCmd = &cobra.Command{
		Use:   "tempograph",
		Short: "TempoGraph: Temporal Knowledge Graph Tool",
		Long: `TempoGraph tracks how a knowledge graph evolves over time. It records
entity and relationship changes as immutable versions, answers
point-in-time queries, and detects and resolves contradictions between
sources.

Complete documentation is available at https://github.com/soundprediction/tempograph`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tempograph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage", "", "version store backend (memory, file, badger)")
	rootCmd.PersistentFlags().String("storage-path", "", "version store path for file and badger backends")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format (json, yaml)")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage"))
	viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("storage-path"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tempograph" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tempograph")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient assembles a client from the loaded configuration: the version
// store backend, the graph store, and the circuit-breaker wrapper when
// enabled.
func newClient() (*tg.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewLogger(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format, os.Stderr)

	store, err := versionstore.New(versionstore.Options{
		Backend: versionstore.Backend(cfg.Storage.Backend),
		Path:    cfg.Storage.Path,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open version store: %w", err)
	}

	var graph driver.GraphStore
	switch cfg.Graph.Driver {
	case "neo4j":
		graph, err = driver.NewNeo4jStore(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to open graph store: %w", err)
		}
	default:
		graph = driver.NewMemoryStore()
	}
	if cfg.CircuitBreaker.Enabled {
		graph = driver.NewBreakerStore(graph, cfg.CircuitBreaker, log)
	}

	client, err := tg.NewClient(store, graph, &tg.Config{
		Tracking:      cfg.Tracking,
		Contradiction: cfg.Contradiction,
	}, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if cfg.Alert.Enabled {
		client.SetAlerter(alert.NewEmailAlerter(cfg.Alert))
	}
	return client, cfg, nil
}

// printOutput renders a result in the selected output format.
func printOutput(v interface{}) error {
	switch outputFormat {
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to render yaml: %w", err)
		}
		fmt.Print(string(data))
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render json: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}
