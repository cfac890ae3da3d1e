package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/convorag/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/convorag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/services"
)

// Config commands work without a wired app so a broken configuration can
// still be fixed.
var configAnnotations = map[string]string{skipBootstrap: "true"}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage configuration",
	Long:        `View and change chunking, retrieval, embedding and storage settings.`,
	Annotations: configAnnotations,
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: configAnnotations,
	RunE:        runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:         "get [key]",
	Short:       "Print a config value",
	Args:        cobra.ExactArgs(1),
	Annotations: configAnnotations,
	RunE:        runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a config value",
	Long: `Stores a value under a dot-separated key such as retrieval.top_k.

Values are stored as booleans, integers or floats when they parse as one,
as a list when given as a JSON array, and as strings otherwise.`,
	Args:        cobra.ExactArgs(2),
	Annotations: configAnnotations,
	RunE:        runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file path",
	Args:        cobra.NoArgs,
	Annotations: configAnnotations,
	RunE:        runConfigPath,
}

var configProviderCmd = &cobra.Command{
	Use:   "provider",
	Short: "Configure the embedding provider",
	Long: `Select the embedding provider, model and API key.
Without --provider the choices are prompted for interactively.`,
	Args:        cobra.NoArgs,
	Annotations: configAnnotations,
	RunE:        runConfigProvider,
}

var (
	providerName       string
	providerModel      string
	providerAPIKey     string
	providerNoValidate bool
)

func init() {
	configProviderCmd.Flags().StringVar(&providerName, "provider", "", "ollama, openai or gemini")
	configProviderCmd.Flags().StringVar(&providerModel, "model", "", "embedding model (default: provider default)")
	configProviderCmd.Flags().StringVar(&providerAPIKey, "api-key", "", "API key for cloud providers")
	configProviderCmd.Flags().BoolVar(&providerNoValidate, "no-validate", false, "skip the connectivity check")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configProviderCmd)
	rootCmd.AddCommand(configCmd)
}

// openConfig returns the wired config store, or opens the config file.
func openConfig() (driven.ConfigStore, error) {
	if app != nil && app.Config != nil {
		return app.Config, nil
	}
	path := configPath
	if path == "" {
		home, err := homeDir(Options{})
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, "config.toml")
	}
	return configfile.NewConfigStore(path)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := openConfig()
	if err != nil {
		return err
	}
	s := services.LoadSettings(cfg)

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", s.Chunking.Size)
	cmd.Printf("  Overlap: %d\n", s.Chunking.Overlap)
	cmd.Printf("  Separators: %q\n", s.Chunking.Separators)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", s.Retrieval.TopK)
	cmd.Printf("  Similarity threshold: %.2f\n", s.Retrieval.SimilarityThreshold)
	cmd.Printf("  Context window: %d\n", s.Retrieval.ContextWindow)
	cmd.Printf("  Doc length threshold: %d\n", s.Retrieval.DocLengthThreshold)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", s.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", s.Embedding.Model)
	if s.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", s.Embedding.BaseURL)
	}
	if s.Embedding.Provider.RequiresAPIKey() {
		if s.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(s.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !s.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Index backend: %s\n", s.Storage.Backend)
	switch s.Storage.Backend {
	case domain.StorageS3:
		cmd.Printf("  Bucket: %s\n", s.Storage.S3.Bucket)
		if s.Storage.S3.Endpoint != "" {
			cmd.Printf("  Endpoint: %s\n", s.Storage.S3.Endpoint)
		}
	case domain.StorageFile, domain.StorageSQLite:
		if s.Storage.Path != "" {
			cmd.Printf("  Path: %s\n", s.Storage.Path)
		}
	}
	cmd.Printf("  Document driver: %s\n", s.Documents.Driver)
	cmd.Printf("  Index cache: %d (ttl %s)\n", s.Cache.Indexes, s.Cache.TTL)
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %t\n", s.Scheduler.Enabled)
	cmd.Printf("  Refresh: %s\n", s.Scheduler.GetTaskConfig(domain.TaskIDIndexRefresh).Schedule)
	cmd.Println()

	if err := s.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'convorag config set' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := openConfig()
	if err != nil {
		return err
	}
	v, ok := cfg.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: key %s is not set", domain.ErrNotFound, args[0])
	}
	if strings.HasSuffix(args[0], "api_key") || strings.HasSuffix(args[0], "secret_key") {
		if s, isString := v.(string); isString {
			v = maskAPIKey(s)
		}
	}
	cmd.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := openConfig()
	if err != nil {
		return err
	}
	key := args[0]
	value, err := parseConfigValue(args[1])
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("Set %s\n", key)

	if err := services.LoadSettings(cfg).Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

// parseConfigValue picks the narrowest type the text parses as.
func parseConfigValue(s string) (any, error) {
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("%w: list values must be a JSON array of strings: %w", domain.ErrInvalidInput, err)
		}
		return list, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cfg, err := openConfig()
	if err != nil {
		return err
	}
	cmd.Println(cfg.Path())
	return nil
}

func runConfigProvider(cmd *cobra.Command, _ []string) error {
	cfg, err := openConfig()
	if err != nil {
		return err
	}
	svc := services.NewSettingsService(cfg)

	provider := domain.AIProvider(providerName)
	model, apiKey := providerModel, providerAPIKey
	if providerName == "" {
		provider, model, apiKey, err = promptProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return err
		}
	}

	if err := svc.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	settings, err := svc.Get()
	if err != nil {
		return err
	}
	if !providerNoValidate {
		cmd.Print("Validating configuration... ")
		if err := ai.ValidateEmbeddingConfig(cmd.Context(), &settings.Embedding); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), settings.Embedding.Model)
	return nil
}

func promptProvider(cmd *cobra.Command, reader *bufio.Reader) (domain.AIProvider, string, string, error) {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return "", "", "", errors.New("API key is required for this provider")
		}
	}
	return selected, model, apiKey, nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, and a plain line otherwise.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
