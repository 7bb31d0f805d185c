package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"grocat/backend"
	"grocat/backend/ourgroceries"
	"grocat/internal/cache"
	"grocat/internal/config"
	"grocat/internal/credentials"
	"grocat/internal/shutdown"
	"grocat/internal/skill"
	"grocat/internal/utils"
	"grocat/internal/voice"
	"grocat/internal/webhook"
)

// Version is set at build time
var Version = "dev"

// shutdownTimeout bounds how long serve waits for its cleanups.
const shutdownTimeout = 10 * time.Second

// Config holds application configuration
type Config struct {
	Verbose    bool
	ConfigPath string              // Path to config.yaml (for testing)
	CacheDir   string              // Overrides cache.dir (for testing)
	Service    backend.ListService // Replaces the OurGroceries client (for testing)
	Keyring    credentials.Keyring // Replaces the system keyring (for testing)
	Stdin      io.Reader           // Source of follow-up answers; os.Stdin when nil
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewGrocat(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewGrocat creates the root command with injectable IO
func NewGrocat(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "grocat",
		Short:   "A voice assistant for your grocery lists",
		Long:    "grocat adds items, categories and lists to OurGroceries from spoken intents.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Read follow-up answers as plain lines instead of an interactive prompt")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().String("config", "", "Path to config.yaml")
	cmd.PersistentFlags().String("user", "", "OurGroceries account (overrides config)")

	cmd.AddCommand(newAddCmd(stdout, cfg))
	cmd.AddCommand(newCategoryCmd(stdout, cfg))
	cmd.AddCommand(newListCmd(stdout, cfg))
	cmd.AddCommand(newListsCmd(stdout, cfg))
	cmd.AddCommand(newUncrossCmd(stdout, cfg))
	cmd.AddCommand(newSayCmd(stdout, cfg))
	cmd.AddCommand(newServeCmd(stdout, cfg))
	cmd.AddCommand(newCacheCmd(stdout, cfg))
	cmd.AddCommand(newCredentialsCmd(stdout, stderr, cfg))

	return cmd
}

// =============================================================================
// Intent commands
// =============================================================================

// newAddCmd creates the 'add' command, the AddItem intent
func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [item...]",
		Short: "Add an item to a list",
		Long:  "Add an item to a list, putting it in the named category. Crossed-off items are put back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			item, _ := cmd.Flags().GetString("item")
			if item == "" {
				item = strings.Join(args, " ")
			}
			category, _ := cmd.Flags().GetString("category")
			list, _ := cmd.Flags().GetString("list")

			return runIntent(cmd, stdout, cfg, skill.IntentAddItem, skill.Slots{
				skill.SlotFood:     item,
				skill.SlotCategory: category,
				skill.SlotListName: list,
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("item", "", "Item to add (instead of positional words)")
	cmd.Flags().StringP("category", "c", "", "Category to put the item in")
	cmd.Flags().StringP("list", "l", "", "List to add to (default from config)")
	return cmd
}

// newCategoryCmd creates the 'category' command group
func newCategoryCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	categoryCmd.AddCommand(&cobra.Command{
		Use:   "add [name...]",
		Short: "Create a category unless it already exists",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, stdout, cfg, skill.IntentAddCategory, skill.Slots{
				skill.SlotCategory: strings.Join(args, " "),
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})
	return categoryCmd
}

// newListCmd creates the 'list' command group
func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Manage lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd.AddCommand(&cobra.Command{
		Use:   "create [name...]",
		Short: "Create a list, asking first when a similar one exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, stdout, cfg, skill.IntentCreateList, skill.Slots{
				skill.SlotListName: strings.Join(args, " "),
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})
	return listCmd
}

// newListsCmd creates the 'lists' command, the ListLists intent
func newListsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Say the names of all lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, stdout, cfg, skill.IntentListLists, skill.Slots{})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newUncrossCmd creates the 'uncross' command, the UncrossAll intent
func newUncrossCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uncross",
		Short: "Put every crossed-off item back on a list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, _ := cmd.Flags().GetString("list")
			return runIntent(cmd, stdout, cfg, skill.IntentUncrossAll, skill.Slots{
				skill.SlotListName: list,
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("list", "l", "", "List to restore (default from config)")
	return cmd
}

// newSayCmd creates the 'say' command, which runs any intent with raw slots
func newSayCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "say <intent> [Slot=value...]",
		Short: "Run an intent by name",
		Long:  "Run an intent by name with slots given as Slot=value pairs.\nIntents: " + strings.Join(skill.Intents(), ", "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := parseSlots(args[1:])
			if err != nil {
				return err
			}
			return runIntent(cmd, stdout, cfg, args[0], slots)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// parseSlots turns Slot=value pairs into slots
func parseSlots(pairs []string) (skill.Slots, error) {
	slots := skill.Slots{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid slot %q (expected Slot=value)", pair)
		}
		slots[strings.TrimSpace(name)] = value
	}
	return slots, nil
}

// runIntent opens a session and runs one intent against the terminal voice
func runIntent(cmd *cobra.Command, stdout io.Writer, cfg *Config, intent string, slots skill.Slots) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	v := voice.NewTerminal(stdinFor(cfg), stdout)
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		v.SetInteractive(false)
	}
	return a.skill.Handle(ctx, intent, slots, v)
}

// =============================================================================
// serve
// =============================================================================

// newServeCmd creates the 'serve' command, which exposes the intents over HTTP
func newServeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve intents over HTTP",
		Long:  "Serve intents as POST /intents/<name> with a JSON body of slots. Stops on SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}

			listen, _ := cmd.Flags().GetString("listen")
			if listen == "" {
				listen = a.settings.Webhook.Listen
			}

			bgLog, err := utils.NewBackgroundLogger(a.settings.IsBackgroundLoggingEnabled())
			if err != nil {
				utils.Warnf("request log disabled: %v", err)
			}

			srv := webhook.New(a.skill, bgLog.Writer())

			mgr := shutdown.NewManager(cmd.Context())
			mgr.RegisterCleanup("session", func(context.Context) error { return a.Close() })
			mgr.RegisterCleanup("request log", func(context.Context) error {
				bgLog.Close()
				return nil
			})
			mgr.RegisterCleanup("webhook", srv.Shutdown)
			mgr.ListenForSignals()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(listen)
			}()

			session := a.skill.Session()
			utils.Debugf("serving session %s", session.ID)
			_, _ = fmt.Fprintf(stdout, "Serving intents for %s on http://%s\n", session.Username, listen)
			if bgLog.IsEnabled() {
				_, _ = fmt.Fprintf(stdout, "Request log: %s\n", bgLog.GetLogPath())
			}

			var serveErr error
			select {
			case serveErr = <-errCh:
				mgr.Shutdown()
			case <-mgr.Done():
			}

			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := mgr.Wait(waitCtx); err != nil {
				utils.Warnf("shutdown did not finish: %v", err)
			}
			return serveErr
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("listen", "", "Address to listen on (default from config)")
	return cmd
}

// =============================================================================
// cache
// =============================================================================

// newCacheCmd creates the 'cache' command group
func newCacheCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local snapshot cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg)
			if err != nil {
				return err
			}
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c, ok := store.(interface{ Clear() error })
			if !ok {
				return fmt.Errorf("cache store %q cannot be cleared", settings.Cache.Store)
			}
			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			_, _ = fmt.Fprintf(stdout, "Cache cleared (%s)\n", settings.Cache.Dir)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})
	return cacheCmd
}

// =============================================================================
// credentials
// =============================================================================

// newCredentialsCmd creates the 'credentials' subcommand for credential management
func newCredentialsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the OurGroceries password",
		Long:  "Store, inspect and remove the OurGroceries password in the system keyring.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	credentialsCmd.AddCommand(newCredentialsSetCmd(stdout, cfg))
	credentialsCmd.AddCommand(newCredentialsGetCmd(stdout, cfg))
	credentialsCmd.AddCommand(newCredentialsDeleteCmd(stdout, cfg))

	return credentialsCmd
}

// newCredentialsSetCmd creates the 'credentials set' subcommand
func newCredentialsSetCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set [username]",
		Short: "Store the password in the system keyring",
		Long:  "Prompt for the password and store it in the system keyring (macOS Keychain, Windows Credential Manager, or Linux Secret Service).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := credentialsUser(cmd, cfg, args)
			if err != nil {
				return err
			}
			handler := credentials.NewCLIHandler(credentialsManager(cfg), stdinFor(cfg), stdout)
			return handler.Set(cmd.Context(), username)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCredentialsGetCmd creates the 'credentials get' subcommand
func newCredentialsGetCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [username]",
		Short: "Show where the password comes from",
		Long:  "Look up the password (keyring, then environment) and display its source.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := credentialsUser(cmd, cfg, args)
			if err != nil {
				return err
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			handler := credentials.NewCLIHandler(credentialsManager(cfg), nil, stdout)
			return handler.Get(cmd.Context(), username, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

// newCredentialsDeleteCmd creates the 'credentials delete' subcommand
func newCredentialsDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [username]",
		Short: "Remove the password from the system keyring",
		Long:  "Remove the stored password from the system keyring. Environment variables are not affected.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := credentialsUser(cmd, cfg, args)
			if err != nil {
				return err
			}
			handler := credentials.NewCLIHandler(credentialsManager(cfg), nil, stdout)
			return handler.Delete(cmd.Context(), username)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// credentialsUser picks the account from args, then --user and config
func credentialsUser(cmd *cobra.Command, cfg *Config, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	settings, err := loadSettings(cmd, cfg)
	if err != nil {
		return "", err
	}
	return resolveUsername(settings)
}

func credentialsManager(cfg *Config) *credentials.Manager {
	if cfg.Keyring != nil {
		return credentials.NewManager(credentials.WithKeyring(cfg.Keyring))
	}
	return credentials.NewManager()
}

// =============================================================================
// Wiring
// =============================================================================

// app is everything an intent needs, opened for one command
type app struct {
	settings *config.Config
	store    cache.Store
	service  backend.ListService
	skill    *skill.Skill
}

// Close releases the service and the store
func (a *app) Close() error {
	return errors.Join(a.service.Close(), a.store.Close())
}

// openApp loads the config, logs in and builds the skill
func openApp(ctx context.Context, cmd *cobra.Command, cfg *Config) (*app, error) {
	settings, err := loadSettings(cmd, cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}

	svc, username, err := openService(ctx, settings, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	session, err := skill.Open(ctx, svc, username)
	if err != nil {
		_ = svc.Close()
		_ = store.Close()
		if errors.Is(err, ourgroceries.ErrAuthenticationFailed) {
			return nil, utils.ErrAuthenticationFailed("ourgroceries")
		}
		return nil, utils.ErrServiceOffline("ourgroceries", err.Error())
	}

	c := cache.New(store, svc, cache.WithTTL(settings.GetCacheTTLDuration()))
	return &app{
		settings: settings,
		store:    store,
		service:  svc,
		skill:    skill.New(session, c, settings.DefaultList),
	}, nil
}

// loadSettings reads config.yaml and applies flag and test overrides
func loadSettings(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = cfg.ConfigPath
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	user, _ := cmd.Flags().GetString("user")
	settings.ApplyFlags(verbose || cfg.Verbose, user)
	if cfg.CacheDir != "" {
		settings.Cache.Dir = cfg.CacheDir
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	utils.SetVerboseMode(settings.Logging.Verbose)
	return settings, nil
}

// openStore opens the snapshot store selected by cache.store
func openStore(settings *config.Config) (cache.Store, error) {
	switch settings.Cache.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(settings.Cache.Dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create cache directory: %w", err)
		}
		store, err := cache.NewSQLiteStore(settings.GetSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		return store, nil
	default:
		return cache.NewFileStore(settings.Cache.Dir), nil
	}
}

// openService returns the injected service, or an OurGroceries client
// authenticated with the password from the keyring or environment
func openService(ctx context.Context, settings *config.Config, cfg *Config) (backend.ListService, string, error) {
	if cfg.Service != nil {
		username := settings.Username
		if username == "" {
			username = os.Getenv(credentials.EnvUsername)
		}
		return cfg.Service, username, nil
	}

	username, err := resolveUsername(settings)
	if err != nil {
		return nil, "", err
	}

	info, err := credentialsManager(cfg).Get(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if !info.Found {
		return nil, "", utils.ErrCredentialsNotFound("ourgroceries", username)
	}
	utils.Debugf("using %s password for %s", info.Source, username)

	svc, err := ourgroceries.New(ourgroceries.Config{
		Username: username,
		Password: info.Password,
		BaseURL:  settings.Service.BaseURL,
		Timeout:  settings.GetTimeoutDuration(),
	})
	if err != nil {
		return nil, "", err
	}
	return svc, username, nil
}

// resolveUsername returns the configured account, falling back to GROCAT_USERNAME
func resolveUsername(settings *config.Config) (string, error) {
	if settings.Username != "" {
		return settings.Username, nil
	}
	if env := os.Getenv(credentials.EnvUsername); env != "" {
		return env, nil
	}
	return "", utils.WrapWithSuggestion(
		errors.New("no OurGroceries username configured"),
		"Set 'username' in config.yaml, pass --user, or export "+credentials.EnvUsername,
	)
}

func stdinFor(cfg *Config) io.Reader {
	if cfg.Stdin != nil {
		return cfg.Stdin
	}
	return os.Stdin
}
