package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	badger "github.com/ipfs/go-ds-badger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	golog "github.com/textileio/go-log/v2"
	"go.uber.org/zap/zapcore"

	"github.com/litemart-io/auctioncore/engine"
	"github.com/litemart-io/auctioncore/httpapi"
	"github.com/litemart-io/auctioncore/receipt"
)

var (
	cliName         = "auctiond"
	defaultRepoPath = filepath.Join(os.Getenv("HOME"), "."+cliName)
	v               = viper.New()
)

// flag describes a configuration flag.
type flag struct {
	name        string
	defValue    interface{}
	description string
}

func init() {
	_ = godotenv.Load(".env")
	repoPath := os.Getenv("AUCTIOND_PATH")
	if repoPath == "" {
		repoPath = defaultRepoPath
	}
	_ = godotenv.Load(filepath.Join(repoPath, ".env"))

	rootCmd.AddCommand(initCmd, daemonCmd)

	daemonFlags := []flag{
		{name: "http-addr", defValue: ":8090", description: "HTTP API listen address"},
		{name: "admin-addr", defValue: "", description: "Marketplace admin account; receives commissions; required"},
		{name: "commission-rate", defValue: int64(0), description: "Commission percentage taken from winning bids, 0-100"},
		{name: "anti-snipe-window", defValue: int64(0), description: "Anti-snipe window in seconds; 0 disables the guard"},
		{name: "reveal-window", defValue: int64(86400), description: "Default reveal window for sealed auctions in seconds"},
		{name: "extendable-auctions", defValue: true, description: "Allow auction lifetime extensions"},
		{name: "log-debug", defValue: false, description: "Enable debug level log"},
		{name: "log-json", defValue: false, description: "Enable structured logging"},
	}

	cobra.OnInitialize(func() {
		v.SetConfigType("json")
		v.SetConfigName("config")
		v.AddConfigPath(os.Getenv("AUCTIOND_PATH"))
		v.AddConfigPath(defaultRepoPath)
		_ = v.ReadInConfig()
	})

	configureCLI(v, "AUCTIOND", daemonFlags, daemonCmd.PersistentFlags())
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "auctiond runs a timed-auction marketplace engine",
	Long: `auctiond runs a timed-auction marketplace engine.

It hosts ascending, descending and sealed-bid auctions over a local ledger,
exposing the engine through an HTTP API. Settlements are journaled for
out-of-band execution.

To get started, run 'auctiond init' and then 'auctiond daemon'.
`,
	Args: cobra.ExactArgs(0),
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes the auctiond repository",
	Long: `Initializes the auctiond repository.

auctiond uses a repository in the local file system. By default, the repo is
located at ~/.auctiond. To change the repo location, set the $AUCTIOND_PATH
environment variable:

    export AUCTIOND_PATH=/path/to/auctiondrepo
`,
	Args: cobra.ExactArgs(0),
	Run: func(c *cobra.Command, args []string) {
		repo := repoPath()
		checkErrf("creating repo: %v", os.MkdirAll(repo, os.ModePerm))
		fmt.Printf(`Initialized repository: %s

Start the daemon with the marketplace admin account:

    auctiond daemon --admin-addr [address]
`, repo)
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the auction engine daemon",
	Long:  "Run the auction engine daemon, serving the HTTP API.",
	Args:  cobra.ExactArgs(0),
	PersistentPreRun: func(c *cobra.Command, args []string) {
		checkErrf("setting log levels: %v", configureLogging(v, []string{
			cliName,
			"auctioncore/engine",
			"auctioncore/api",
		}))
	},
	Run: func(c *cobra.Command, args []string) {
		if v.GetString("admin-addr") == "" {
			checkErr(fmt.Errorf("--admin-addr is required. See 'auctiond help init' for instructions"))
		}

		store, err := badger.NewDatastore(filepath.Join(repoPath(), "auctionstore"), &badger.DefaultOptions)
		checkErrf("creating datastore: %v", err)
		defer func() { _ = store.Close() }()

		key, err := receipt.LoadOrCreateKey(filepath.Join(repoPath(), "receipt.key"))
		checkErrf("loading receipt key: %v", err)
		issuer, err := receipt.NewIssuer(key)
		checkErrf("creating receipt issuer: %v", err)
		settler := receipt.NewSettler(engine.NewJournalSettler(store), issuer, store)

		breaker := &engine.Breaker{}
		e, err := engine.New(store, settler, breaker, engine.StaticConfig{
			AdminAccount: v.GetString("admin-addr"),
			AntiSnipe:    v.GetInt64("anti-snipe-window"),
			Commission:   v.GetInt64("commission-rate"),
			Reveal:       v.GetInt64("reveal-window"),
			Extendable:   v.GetBool("extendable-auctions"),
		})
		checkErrf("starting engine: %v", err)

		api, err := httpapi.NewServer(v.GetString("http-addr"), &service{Engine: e, breaker: breaker, settler: settler})
		checkErrf("creating http API server: %v", err)
		defer func() { _ = api.Close() }()

		handleInterrupt()
	},
}

// service pairs the engine with its circuit breaker and settler for the
// HTTP API.
type service struct {
	*engine.Engine
	breaker *engine.Breaker
	settler *receipt.Settler
}

func (s *service) SetPaused(paused bool) { s.breaker.SetPaused(paused) }

func (s *service) Receipt(ctx context.Context, auctionID string) ([]byte, error) {
	return s.settler.Receipt(ctx, auctionID)
}

func main() {
	checkErr(rootCmd.Execute())
}

func repoPath() string {
	if p := os.Getenv("AUCTIOND_PATH"); p != "" {
		return p
	}
	return defaultRepoPath
}

// configureCLI configures a Viper environment with flags and envs.
func configureCLI(v *viper.Viper, envPrefix string, flags []flag, flagSet *pflag.FlagSet) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for _, f := range flags {
		switch defval := f.defValue.(type) {
		case string:
			flagSet.String(f.name, defval, f.description)
		case bool:
			flagSet.Bool(f.name, defval, f.description)
		case int64:
			flagSet.Int64(f.name, defval, f.description)
		default:
			log.Fatalf("unknown flag type: %T", f)
		}
		v.SetDefault(f.name, f.defValue)
		if err := v.BindPFlag(f.name, flagSet.Lookup(f.name)); err != nil {
			log.Fatalf("binding flag %s: %s", f.name, err)
		}
	}
}

func configureLogging(v *viper.Viper, subsystems []string) error {
	format := golog.ColorizedOutput
	if v.GetBool("log-json") {
		format = golog.JSONOutput
	}
	golog.SetupLogging(golog.Config{
		Format: format,
		Level:  golog.LevelError,
		Stderr: false,
		Stdout: true,
	})

	level := golog.LevelInfo
	if v.GetBool("log-debug") {
		level = golog.LevelDebug
	}
	for _, name := range subsystems {
		if err := golog.SetLogLevel(name, zapcore.Level(level).CapitalString()); err != nil {
			return err
		}
	}
	return nil
}

func checkErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func checkErrf(format string, err error) {
	if err != nil {
		log.Fatalf(format, err)
	}
}

func handleInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	fmt.Println("Gracefully stopping... (press Ctrl+C again to force)")
	signal.Reset()
}
