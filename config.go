package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/IvanchikIvanov/newwave/game"
)

const (
	ModeHost = "host"
	ModeJoin = "join"
)

// Config is the peer's runtime configuration. Every flag defaults to the
// matching NEWWAVE_* environment variable, which may come from a .env file.
type Config struct {
	Mode      string
	Addr      string
	Advertise string
	Target    string
	Wire      string
	Identity  string

	BroadcastHz float64
	MinPlayers  int
	ArenaFile   string
	Password    string
	InviteTTL   time.Duration

	MaxConns      int
	MaxConnsPerIP int
	DBPath        string

	LogLevel string
	LogFile  string
	LogJSON  bool
	Headless bool

	Tuning game.Tuning
}

// LoadConfig parses args (without the program name). The first positional
// argument selects the mode; a second one is the join target.
func LoadConfig(args []string, stderr io.Writer) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{Tuning: game.DefaultTuning()}
	flags := flag.NewFlagSet(AppName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: %s [flags] host | join <address>\n", AppName)
		flags.PrintDefaults()
	}

	flags.StringVar(&cfg.Addr, "addr", envString("NEWWAVE_ADDR", ":7777"), "listen address when hosting")
	flags.StringVar(&cfg.Advertise, "advertise", envString("NEWWAVE_ADVERTISE", ""), "host:port put in the invite (default: listen address)")
	flags.StringVar(&cfg.Target, "target", envString("NEWWAVE_TARGET", ""), "invite URL or host:port to join")
	flags.StringVar(&cfg.Wire, "wire", envString("NEWWAVE_WIRE", "msgpack"), "wire codec: msgpack or json")
	flags.StringVar(&cfg.Identity, "id", envString("NEWWAVE_ID", ""), "participant identity (default: saved identity)")
	flags.Float64Var(&cfg.BroadcastHz, "broadcast-hz", envFloat("NEWWAVE_BROADCAST_HZ", DefaultBroadcastHz), "state broadcast rate")
	flags.IntVar(&cfg.MinPlayers, "min-players", envInt("NEWWAVE_MIN_PLAYERS", 0), "start automatically once this many are connected (0: wait for the host)")
	flags.StringVar(&cfg.ArenaFile, "arena", envString("NEWWAVE_ARENA", ""), "Tiled .tmx arena to load instead of a random one")
	flags.StringVar(&cfg.Password, "password", envString("NEWWAVE_PASSWORD", ""), "room password")
	flags.DurationVar(&cfg.InviteTTL, "invite-ttl", envDuration("NEWWAVE_INVITE_TTL", defaultInviteTTL), "invite lifetime")
	flags.IntVar(&cfg.MaxConns, "max-conns", envInt("NEWWAVE_MAX_CONNS", defaultMaxTotalConns), "maximum open connections")
	flags.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", envInt("NEWWAVE_MAX_CONNS_PER_IP", defaultMaxConnsPerIP), "maximum open connections per address")
	flags.StringVar(&cfg.DBPath, "db", envString("NEWWAVE_DB", ""), "sqlite file for match history (empty: none)")
	flags.StringVar(&cfg.LogLevel, "log-level", envString("NEWWAVE_LOG_LEVEL", "info"), "log level")
	flags.StringVar(&cfg.LogFile, "log-file", envString("NEWWAVE_LOG_FILE", ""), "write logs to this file")
	flags.BoolVar(&cfg.LogJSON, "log-json", envBool("NEWWAVE_LOG_JSON", false), "JSON logs even on a terminal")
	flags.BoolVar(&cfg.Headless, "headless", envBool("NEWWAVE_HEADLESS", false), "run without the terminal UI")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	rest := flags.Args()
	if len(rest) > 0 {
		cfg.Mode = rest[0]
	}
	if len(rest) > 1 {
		cfg.Target = rest[1]
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeHost
	}
	return cfg, cfg.Validate()
}

// Validate checks values flags cannot express.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeHost, ModeJoin:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if _, err := CodecByName(c.Wire); err != nil {
		return err
	}
	if c.BroadcastHz <= 0 || c.BroadcastHz > float64(c.Tuning.TickRate) {
		return fmt.Errorf("broadcast-hz must be in (0, %d]", c.Tuning.TickRate)
	}
	if c.MinPlayers < 0 {
		return fmt.Errorf("min-players must not be negative")
	}
	if c.Identity != "" && !validIdentity(c.Identity) {
		return fmt.Errorf("identity %q: only letters, digits, '-' and '_' allowed", c.Identity)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
