package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitejournal "github.com/bnema/chimenet/internal/adapters/journal/sqlite"
	silentrender "github.com/bnema/chimenet/internal/adapters/render/silent"
	statusadapter "github.com/bnema/chimenet/internal/adapters/render/status"
	terminalrender "github.com/bnema/chimenet/internal/adapters/render/terminal"
	tomlrepo "github.com/bnema/chimenet/internal/adapters/repo/toml"
	chainstore "github.com/bnema/chimenet/internal/adapters/secrets/chain"
	filestore "github.com/bnema/chimenet/internal/adapters/secrets/file"
	passstore "github.com/bnema/chimenet/internal/adapters/secrets/pass"
	"github.com/bnema/chimenet/internal/adapters/transport/memory"
	mqtttransport "github.com/bnema/chimenet/internal/adapters/transport/mqtt"
	redistransport "github.com/bnema/chimenet/internal/adapters/transport/redis"
	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".chimenet"
	envPrefix  = "CHIMENET"
)

const (
	keyUser              = "user"
	keyNodeID            = "node.id"
	keyNodeName          = "node.name"
	keyNodeChimeID       = "node.chime_id"
	keyNodeDescription   = "node.description"
	keyNodeNotes         = "node.notes"
	keyNodeChords        = "node.chords"
	keyNodeMode          = "node.mode"
	keyNodeSessionTTL    = "node.session_ttl"
	keyNodeHeartbeat     = "node.heartbeat_interval"
	keyNodeExampleStates = "node.example_states"
	keyTransportKind     = "transport.kind"
	keyTransportBroker   = "transport.broker"
	keyTransportClientID = "transport.client_id"
	keyTransportUsername = "transport.username"
	keyTransportPassword = "transport.password"
	keyTransportSecret   = "transport.password_secret"
	keyTransportRedis    = "transport.redis_addr"
	keyTransportRedisDB  = "transport.redis_db"
	keyStatesPath        = "states.path"
	keySecretsBackend    = "secrets.backend"
	keySecretsDir        = "secrets.dir"
	keySecretsPassPrefix = "secrets.pass_prefix"
	keyJournalPath       = "journal.path"
	keyRenderKind        = "render.kind"
	keyLogLevel          = "log.level"
	keyLogFormat         = "log.format"
)

const (
	transportMQTT   = "mqtt"
	transportRedis  = "redis"
	transportMemory = "memory"

	renderTerminal = "terminal"
	renderSilent   = "silent"

	secretsAuto = "auto"
	secretsPass = "pass"
	secretsFile = "file"
)

type app struct {
	config         *viper.Viper
	homeDir        string
	logger         *slog.Logger
	states         *tomlrepo.StateRepository
	bus            *memory.Bus
	now            func() time.Time
	newID          func() string
	chimesRenderer func([]domain.RemoteChimeRecord, statusadapter.RenderOptions) (string, error)
	nodeRenderer   func(application.NodeSnapshot, statusadapter.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	config := viper.New()
	config.SetConfigName(configName)
	config.SetConfigType(configType)
	config.AddConfigPath(filepath.Join(homeDir, configDir))
	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults(config, homeDir)

	states, err := tomlrepo.NewStateRepository(config)
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	return &app{
		config:         config,
		homeDir:        homeDir,
		logger:         slog.Default(),
		states:         states,
		bus:            memory.NewBus(),
		now:            time.Now,
		newID:          newChimeID,
		chimesRenderer: statusadapter.RenderChimes,
		nodeRenderer:   statusadapter.RenderNode,
	}, nil
}

func setDefaults(config *viper.Viper, homeDir string) {
	user := os.Getenv("USER")
	if user == "" {
		user = "anonymous"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	config.SetDefault(keyUser, user)
	config.SetDefault(keyNodeID, "")
	config.SetDefault(keyNodeName, host)
	config.SetDefault(keyNodeChimeID, "")
	config.SetDefault(keyNodeDescription, "")
	config.SetDefault(keyNodeNotes, []string{})
	config.SetDefault(keyNodeChords, []string{})
	config.SetDefault(keyNodeMode, domain.Available.String())
	config.SetDefault(keyNodeSessionTTL, 5*time.Minute)
	config.SetDefault(keyNodeHeartbeat, domain.HeartbeatInterval)
	config.SetDefault(keyNodeExampleStates, false)
	config.SetDefault(keyTransportKind, transportMQTT)
	config.SetDefault(keyTransportBroker, "tcp://localhost:1883")
	config.SetDefault(keyTransportClientID, "")
	config.SetDefault(keyTransportUsername, "")
	config.SetDefault(keyTransportPassword, "")
	config.SetDefault(keyTransportSecret, "")
	config.SetDefault(keyTransportRedis, "localhost:6379")
	config.SetDefault(keyTransportRedisDB, 0)
	config.SetDefault(keyStatesPath, filepath.Join(homeDir, configDir, "states.toml"))
	config.SetDefault(keySecretsBackend, secretsAuto)
	config.SetDefault(keySecretsDir, filepath.Join(homeDir, configDir, "secrets"))
	config.SetDefault(keySecretsPassPrefix, passstore.DefaultPrefix)
	config.SetDefault(keyJournalPath, filepath.Join(homeDir, configDir, "journal.db"))
	config.SetDefault(keyRenderKind, renderTerminal)
	config.SetDefault(keyLogLevel, "warn")
	config.SetDefault(keyLogFormat, "text")
}

// load reads the config file, when there is one, and sets up logging. It
// runs after flags are parsed so bound flags win over the file.
func (a *app) load(configFile string, stderr io.Writer) error {
	if configFile != "" {
		a.config.SetConfigFile(configFile)
	}

	if err := a.config.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	logger, err := newLogger(stderr, a.config.GetString(keyLogLevel), a.config.GetString(keyLogFormat))
	if err != nil {
		return err
	}
	a.logger = logger

	statesPath := a.config.GetString(keyStatesPath)
	if statesPath != a.states.Path() {
		states, err := tomlrepo.NewStateRepository(a.config)
		if err != nil {
			return fmt.Errorf("wire state repository: %w", err)
		}
		a.states = states
	}

	return nil
}

func newLogger(out io.Writer, level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	options := &slog.HandlerOptions{Level: slogLevel}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(out, options)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(out, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func (a *app) user() string {
	return a.config.GetString(keyUser)
}

// nodeID defaults to user-host so two machines of one user stay apart.
func (a *app) nodeID() string {
	if id := a.config.GetString(keyNodeID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	return a.user() + "-" + host
}

func (a *app) dialTransport(ctx context.Context, role string) (ports.Transport, error) {
	kind := strings.ToLower(a.config.GetString(keyTransportKind))
	logger := a.logger.With("transport", kind)

	password, err := a.transportPassword(ctx)
	if err != nil {
		return nil, err
	}

	switch kind {
	case transportMQTT:
		clientID := a.config.GetString(keyTransportClientID)
		if clientID == "" {
			clientID = fmt.Sprintf("chimenet-%s-%s", role, a.newID())
		}
		transport, err := mqtttransport.Dial(ctx, mqtttransport.Config{
			Broker:   a.config.GetString(keyTransportBroker),
			ClientID: clientID,
			Username: a.config.GetString(keyTransportUsername),
			Password: password,
			QoS:      1,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
		}
		return transport, nil
	case transportRedis:
		transport, err := redistransport.Dial(ctx, redistransport.Config{
			Addr:     a.config.GetString(keyTransportRedis),
			Password: password,
			DB:       a.config.GetInt(keyTransportRedisDB),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
		}
		return transport, nil
	case transportMemory:
		return a.bus, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
}

// transportPassword prefers the inline password and otherwise loads
// transport.password_secret from the secret store.
func (a *app) transportPassword(ctx context.Context) (string, error) {
	if password := a.config.GetString(keyTransportPassword); password != "" {
		return password, nil
	}

	key := a.config.GetString(keyTransportSecret)
	if key == "" {
		return "", nil
	}

	store, err := a.secretStore()
	if err != nil {
		return "", err
	}

	password, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load transport password: %w", err)
	}

	return password, nil
}

func (a *app) secretStore() (ports.SecretStore, error) {
	dir := a.config.GetString(keySecretsDir)
	prefix := a.config.GetString(keySecretsPassPrefix)

	switch backend := strings.ToLower(a.config.GetString(keySecretsBackend)); backend {
	case secretsAuto:
		return chainstore.NewPassFirstWithFileFallback(prefix, dir)
	case secretsPass:
		return passstore.NewStore(prefix), nil
	case secretsFile:
		return filestore.NewStore(dir), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", backend)
	}
}

func (a *app) newRenderer(out io.Writer) (ports.Renderer, error) {
	switch kind := strings.ToLower(a.config.GetString(keyRenderKind)); kind {
	case renderTerminal:
		return terminalrender.New(out, terminalrender.WithLogger(a.logger)), nil
	case renderSilent:
		return silentrender.New(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown render kind %q", kind)
	}
}

// openJournal returns nil when journaling is switched off with an empty path.
func (a *app) openJournal() (*sqlitejournal.Journal, error) {
	path := a.config.GetString(keyJournalPath)
	if path == "" {
		return nil, nil
	}

	journal, err := sqlitejournal.Open(path, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return journal, nil
}

// journalPort keeps a nil *Journal from becoming a non-nil interface.
func journalPort(journal *sqlitejournal.Journal) ports.Journal {
	if journal == nil {
		return nil
	}

	return journal
}

func (a *app) ringer(transport ports.Transport, journal ports.Journal) *application.RingerService {
	return application.NewRingerService(transport, ports.SystemClock{}, a.user(), a.nodeID(),
		application.WithRingerJournal(journal),
		application.WithRingerLogger(a.logger),
	)
}
