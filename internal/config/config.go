package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/charmbracelet/x/exp/strings"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/cosmos-agent/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// EnvPrefix prefixes the environment variables of tool-specific knobs. The
// project variables (PROJECT_ENDPOINT and friends) are read without it.
const EnvPrefix = "COSMOS_AGENT_"

// Defaults for optional settings.
const (
	DefaultMCPServerURL    = "https://mcp-toolkit-app.wittywave-32c6208c.eastus.azurecontainerapps.io/mcp"
	DefaultMCPServerLabel  = "cosmosdb"
	DefaultAgentName       = "cosmosdb-demo-agent-mcp"
	DefaultAPIVersion      = "v1"
	DefaultCredential      = "cli"
	DefaultMaxRetries      = 3
	DefaultPollInterval    = time.Second
	DefaultPollMultiplier  = 1.0
	DefaultPollMaxInterval = 10 * time.Second
	DefaultMCPTimeout      = 15 * time.Second
	DefaultWordWrap        = 80
)

// DefaultInstructions is the system prompt of the demo agent.
const DefaultInstructions = `You are a helpful agent that can use MCP tools to assist users with Azure Cosmos DB queries.

Available tools:
- list_databases: Lists all databases in the Cosmos DB account
- list_collections: Lists all containers in a specific database
- get_recent_documents: Gets the most recent documents from a container
- text_search: Searches for documents containing specific text in a property
- find_document_by_id: Finds a specific document by its ID
- get_approximate_schema: Gets the schema of a container by sampling documents
- vector_search: Performs semantic search using Azure OpenAI embeddings

When a user asks about their data, use these tools to explore and query the Cosmos DB database.
Always be helpful and explain what you're doing.`

// DefaultQuestions is the built-in question catalogue.
var DefaultQuestions = []string{
	"Can you list all the databases in my Cosmos DB account?",
	"Show me the containers in the first database",
	"What does the schema look like for the first container?",
	"Get me the 5 most recent documents from the first container",
	"Search for documents containing 'test' in the name property",
}

// Project holds the variables identifying the Foundry project and the MCP
// server. They are read from the environment without EnvPrefix.
type Project struct {
	Endpoint       string `yaml:"project-endpoint" env:"PROJECT_ENDPOINT"`
	Model          string `yaml:"model-deployment-name" env:"MODEL_DEPLOYMENT_NAME"`
	ConnectionName string `yaml:"connection-name" env:"CONNECTION_NAME"`
	MCPServerURL   string `yaml:"mcp-server-url" env:"MCP_SERVER_URL"`
	MCPServerLabel string `yaml:"mcp-server-label" env:"MCP_SERVER_LABEL"`
	MCPServerScope string `yaml:"mcp-server-scope" env:"MCP_SERVER_SCOPE"`
	MCPServerToken string `yaml:"-" env:"MCP_SERVER_TOKEN"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	Project `yaml:",inline"`

	AgentName    string   `yaml:"agent-name" env:"AGENT_NAME"`
	Instructions string   `yaml:"instructions" env:"INSTRUCTIONS"`
	Questions    []string `yaml:"questions"`
	Question     int      `yaml:"question" env:"QUESTION"`

	APIVersion  string `yaml:"api-version" env:"API_VERSION"`
	Credential  string `yaml:"credential" env:"CREDENTIAL"`
	TenantID    string `yaml:"tenant-id" env:"TENANT_ID"`
	ClientID    string `yaml:"managed-identity-client-id" env:"MANAGED_IDENTITY_CLIENT_ID"`
	TokenCmd    string `yaml:"token-cmd" env:"TOKEN_CMD"`
	MaxRetries  int    `yaml:"max-retries" env:"MAX_RETRIES"`
	DeleteAgent bool   `yaml:"delete-agent" env:"DELETE_AGENT"`
	Preflight   bool   `yaml:"preflight" env:"PREFLIGHT"`
	NoLedger    bool   `yaml:"no-ledger" env:"NO_LEDGER"`

	MCPTimeout      time.Duration `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	PollInterval    time.Duration `yaml:"poll-interval" env:"POLL_INTERVAL"`
	PollMultiplier  float64       `yaml:"poll-multiplier" env:"POLL_MULTIPLIER"`
	PollMaxInterval time.Duration `yaml:"poll-max-interval" env:"POLL_MAX_INTERVAL"`
	PollTimeout     time.Duration `yaml:"poll-timeout" env:"POLL_TIMEOUT"`

	Raw       bool   `yaml:"raw" env:"RAW"`
	Quiet     bool   `yaml:"quiet" env:"QUIET"`
	WordWrap  int    `yaml:"word-wrap" env:"WORD_WRAP"`
	Theme     string `yaml:"theme" env:"THEME"`
	CachePath string `yaml:"cache-path" env:"CACHE_PATH"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	SettingsPath string
	EnvFile      string
	Debug        bool
	Version      bool
	OlderThan    time.Duration
	Yes          bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Ensure loads settings from disk, .env and environment and applies
// defaults.
//
// It also creates the default settings file if it does not exist.
func Ensure() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errs.Error{Err: err, Reason: "Could not determine home directory."}
	}
	return load(filepath.Join(home, ".config", "cosmos-agent"), ".env")
}

func load(dir, envFile string) (Config, error) {
	var c Config
	c.SettingsPath = filepath.Join(dir, "settings.yml")
	c.EnvFile = envFile

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(c.SettingsPath); err != nil {
		return c, err
	}
	content, err := os.ReadFile(c.SettingsPath)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}

	// .env never overrides variables already present in the environment.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, errs.Error{Err: err, Reason: fmt.Sprintf("Could not load %s.", envFile)}
		}
	}

	if err := env.ParseWithOptions(&c.Settings, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings."}
	}
	if err := env.Parse(&c.Project); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse project environment variables."}
	}

	c.CachePath = ordered.First(c.CachePath, filepath.Join(dir, "cache"))
	if err := os.MkdirAll(c.CachePath, 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create cache directory."}
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	c.MCPServerURL = ordered.First(c.MCPServerURL, d.MCPServerURL)
	c.MCPServerLabel = ordered.First(c.MCPServerLabel, d.MCPServerLabel)
	c.AgentName = ordered.First(c.AgentName, d.AgentName)
	c.Instructions = ordered.First(c.Instructions, d.Instructions)
	c.APIVersion = ordered.First(c.APIVersion, d.APIVersion)
	c.Credential = ordered.First(c.Credential, d.Credential)
	c.MaxRetries = ordered.First(c.MaxRetries, d.MaxRetries)
	c.MCPTimeout = ordered.First(c.MCPTimeout, d.MCPTimeout)
	c.PollInterval = ordered.First(c.PollInterval, d.PollInterval)
	c.PollMultiplier = ordered.First(c.PollMultiplier, d.PollMultiplier)
	c.PollMaxInterval = ordered.First(c.PollMaxInterval, d.PollMaxInterval)
	c.WordWrap = ordered.First(c.WordWrap, d.WordWrap)
	if len(c.Questions) == 0 {
		c.Questions = d.Questions
	}
}

// Validate reports settings the conversation cannot start without.
func (c Config) Validate() error {
	var missing []string
	for _, v := range []struct{ name, value string }{
		{"PROJECT_ENDPOINT", c.Endpoint},
		{"MODEL_DEPLOYMENT_NAME", c.Model},
		{"CONNECTION_NAME", c.ConnectionName},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return errs.Error{
			Reason: fmt.Sprintf("Missing %s.", strings.EnglishJoin(missing, true)),
			Err:    errs.UserErrorf("Set them in the environment, in a .env file, or in %s.", c.SettingsPath),
		}
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errs.Error{
			Err:    errs.UserErrorf("got %q", c.Endpoint),
			Reason: "PROJECT_ENDPOINT must be an https URL such as https://<resource>.services.ai.azure.com/api/projects/<project>.",
		}
	}
	if _, err := c.SelectedQuestion(); err != nil {
		return err
	}
	if c.PollMultiplier < 1 {
		return errs.Error{
			Err:    errs.UserErrorf("got %v", c.PollMultiplier),
			Reason: "The poll multiplier must be at least 1.",
		}
	}
	return nil
}

// SelectedQuestion returns the question chosen by the Question index.
func (c Config) SelectedQuestion() (string, error) {
	if c.Question < 0 || c.Question >= len(c.Questions) {
		return "", errs.Error{
			Err:    errs.UserErrorf("there are %d questions, numbered from 0", len(c.Questions)),
			Reason: fmt.Sprintf("Question %d does not exist. Run cosmos-agent questions to list them.", c.Question),
		}
	}
	return c.Questions[c.Question], nil
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			Project: Project{
				MCPServerURL:   DefaultMCPServerURL,
				MCPServerLabel: DefaultMCPServerLabel,
			},
			AgentName:       DefaultAgentName,
			Instructions:    DefaultInstructions,
			Questions:       slices.Clone(DefaultQuestions),
			APIVersion:      DefaultAPIVersion,
			Credential:      DefaultCredential,
			MaxRetries:      DefaultMaxRetries,
			MCPTimeout:      DefaultMCPTimeout,
			PollInterval:    DefaultPollInterval,
			PollMultiplier:  DefaultPollMultiplier,
			PollMaxInterval: DefaultPollMaxInterval,
			WordWrap:        DefaultWordWrap,
		},
	}
}
