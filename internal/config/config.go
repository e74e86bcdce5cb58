package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Oracle     Oracle     `yaml:"oracle"`
	Scoring    Scoring    `yaml:"scoring"`
	Sources    Sources    `yaml:"sources"`
	Categories []Category `yaml:"categories"`
	Limits     Limits     `yaml:"limits"`
	Fetch      Fetch      `yaml:"fetch"`
	Images     Images     `yaml:"images"`
	Podcast    Podcast    `yaml:"podcast"`
	Discover   Discover   `yaml:"discover"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
}

type Oracle struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	GeminiModel       string  `yaml:"gemini_model"`
	GeminiKeyEnv      string  `yaml:"gemini_key_env"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type Scoring struct {
	Interests       string   `yaml:"interests"`
	MinScore        int      `yaml:"min_score"`
	DefaultScore    int      `yaml:"default_score"`
	DefaultCategory string   `yaml:"default_category"`
	CacheTTLHours   int      `yaml:"cache_ttl_hours"`
	BatchSize       int      `yaml:"batch_size"`
	Concurrency     int      `yaml:"concurrency"`
	LocalKeywords   []string `yaml:"local_keywords"`
	LocalCategory   string   `yaml:"local_category"`
	LocalMinScore   int      `yaml:"local_min_score"`
}

type Sources struct {
	OPMLPath        string                `yaml:"opml_path"`
	Feeds           []Feed                `yaml:"feeds"`
	Blocked         []string              `yaml:"blocked"`
	BlockedKeywords []string              `yaml:"blocked_keywords"`
	Types           map[string]SourceType `yaml:"types"`
	Map             map[string]string     `yaml:"map"`
	Concurrency     int                   `yaml:"concurrency"`
	MaxPerFeed      int                   `yaml:"max_per_feed"`
}

type Feed struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	SiteURL string `yaml:"site_url"`
}

// SourceType describes how one class of outlet is treated: a signed score
// bias, a diversity cap, and a dedup priority rank (lower rank wins).
type SourceType struct {
	ScoreAdjustment int `yaml:"score_adjustment"`
	MaxPerSource    int `yaml:"max_per_source"`
	PriorityRank    int `yaml:"priority_rank"`
}

type Category struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Limits struct {
	LookbackHours        int  `yaml:"lookback_hours"`
	MaxPerSource         int  `yaml:"max_per_source"`
	LocalMaxPerSource    int  `yaml:"local_max_per_source"`
	MaxFeedSize          int  `yaml:"max_feed_size"`
	RetentionDays        int  `yaml:"retention_days"`
	LocalRetentionExempt bool `yaml:"local_retention_exempt"`
	ShownTTLDays         int  `yaml:"shown_ttl_days"`
}

type Fetch struct {
	Enabled        bool `yaml:"enabled"`
	MinDescription int  `yaml:"min_description"`
	MaxPerRun      int  `yaml:"max_per_run"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

type Images struct {
	Enabled        bool `yaml:"enabled"`
	MaxFetchPerRun int  `yaml:"max_fetch_per_run"`
	CacheTTLDays   int  `yaml:"cache_ttl_days"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

type Podcast struct {
	Themes            []Theme  `yaml:"themes"`
	MaxArticles       int      `yaml:"max_articles"`
	BonusCount        int      `yaml:"bonus_count"`
	MinScore          int      `yaml:"min_score"`
	BonusMinScore     int      `yaml:"bonus_min_score"`
	BonusPerCategory  int      `yaml:"bonus_per_category"`
	ContextCategory   string   `yaml:"context_category"`
	ContextKeywords   []string `yaml:"context_keywords"`
	ContextPenalty    int      `yaml:"context_penalty"`
	PoolDays          int      `yaml:"pool_days"`
	ShownTTLDays      int      `yaml:"shown_ttl_days"`
	ThemeCacheTTLDays int      `yaml:"theme_cache_ttl_days"`
}

// Theme is one day's podcast topic: which categories feed it and the
// prompt used to score thematic fit.
type Theme struct {
	Weekday    string   `yaml:"weekday"`
	Label      string   `yaml:"label"`
	Categories []string `yaml:"categories"`
	Prompt     string   `yaml:"prompt"`
}

type Discover struct {
	Candidates   []string `yaml:"candidates"`
	MinFeedScore int      `yaml:"min_feed_score"`
	SampleSize   int      `yaml:"sample_size"`
	CacheTTLDays int      `yaml:"cache_ttl_days"`
}

type Output struct {
	DataDir     string `yaml:"data_dir"`
	FeedURLBase string `yaml:"feed_url_base"`
	HomePageURL string `yaml:"home_page_url"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for super-rss-feed.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "super-rss-feed")
}

// DataDir returns the XDG data directory for super-rss-feed.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "super-rss-feed")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/super-rss-feed/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'super-rss-feed init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Oracle: Oracle{
			Provider:          "anthropic",
			Model:             "claude-3-5-haiku-latest",
			APIKeyEnv:         "ANTHROPIC_API_KEY",
			GeminiModel:       "gemini-2.0-flash",
			GeminiKeyEnv:      "GEMINI_API_KEY",
			MaxTokens:         1500,
			RequestsPerSecond: 0.5,
		},
		Scoring: Scoring{
			MinScore:        30,
			DefaultScore:    50,
			DefaultCategory: "news",
			CacheTTLHours:   6,
			BatchSize:       10,
			Concurrency:     3,
			LocalCategory:   "local",
			LocalMinScore:   80,
		},
		Sources: Sources{
			Types:       defaultSourceTypes(),
			Concurrency: 5,
			MaxPerFeed:  20,
		},
		Limits: Limits{
			LookbackHours:     48,
			MaxPerSource:      5,
			LocalMaxPerSource: 10,
			MaxFeedSize:       250,
			RetentionDays:     7,
			ShownTTLDays:      14,
		},
		Fetch: Fetch{
			Enabled:        true,
			MinDescription: 80,
			MaxPerRun:      10,
			TimeoutSeconds: 15,
		},
		Images: Images{
			Enabled:        true,
			MaxFetchPerRun: 20,
			CacheTTLDays:   30,
			TimeoutSeconds: 10,
		},
		Podcast: Podcast{
			MaxArticles:       8,
			BonusCount:        3,
			MinScore:          30,
			BonusMinScore:     70,
			BonusPerCategory:  1,
			ContextCategory:   "local",
			ContextPenalty:    25,
			PoolDays:          7,
			ShownTTLDays:      7,
			ThemeCacheTTLDays: 7,
		},
		Discover: Discover{
			MinFeedScore: 60,
			SampleSize:   3,
			CacheTTLDays: 30,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCategories()
	}
	if cfg.Sources.Map == nil {
		cfg.Sources.Map = map[string]string{}
	}

	return cfg, nil
}

func defaultSourceTypes() map[string]SourceType {
	return map[string]SourceType{
		"local-paper": {ScoreAdjustment: 10, MaxPerSource: 10, PriorityRank: 0},
		"local":       {ScoreAdjustment: 5, MaxPerSource: 8, PriorityRank: 1},
		"print":       {ScoreAdjustment: 3, MaxPerSource: 5, PriorityRank: 2},
		"wire":        {ScoreAdjustment: 0, MaxPerSource: 4, PriorityRank: 3},
		"broadcast":   {ScoreAdjustment: -5, MaxPerSource: 3, PriorityRank: 4},
	}
}

func defaultCategories() []Category {
	return []Category{
		{Name: "local", Title: "Local News", Description: "News from the local area"},
		{Name: "ai-tech", Title: "AI & Tech", Description: "AI and technology news"},
		{Name: "climate", Title: "Climate", Description: "Climate and environment news"},
		{Name: "homelab", Title: "Homelab", Description: "Self-hosting and home networking"},
		{Name: "science", Title: "Science", Description: "Science news"},
		{Name: "scifi", Title: "Sci-Fi", Description: "Science fiction news and culture"},
		{Name: "news", Title: "General News", Description: "Everything else worth reading"},
	}
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// CacheDir returns the directory holding the JSON cache files.
func (c *Config) CacheDir() string {
	return filepath.Join(c.GetDataDir(), "cache")
}

// FeedsDir returns the directory the output feeds are written to.
func (c *Config) FeedsDir() string {
	return filepath.Join(c.GetDataDir(), "feeds")
}

// HistoryDBPath returns the path of the run history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.GetDataDir(), "history.db")
}

// FeedLogPath returns the path of the generated markdown feed log.
func (c *Config) FeedLogPath() string {
	return filepath.Join(c.GetDataDir(), "feed-log.md")
}

// DiscoveryReportPath returns the path of the feed discovery report.
func (c *Config) DiscoveryReportPath() string {
	return filepath.Join(c.GetDataDir(), "discovery-report.md")
}

// DiscoveredOPMLPath returns the path of the accepted-candidates OPML file.
func (c *Config) DiscoveredOPMLPath() string {
	return filepath.Join(c.GetDataDir(), "discovered-feeds.opml")
}

// CategoryNames returns the configured category names in order.
func (c *Config) CategoryNames() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}

// HasCategory reports whether name is a configured category.
func (c *Config) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}

// SourceType looks up the type record for a source name via the source map.
func (c *Config) SourceType(sourceName string) (SourceType, bool) {
	typeName, ok := c.Sources.Map[sourceName]
	if !ok {
		return SourceType{}, false
	}
	st, ok := c.Sources.Types[typeName]
	return st, ok
}

// defaultPriorityRank is the rank of sources not present in the type map.
const defaultPriorityRank = 3

// PriorityRank returns the dedup priority rank for a source, lower wins.
func (c *Config) PriorityRank(sourceName string) int {
	if st, ok := c.SourceType(sourceName); ok {
		return st.PriorityRank
	}
	return defaultPriorityRank
}

// Validate checks the parts of the config a run cannot proceed without.
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown oracle provider %q (want anthropic or gemini)", c.Oracle.Provider)
	}

	if c.Scoring.BatchSize < 1 || c.Scoring.BatchSize > 10 {
		return fmt.Errorf("scoring batch_size %d out of range [1,10]", c.Scoring.BatchSize)
	}
	if c.Scoring.MinScore < 0 || c.Scoring.MinScore > 100 {
		return fmt.Errorf("scoring min_score %d out of range [0,100]", c.Scoring.MinScore)
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("no categories configured")
	}
	seen := map[string]bool{}
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
	}
	if !c.HasCategory(c.Scoring.DefaultCategory) {
		return fmt.Errorf("default_category %q is not a configured category", c.Scoring.DefaultCategory)
	}
	if len(c.Scoring.LocalKeywords) > 0 && !c.HasCategory(c.Scoring.LocalCategory) {
		return fmt.Errorf("local_category %q is not a configured category", c.Scoring.LocalCategory)
	}

	for name, typeName := range c.Sources.Map {
		if _, ok := c.Sources.Types[typeName]; !ok {
			return fmt.Errorf("source %q mapped to unknown type %q", name, typeName)
		}
	}

	for _, theme := range c.Podcast.Themes {
		if theme.Label == "" {
			return fmt.Errorf("podcast theme with empty label")
		}
		for _, cat := range theme.Categories {
			if !c.HasCategory(cat) {
				return fmt.Errorf("podcast theme %q references unknown category %q", theme.Label, cat)
			}
		}
	}

	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
