package model

import "time"

// Config is the complete wikiclaim configuration
type Config struct {
	Wikibase    WikibaseConfig    `yaml:"wikibase" mapstructure:"wikibase"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth"`
	Publish     PublishConfig     `yaml:"publish" mapstructure:"publish"`
	Assembly    AssemblyConfig    `yaml:"assembly" mapstructure:"assembly"`
	Authority   AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// WikibaseConfig describes the Action API endpoints and request defaults
type WikibaseConfig struct {
	Target        string        `yaml:"target" mapstructure:"target"` // test or production
	TestAPIURL    string        `yaml:"test_api_url" mapstructure:"test_api_url"`
	ProdAPIURL    string        `yaml:"production_api_url" mapstructure:"production_api_url"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Summary       string        `yaml:"summary" mapstructure:"summary"` // Edit summary
	Bot           bool          `yaml:"bot" mapstructure:"bot"`
	MaxLag        int           `yaml:"maxlag" mapstructure:"maxlag"` // Seconds, 0 disables
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"` // Comma-separated, added to NO_PROXY
	TokenCacheTTL time.Duration `yaml:"token_cache_ttl" mapstructure:"token_cache_ttl"`
}

// APIURL returns the api.php endpoint for a target
func (c WikibaseConfig) APIURL(t Target) string {
	if t == TargetProduction {
		return c.ProdAPIURL
	}
	return c.TestAPIURL
}

// AuthConfig holds bot password credentials.
// Prefer WIKICLAIM_BOT_USER / WIKICLAIM_BOT_PASSWORD over the config file.
type AuthConfig struct {
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
}

// PublishConfig controls the retry policy around the Action API call
type PublishConfig struct {
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
}

// AssemblyConfig tunes entity assembly
type AssemblyConfig struct {
	Language            string `yaml:"language" mapstructure:"language"`
	InstanceOf          string `yaml:"instance_of" mapstructure:"instance_of"` // QID for P31
	LegacyStreetAddress bool   `yaml:"legacy_street_address" mapstructure:"legacy_street_address"`
	Placeholder         string `yaml:"placeholder_label" mapstructure:"placeholder_label"`
}

// AuthorityConfig classifies reference hosts into authority tiers
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	SelfPublished    []string          `yaml:"self_published_domains" mapstructure:"self_published_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// StoreConfig locates the status database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Wikibase: WikibaseConfig{
			Target:        string(TargetTest),
			TestAPIURL:    "https://test.wikidata.org/w/api.php",
			ProdAPIURL:    "https://www.wikidata.org/w/api.php",
			UserAgent:     "wikiclaim/0.1 (+https://github.com/ppiankov/wikiclaim)",
			Timeout:       30 * time.Second,
			Summary:       "Created business item from verified website data",
			Bot:           true,
			MaxLag:        5,
			TokenCacheTTL: 30 * time.Minute,
		},
		Publish: PublishConfig{
			MaxRetries:        1,
			BackoffBase:       2 * time.Second,
			RequestsPerSecond: 0.2,
			BurstSize:         1,
		},
		Assembly: AssemblyConfig{
			Language:   "en",
			InstanceOf: "Q4830453",
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"sec.gov", "companieshouse.gov.uk", "find-and-update.company-information.service.gov.uk",
				"opencorporates.com", "gleif.org",
			},
			SecondaryDomains: []string{
				"nytimes.com", "wsj.com", "reuters.com", "bloomberg.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "theguardian.com", "forbes.com", "ft.com",
				"sfchronicle.com", "latimes.com", "washingtonpost.com", "techcrunch.com",
			},
			SelfPublished: []string{
				"facebook.com", "twitter.com", "x.com", "instagram.com", "linkedin.com",
				"yelp.com", "tripadvisor.com", "google.com", "medium.com", "wordpress.com",
				"blogspot.com", "prnewswire.com", "businesswire.com",
			},
		},
		Store: StoreConfig{
			Path: "wikiclaim.db",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
