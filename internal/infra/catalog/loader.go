package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"gqlmcpd/internal/domain"
)

// Catalog is the full runtime configuration: synthesis and execution
// settings plus the endpoints to register at startup.
type Catalog struct {
	Runtime   RuntimeConfig
	Endpoints []domain.EndpointInfo
}

type RuntimeConfig struct {
	MaxDepth              int
	IncludeAllScalars     bool
	RequestTimeoutSeconds int
	BatchTimeoutSeconds   int
	BatchConcurrency      int
	BootstrapConcurrency  int
	Observability         ObservabilityConfig
}

type ObservabilityConfig struct {
	ListenAddress string
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newCatalogViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setCatalogDefaults(v)
	return v
}

func setCatalogDefaults(v *viper.Viper) {
	v.SetDefault("maxDepth", domain.DefaultMaxDepth)
	v.SetDefault("includeAllScalars", true)
	v.SetDefault("requestTimeoutSeconds", domain.DefaultRequestTimeoutSeconds)
	v.SetDefault("batchTimeoutSeconds", domain.DefaultBatchTimeoutSeconds)
	v.SetDefault("batchConcurrency", domain.DefaultBatchConcurrency)
	v.SetDefault("bootstrapConcurrency", domain.DefaultBootstrapConcurrency)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
}

// rawEndpointList is decoded with yaml.v3 rather than viper: viper
// lowercases every map key, which would mangle header names like
// Authorization before they reach the wire.
type rawEndpointList struct {
	Endpoints []rawEndpoint `yaml:"endpoints"`
}

type rawEndpoint struct {
	Name           string            `yaml:"name"`
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	AllowMutations bool              `yaml:"allowMutations"`
	ToolPrefix     string            `yaml:"toolPrefix"`
}

type rawRuntimeConfig struct {
	MaxDepth              int                    `mapstructure:"maxDepth"`
	IncludeAllScalars     bool                   `mapstructure:"includeAllScalars"`
	RequestTimeoutSeconds int                    `mapstructure:"requestTimeoutSeconds"`
	BatchTimeoutSeconds   int                    `mapstructure:"batchTimeoutSeconds"`
	BatchConcurrency      int                    `mapstructure:"batchConcurrency"`
	BootstrapConcurrency  int                    `mapstructure:"bootstrapConcurrency"`
	Observability         rawObservabilityConfig `mapstructure:"observability"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

var endpointNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Default returns the catalog used when no config file is given: runtime
// defaults and no preconfigured endpoints.
func Default() Catalog {
	return Catalog{
		Runtime: RuntimeConfig{
			MaxDepth:              domain.DefaultMaxDepth,
			IncludeAllScalars:     true,
			RequestTimeoutSeconds: domain.DefaultRequestTimeoutSeconds,
			BatchTimeoutSeconds:   domain.DefaultBatchTimeoutSeconds,
			BatchConcurrency:      domain.DefaultBatchConcurrency,
			BootstrapConcurrency:  domain.DefaultBootstrapConcurrency,
			Observability: ObservabilityConfig{
				ListenAddress: domain.DefaultObservabilityListenAddress,
			},
		},
	}
}

func (l *Loader) Load(ctx context.Context, path string) (Catalog, error) {
	if path == "" {
		return Catalog{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing := expandConfigEnv(string(data))
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config",
			zap.String("path", path),
			zap.Strings("missing", missing))
	}

	catalog, err := l.parse(expanded)
	if err != nil {
		return Catalog{}, err
	}
	return catalog, ctx.Err()
}

func (l *Loader) parse(expanded string) (Catalog, error) {
	v := newCatalogViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return Catalog{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg rawRuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Catalog{}, fmt.Errorf("decode config: %w", err)
	}

	var list rawEndpointList
	if err := yaml.Unmarshal([]byte(expanded), &list); err != nil {
		return Catalog{}, fmt.Errorf("decode endpoints: %w", err)
	}

	var validationErrors []string
	runtime, runtimeErrs := normalizeRuntimeConfig(cfg)
	validationErrors = append(validationErrors, runtimeErrs...)

	endpoints := make([]domain.EndpointInfo, 0, len(list.Endpoints))
	nameSeen := make(map[string]struct{})
	for i, raw := range list.Endpoints {
		if _, exists := nameSeen[raw.Name]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("endpoints[%d]: duplicate name %q", i, raw.Name))
			continue
		}
		if raw.Name != "" {
			nameSeen[raw.Name] = struct{}{}
		}
		if errs := validateEndpoint(raw, i); len(errs) > 0 {
			validationErrors = append(validationErrors, errs...)
			continue
		}
		endpoints = append(endpoints, domain.EndpointInfo{
			Name:           raw.Name,
			URL:            raw.URL,
			Headers:        raw.Headers,
			AllowMutations: raw.AllowMutations,
			ToolPrefix:     raw.ToolPrefix,
		})
	}

	if len(validationErrors) > 0 {
		return Catalog{}, errors.New(strings.Join(validationErrors, "; "))
	}

	return Catalog{Runtime: runtime, Endpoints: endpoints}, nil
}

func normalizeRuntimeConfig(raw rawRuntimeConfig) (RuntimeConfig, []string) {
	var errs []string
	if raw.MaxDepth < 0 {
		errs = append(errs, "maxDepth must be >= 0")
	}
	if raw.RequestTimeoutSeconds <= 0 {
		errs = append(errs, "requestTimeoutSeconds must be > 0")
	}
	if raw.BatchTimeoutSeconds <= 0 {
		errs = append(errs, "batchTimeoutSeconds must be > 0")
	}
	if raw.BatchConcurrency <= 0 {
		errs = append(errs, "batchConcurrency must be > 0")
	}
	if raw.BootstrapConcurrency <= 0 {
		errs = append(errs, "bootstrapConcurrency must be > 0")
	}
	return RuntimeConfig{
		MaxDepth:              raw.MaxDepth,
		IncludeAllScalars:     raw.IncludeAllScalars,
		RequestTimeoutSeconds: raw.RequestTimeoutSeconds,
		BatchTimeoutSeconds:   raw.BatchTimeoutSeconds,
		BatchConcurrency:      raw.BatchConcurrency,
		BootstrapConcurrency:  raw.BootstrapConcurrency,
		Observability: ObservabilityConfig{
			ListenAddress: raw.Observability.ListenAddress,
		},
	}, errs
}

func validateEndpoint(raw rawEndpoint, index int) []string {
	var errs []string
	if raw.Name == "" {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: name is required", index))
	} else if !endpointNamePattern.MatchString(raw.Name) {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: invalid name %q", index, raw.Name))
	}
	if raw.URL == "" {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: url is required", index))
	} else if parsed, err := url.ParseRequestURI(raw.URL); err != nil {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: invalid url: %v", index, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: url scheme must be http or https", index))
	}
	for key := range raw.Headers {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d]: headers contain empty key", index))
		}
	}
	return errs
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandConfigEnv substitutes ${VAR} references so secrets like auth
// headers can stay out of the config file. Unset variables expand to the
// empty string and are reported.
func expandConfigEnv(data string) (string, []string) {
	var missing []string
	expanded := envPattern.ReplaceAllStringFunc(data, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ""
		}
		return value
	})
	return expanded, missing
}
