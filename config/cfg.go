package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"stylepipe/common"
)

//go:embed config.yaml
var defaultConfig []byte

type (
	CompilerConfig struct {
		Kind    common.CompilerKind `yaml:"kind" validate:"enum"`
		Binary  string              `yaml:"binary"`
		Timeout time.Duration       `yaml:"timeout" validate:"gte=0"`
	}

	CompileConfig struct {
		OutputStyle    common.OutputStyle `yaml:"output_style" validate:"enum"`
		BannerWidth    int                `yaml:"banner_width" validate:"gte=0,lte=1000"`
		Libraries      []string           `yaml:"libraries" validate:"dive,required"`
		Workers        int                `yaml:"workers" validate:"gte=0"`
		Root           string             `yaml:"root"`
		MaxSearchDepth int                `yaml:"max_search_depth" validate:"gte=0"`
		MaxInlineSize  int64              `yaml:"max_inline_size" validate:"gte=0"`
		Compiler       CompilerConfig     `yaml:"compiler"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Compile   CompileConfig  `yaml:"compile"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

type enumValue interface {
	IsValid() bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report yaml names rather than struct field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		if e, ok := fl.Field().Interface().(enumValue); ok {
			return e.IsValid()
		}
		return false
	}); err != nil {
		panic(err)
	}
	return v
}

// sanitize normalizes paths and makes sure directories for output files exist.
func (cfg *Config) sanitize() error {
	for i, lib := range cfg.Compile.Libraries {
		// empty entries are left for validation to reject
		if len(lib) > 0 {
			cfg.Compile.Libraries[i] = filepath.Clean(lib)
		}
	}
	if len(cfg.Compile.Root) > 0 {
		cfg.Compile.Root = filepath.Clean(cfg.Compile.Root)
	}
	for _, p := range []*string{&cfg.Logging.FileLogger.Destination, &cfg.Reporting.Destination} {
		if len(*p) == 0 {
			continue
		}
		*p = filepath.Clean(*p)
		if err := os.MkdirAll(filepath.Dir(*p), 0755); err != nil {
			return fmt.Errorf("unable to create directory for '%s': %w", *p, err)
		}
	}
	return nil
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := cfg.sanitize(); err != nil {
			return nil, err
		}
		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("configuration is not valid: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of embedded defaults and performs
// validation.
func LoadConfiguration(path string) (*Config, error) {
	haveFile := len(path) > 0

	cfg, err := unmarshalConfig(defaultConfig, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns default embedded configuration.
func Prepare() ([]byte, error) {
	return bytes.Clone(defaultConfig), nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
