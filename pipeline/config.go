// Package pipeline wires ingestion, preprocessing, model selection and
// persistence into the train and predict runs of studentperf.
package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/studentperf/artifact"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/selection"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
)

// Config describes one project layout. Paths are relative to the working
// directory; artifact keys are relative to ArtifactsDir.
type Config struct {
	// DataPath is the raw dataset. Ingestion splits it into TrainPath and TestPath.
	DataPath  string  `yaml:"data_path"`
	TrainPath string  `yaml:"train_path" validate:"required"`
	TestPath  string  `yaml:"test_path" validate:"required"`
	TestSize  float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	Seed      uint64  `yaml:"seed"`

	ArtifactsDir    string `yaml:"artifacts_dir" validate:"required"`
	PreprocessorKey string `yaml:"preprocessor_key" validate:"required"`
	ModelKey        string `yaml:"model_key" validate:"required"`
	Store           string `yaml:"store" validate:"oneof=file badger"`
	LogDir          string `yaml:"log_dir"`

	Target      string   `yaml:"target" validate:"required"`
	Numeric     []string `yaml:"numeric" validate:"dive,required"`
	Categorical []string `yaml:"categorical" validate:"dive,required"`
	Scaling     string   `yaml:"scaling" validate:"oneof=standard minmax"`

	// Registry is an optional candidate file; empty uses selection.DefaultRegistry.
	Registry           string `yaml:"registry"`
	NJobs              int    `yaml:"n_jobs" validate:"gte=0"`
	ParallelCandidates int    `yaml:"parallel_candidates" validate:"gte=0"`
	SkipFailed         bool   `yaml:"skip_failed"`
}

// DefaultConfig mirrors the artifacts/ layout of the original project.
func DefaultConfig() Config {
	return Config{
		DataPath:        filepath.Join("notebook", "data", "stud.csv"),
		TrainPath:       filepath.Join("artifacts", "train.csv"),
		TestPath:        filepath.Join("artifacts", "test.csv"),
		TestSize:        0.2,
		Seed:            42,
		ArtifactsDir:    "artifacts",
		PreprocessorKey: "preprocessor.gob",
		ModelKey:        "model.gob",
		Store:           StoreFile,
		LogDir:          "logs",
		Target:          "math_score",
		Numeric:         []string{"writing_score", "reading_score"},
		Categorical: []string{
			"gender",
			"race_ethnicity",
			"parental_level_of_education",
			"lunch",
			"test_preparation_course",
		},
		Scaling:            "standard",
		NJobs:              0,
		ParallelCandidates: 1,
	}
}

var configValidate = validator.New()

// Validate checks field constraints and that the target is not also a feature.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return errors.NewValidationError("config", err.Error(), nil)
	}
	if len(c.Numeric)+len(c.Categorical) == 0 {
		return errors.NewValidationError("config", "at least one feature column is required", nil)
	}
	seen := map[string]bool{c.Target: true}
	for _, name := range append(append([]string(nil), c.Numeric...), c.Categorical...) {
		if seen[name] {
			return errors.NewValidationError("columns", "column listed twice or equal to the target", name)
		}
		seen[name] = true
	}
	return nil
}

// LoadConfig overlays YAML from r onto DefaultConfig and validates the result.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parse config yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a config file. An empty path returns DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	return LoadConfig(f)
}

// OpenStore opens the artifact store selected by the config.
func (c Config) OpenStore(logger log.Logger) (artifact.Store, error) {
	switch c.Store {
	case StoreFile, "":
		return artifact.NewFileStore(c.ArtifactsDir), nil
	case StoreBadger:
		return artifact.OpenBadgerStore(artifact.BadgerConfig{
			Path:       filepath.Join(c.ArtifactsDir, "badger"),
			SyncWrites: true,
			Logger:     logger,
		})
	}
	return nil, errors.NewValidationError("store", "must be file or badger", c.Store)
}

// LoadRegistry returns the registry named by the config.
func (c Config) LoadRegistry() (*selection.Registry, error) {
	if c.Registry == "" {
		return selection.DefaultRegistry(), nil
	}
	f, err := os.Open(c.Registry)
	if err != nil {
		return nil, errors.Wrapf(err, "open registry %s", c.Registry)
	}
	defer f.Close()
	return selection.LoadRegistry(f)
}
