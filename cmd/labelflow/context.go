package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/siqueiraa/labelflow/pkg/config"
	"github.com/siqueiraa/labelflow/pkg/pipeline"
)

type commandContext struct {
	configFlag   string
	pipelineFlag string
	pipelinesDir string
	repoFlag     string
	rootFlag     string

	config *config.AppConfig
}

// ensureConfig loads the config file once and applies flag overrides.
func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	if c.config != nil {
		return c.config, nil
	}
	cfg, err := config.Load(strings.TrimSpace(c.configFlag))
	if err != nil {
		return nil, err
	}
	if c.repoFlag != "" {
		cfg.Dataset.RepoID = c.repoFlag
	}
	if c.rootFlag != "" {
		cfg.Dataset.Root = c.rootFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	c.config = &cfg
	return c.config, nil
}

// resolvePipeline picks the pipeline named by --pipeline: an existing file,
// a name found in --pipelines, or the built-in preset.
func (c *commandContext) resolvePipeline(cfg *config.AppConfig) (pipeline.Pipeline, error) {
	name := strings.TrimSpace(c.pipelineFlag)
	if name != "" {
		if _, err := os.Stat(name); err == nil {
			return pipeline.LoadFromFile(name)
		}
	}
	if c.pipelinesDir != "" {
		pipelines, err := pipeline.LoadDir(c.pipelinesDir)
		if err != nil {
			return pipeline.Pipeline{}, err
		}
		if name == "" && len(pipelines) == 1 {
			return pipelines[0], nil
		}
		if p, ok := pipeline.Find(pipelines, name); ok {
			return p, nil
		}
	}
	if name == "" || name == pipeline.DefaultPresetName {
		stateKey := pipeline.DefaultStateKey
		if cfg != nil && cfg.Dataset.StatePrefix != "" {
			stateKey = cfg.Dataset.StatePrefix
		}
		return pipeline.DefaultPresetFor(stateKey), nil
	}
	return pipeline.Pipeline{}, fmt.Errorf("pipeline %q not found", name)
}
