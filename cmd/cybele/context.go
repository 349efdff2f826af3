package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cybele/internal/config"
	"cybele/internal/logging"
	"cybele/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// outputDir resolves the snapshot directory, preferring an explicit flag
// value over the configuration.
func (c *commandContext) outputDir(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		dir, err := config.ExpandPath(flagValue)
		if err != nil {
			return "", fmt.Errorf("resolve output directory: %w", err)
		}
		return dir, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Monitor.OutputDir, nil
}

// readerStore opens the snapshot directory for a reader command. Readers log
// to stderr only.
func (c *commandContext) readerStore(flagValue string) (*store.Store, error) {
	dir, err := c.outputDir(flagValue)
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return store.New(dir, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
