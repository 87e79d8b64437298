// Package commands implements the inat CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/fieldnotes-io/inat/pkg/inatclient"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Output format constants.
const (
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
	OutputFormatTable = "table"
)

// CreateClient builds an API client from the resolved CLI configuration.
func CreateClient() (inat.Client, error) {
	config := &inat.Config{
		APIEndpoint: viper.GetString("api"),
		APIToken:    viper.GetString("token"),
		DryRun:      viper.GetBool("dry-run"),
		Debug:       viper.GetBool("verbose"),
	}

	logger, err := createLogger()
	if err != nil {
		return nil, err
	}

	config.Logger = logger

	cli, err := inatclient.New(config)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	return cli, nil
}

// createLogger builds the zap-backed logger for client internals. Verbose
// mode enables debug-level development output on stderr.
func createLogger() (inat.Logger, error) {
	var (
		zl  *zap.Logger
		err error
	)

	if viper.GetBool("verbose") {
		zl, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		zl, err = cfg.Build()
	}

	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &zapLogger{logger: zl}, nil
}

// zapLogger adapts zap to the inat.Logger interface.
type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, zapFields(fields)...)
}

func zapFields(fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}

	return zf
}

// renderStructured writes data as JSON or YAML to stdout. Returns false when
// the configured output format is not a structured one, so callers can fall
// through to table rendering.
func renderStructured(data interface{}) (bool, error) {
	switch viper.GetString("output") {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(data); err != nil {
			return true, fmt.Errorf("encoding JSON: %w", err)
		}

		return true, nil
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		defer func() { _ = encoder.Close() }()

		if err := encoder.Encode(data); err != nil {
			return true, fmt.Errorf("encoding YAML: %w", err)
		}

		return true, nil
	default:
		return false, nil
	}
}
