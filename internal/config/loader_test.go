package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/mlscore/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr(), convey.ShouldEqual, "0.0.0.0:5000")
				convey.So(cfg.Model, convey.ShouldEqual, "identity")
			})
		})

		convey.Convey("When loading config with prefixed environment variables", func() {
			_ = os.Setenv("MLSCORE_HOST", "127.0.0.1")
			_ = os.Setenv("MLSCORE_PORT", "8080")
			_ = os.Setenv("MLSCORE_MAX_FEATURES", "16")
			_ = os.Setenv("MLSCORE_SCORING_LATENCY_MS", "25")
			_ = os.Setenv("MLSCORE_METRICS_ENABLED", "false")
			_ = os.Setenv("MLSCORE_LOG_FORMAT", "json")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr(), convey.ShouldEqual, "127.0.0.1:8080")
				convey.So(cfg.MaxFeatures, convey.ShouldEqual, 16)
				convey.So(cfg.ScoringLatencyMS, convey.ShouldEqual, 25)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with bare PORT and HOST", func() {
			_ = os.Setenv("PORT", "7000")
			_ = os.Setenv("HOST", "10.0.0.1")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they should be honoured", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 7000)
				convey.So(cfg.Host, convey.ShouldEqual, "10.0.0.1")
			})

			convey.Convey("And prefixed variables should win over them", func() {
				_ = os.Setenv("MLSCORE_PORT", "9000")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 9000)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempFile(t, "mlscore-config-*.yaml", `
# comment
port: 6000
max_body_bytes: 2048
model: identity
docs_enabled: false
`)
			_ = os.Setenv("MLSCORE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 6000)
				convey.So(cfg.MaxBodyBytes, convey.ShouldEqual, int64(2048))
				convey.So(cfg.DocsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.Host, convey.ShouldEqual, "0.0.0.0")
			})

			convey.Convey("And environment variables should override file values", func() {
				_ = os.Setenv("MLSCORE_PORT", "6001")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 6001)
				convey.So(cfg.MaxBodyBytes, convey.ShouldEqual, int64(2048))
			})
		})

		convey.Convey("When loading config with a dotenv file", func() {
			tmpFile := createTempFile(t, "mlscore-*.env", "MLSCORE_PORT=5100\nMLSCORE_LOG_LEVEL=debug\n")
			_ = os.Setenv("MLSCORE_ENV_FILE", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its variables should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 5100)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with a missing dotenv file", func() {
			_ = os.Setenv("MLSCORE_ENV_FILE", "/non/existent/.env")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempFile(t, "mlscore-config-*.yaml", `invalid: yaml: content: [`)
			_ = os.Setenv("MLSCORE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MLSCORE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid numeric value", func() {
			_ = os.Setenv("MLSCORE_PORT", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a Kubernetes Service link shares the prefix", func() {
			_ = os.Setenv("MLSCORE_PORT", "tcp://10.96.0.12:5000")
			_ = os.Setenv("MLSCORE_PORT_5000_TCP", "tcp://10.96.0.12:5000")
			_ = os.Setenv("MLSCORE_PORT_5000_TCP_PORT", "5000")
			_ = os.Setenv("MLSCORE_SERVICE_HOST", "10.96.0.12")
			_ = os.Setenv("MLSCORE_SERVICE_PORT", "5000")
			_ = os.Setenv("PORT", "tcp://10.96.0.13:80")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the link values should be ignored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, config.DefaultPort)
				convey.So(cfg.Addr(), convey.ShouldEqual, "0.0.0.0:5000")
			})
		})

		convey.Convey("When loading config with an out-of-range port", func() {
			_ = os.Setenv("MLSCORE_PORT", "99999")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "port must be between")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MLSCORE_CONFIG",
		"MLSCORE_ENV_FILE",
		"MLSCORE_HOST",
		"MLSCORE_PORT",
		"MLSCORE_LOG_LEVEL",
		"MLSCORE_LOG_FORMAT",
		"MLSCORE_MAX_FEATURES",
		"MLSCORE_SCORING_LATENCY_MS",
		"MLSCORE_METRICS_ENABLED",
		"MLSCORE_PORT_5000_TCP",
		"MLSCORE_PORT_5000_TCP_PORT",
		"MLSCORE_SERVICE_HOST",
		"MLSCORE_SERVICE_PORT",
		"PORT",
		"HOST",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempFile(t *testing.T, pattern, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpFile.Name()
}
