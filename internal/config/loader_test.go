package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/jackcount/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.4)
				convey.So(cfg.CadenceUnit, convey.ShouldEqual, config.CadencePerSecond)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("JACKCOUNT_ADDR", ":8080")
			_ = os.Setenv("JACKCOUNT_QUEUE_SIZE", "500")
			_ = os.Setenv("JACKCOUNT_WORKER_COUNT", "3")
			_ = os.Setenv("JACKCOUNT_CONFIDENCE_THRESHOLD", "0.3")
			_ = os.Setenv("JACKCOUNT_LEG_RATIO_UP", "1.6")
			_ = os.Setenv("JACKCOUNT_CADENCE_UNIT", "per_minute")
			_ = os.Setenv("JACKCOUNT_NATS_URL", "nats://127.0.0.1:4222")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.3)
				convey.So(cfg.LegRatioUp, convey.ShouldEqual, 1.6)
				convey.So(cfg.LegRatioDown, convey.ShouldEqual, 1.2)
				convey.So(cfg.CadenceUnit, convey.ShouldEqual, config.CadencePerMinute)
				convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://127.0.0.1:4222")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 2000
confidence_threshold: 0.3
leg_ratio_up: 1.7
leg_ratio_down: 1.1
log_format: json
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("JACKCOUNT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 2000)
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.3)
				convey.So(cfg.LegRatioUp, convey.ShouldEqual, 1.7)
				convey.So(cfg.LegRatioDown, convey.ShouldEqual, 1.1)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.MinHipWidth, convey.ShouldEqual, 1e-6)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
leg_ratio_up: 1.7
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("JACKCOUNT_CONFIG", tmpFile)
			_ = os.Setenv("JACKCOUNT_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LegRatioUp, convey.ShouldEqual, 1.7)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("JACKCOUNT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("JACKCOUNT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("JACKCOUNT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When thresholds are inverted through env", func() {
			_ = os.Setenv("JACKCOUNT_LEG_RATIO_UP", "1.0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects them", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("JACKCOUNT_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"JACKCOUNT_CONFIG",
		"JACKCOUNT_ADDR",
		"JACKCOUNT_QUEUE_SIZE",
		"JACKCOUNT_WORKER_COUNT",
		"JACKCOUNT_CONFIDENCE_THRESHOLD",
		"JACKCOUNT_LEG_RATIO_UP",
		"JACKCOUNT_CADENCE_UNIT",
		"JACKCOUNT_NATS_URL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "jackcount-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
