package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

type jsoncConfig struct {
	Redis   *jsoncRedis  `json:"redis"`
	Socket  *jsoncSocket `json:"socket"`
	Health  *jsoncListen `json:"health"`
	Metrics *jsoncListen `json:"metrics"`
	Log     *jsoncLog    `json:"log"`
}

type jsoncRedis struct {
	URL              *string `json:"url"`
	HealthIntervalMS *int    `json:"health_interval_ms"`
	PingTimeoutMS    *int    `json:"ping_timeout_ms"`
}

type jsoncSocket struct {
	Path *string `json:"path"`
}

type jsoncListen struct {
	Listen *string `json:"listen"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

// Parse reads JSONC configuration content on top of base and validates the result.
// Comments and trailing commas are allowed; unknown keys are rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized := string(jsonc.ToJSON([]byte(content)))

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if r := payload.Redis; r != nil {
		if r.URL != nil {
			cfg.Redis.URL = strings.TrimSpace(*r.URL)
		}
		if r.HealthIntervalMS != nil {
			cfg.Redis.HealthIntervalMS = *r.HealthIntervalMS
		}
		if r.PingTimeoutMS != nil {
			cfg.Redis.PingTimeoutMS = *r.PingTimeoutMS
		}
	}
	if payload.Socket != nil && payload.Socket.Path != nil {
		cfg.Socket.Path = strings.TrimSpace(*payload.Socket.Path)
	}
	if payload.Health != nil && payload.Health.Listen != nil {
		cfg.Health.Listen = strings.TrimSpace(*payload.Health.Listen)
	}
	if payload.Metrics != nil && payload.Metrics.Listen != nil {
		cfg.Metrics.Listen = strings.TrimSpace(*payload.Metrics.Listen)
	}
	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

// offsetToLineCol maps a decoder offset to a 1-based position. jsonc.ToJSON
// blanks comments in place, so offsets still match the original file.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
