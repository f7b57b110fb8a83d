package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownKey is returned for a dot-notation key that names no setting.
var ErrUnknownKey = errors.New("unknown config key")

type field struct {
	Key    string
	Secret bool
	get    func(*Config) any
	set    func(*Config, string) error
}

var fields = []field{
	strField("workspace.input_root", func(c *Config) *string { return &c.Workspace.InputRoot }),
	strField("workspace.output_root", func(c *Config) *string { return &c.Workspace.OutputRoot }),
	boolField("run_id.unique_suffix", func(c *Config) *bool { return &c.RunID.UniqueSuffix }),
	strField("esmfold.endpoint", func(c *Config) *string { return &c.ESMFold.Endpoint }),
	secretField("esmfold.api_key", func(c *Config) *string { return &c.ESMFold.APIKey }),
	durField("esmfold.timeout", func(c *Config) *time.Duration { return &c.ESMFold.Timeout }),
	strField("boltz.executable", func(c *Config) *string { return &c.Boltz.Executable }),
	intField("boltz.devices", func(c *Config) *int { return &c.Boltz.Devices }),
	strField("boltz.output_format", func(c *Config) *string { return &c.Boltz.OutputFormat }),
	boolField("boltz.use_msa_server", func(c *Config) *bool { return &c.Boltz.UseMSAServer }),
	strField("boltz.success_marker", func(c *Config) *string { return &c.Boltz.SuccessMarker }),
	durField("boltz.timeout", func(c *Config) *time.Duration { return &c.Boltz.Timeout }),
	strField("oracle.provider", func(c *Config) *string { return &c.Oracle.Provider }),
	strField("oracle.model", func(c *Config) *string { return &c.Oracle.Model }),
	listField("oracle.static_models", func(c *Config) *[]string { return &c.Oracle.StaticModels }),
	strField("oracle.aws_region", func(c *Config) *string { return &c.Oracle.AWSRegion }),
	strField("oracle.aws_profile", func(c *Config) *string { return &c.Oracle.AWSProfile }),
	durField("oracle.timeout", func(c *Config) *time.Duration { return &c.Oracle.Timeout }),
	secretField("anthropic.api_key", func(c *Config) *string { return &c.Anthropic.APIKey }),
	strField("anthropic.base_url", func(c *Config) *string { return &c.Anthropic.BaseURL }),
	secretField("openai.api_key", func(c *Config) *string { return &c.OpenAI.APIKey }),
	strField("openai.base_url", func(c *Config) *string { return &c.OpenAI.BaseURL }),
	boolField("selection.drop_unknown", func(c *Config) *bool { return &c.Selection.DropUnknown }),
	strField("selection.approval", func(c *Config) *string { return &c.Selection.Approval }),
	durField("selection.approval_timeout", func(c *Config) *time.Duration { return &c.Selection.ApprovalTimeout }),
	strField("log.level", func(c *Config) *string { return &c.Log.Level }),
	strField("log.format", func(c *Config) *string { return &c.Log.Format }),
	strField("log.file", func(c *Config) *string { return &c.Log.File }),
	strField("state.path", func(c *Config) *string { return &c.State.Path }),
	strField("metrics.addr", func(c *Config) *string { return &c.Metrics.Addr }),
}

// Keys returns every settable dot-notation key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys
}

// IsSecret reports whether key holds a credential that should be masked
// when displayed.
func IsSecret(key string) bool {
	f, ok := lookup(key)
	return ok && f.Secret
}

// GetValue returns the string form of the setting named by key.
func (c *Config) GetValue(key string) (string, error) {
	f, ok := lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	switch v := f.get(c).(type) {
	case []string:
		return strings.Join(v, ","), nil
	case time.Duration:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// SetValue parses value and assigns it to the setting named by key.
func (c *Config) SetValue(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func lookup(key string) (field, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return field{}, false
}

func strField(key string, p func(*Config) *string) field {
	return field{
		Key: key,
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error { *p(c) = s; return nil },
	}
}

func secretField(key string, p func(*Config) *string) field {
	f := strField(key, p)
	f.Secret = true
	return f
}

func boolField(key string, p func(*Config) *bool) field {
	return field{
		Key: key,
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
	}
}

func intField(key string, p func(*Config) *int) field {
	return field{
		Key: key,
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func durField(key string, p func(*Config) *time.Duration) field {
	return field{
		Key: key,
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			d, err := time.ParseDuration(s)
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

func listField(key string, p func(*Config) *[]string) field {
	return field{
		Key: key,
		get: func(c *Config) any { return append([]string{}, (*p(c))...) },
		set: func(c *Config, s string) error {
			list := []string{}
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					list = append(list, part)
				}
			}
			*p(c) = list
			return nil
		},
	}
}
