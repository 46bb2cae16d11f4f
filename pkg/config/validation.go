package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and the rules that span several sections.
// Log levels are accepted in either case; ApplyDefaults normalizes them.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == StoreNFS3 {
		if cfg.Server.Host == "" {
			return fmt.Errorf("server.host: required when store.type is %q", StoreNFS3)
		}
		if cfg.Server.Export == "" {
			return fmt.Errorf("server.export: required when store.type is %q", StoreNFS3)
		}
	}

	if cfg.Stream.SplitBits < cfg.Stream.BlockBits {
		return fmt.Errorf("stream.split_bits: %d is smaller than block_bits %d", cfg.Stream.SplitBits, cfg.Stream.BlockBits)
	}

	if cfg.Transport.RateBurst > 0 && cfg.Transport.RateLimit == 0 {
		return errors.New("transport.rate_burst: set without rate_limit")
	}

	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
