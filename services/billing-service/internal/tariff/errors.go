// services/billing-service/internal/tariff/errors.go
package tariff

import "errors"

var (
	// ErrInvalidConfiguration covers malformed or incomplete rate structures.
	ErrInvalidConfiguration = errors.New("invalid tariff configuration")

	// ErrInvalidTariff covers tariff attributes outside the configuration (name, dates, service).
	ErrInvalidTariff = errors.New("invalid tariff")

	ErrTariffNotFound = errors.New("tariff not found")

	// ErrCurrencyMismatch is returned when tariffs billed together disagree on currency.
	ErrCurrencyMismatch = errors.New("tariff currencies do not match")
)

// ConfigurationError carries the reason a configuration was rejected.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid tariff configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

func configErr(reason string) error {
	return &ConfigurationError{Reason: reason}
}
