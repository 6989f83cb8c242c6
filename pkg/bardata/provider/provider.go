// Package provider implements remote bar sources behind the bardata.Store
// interface. Providers fetch historical aggregates over REST only; streaming
// endpoints are out of scope.
package provider

import (
	"github.com/go-playground/validator/v10"

	"github.com/quantatrix/backlab/pkg/bardata"
	"github.com/quantatrix/backlab/pkg/errors"
)

// Type identifies a market data provider.
type Type string

const (
	TypePolygon Type = "polygon"
	TypeAlpaca  Type = "alpaca"
	TypeBinance Type = "binance"
)

// Provider is a remote bar source. It satisfies bardata.Store so it can be
// wrapped directly by bardata.CachedStore.
type Provider interface {
	bardata.Store
	// Name returns the provider identifier.
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Type            Type   `yaml:"type" validate:"required,oneof=polygon alpaca binance"`
	PolygonAPIKey   string `yaml:"polygon_api_key" validate:"required_if=Type polygon"`
	AlpacaAPIKey    string `yaml:"alpaca_api_key" validate:"required_if=Type alpaca"`
	AlpacaAPISecret string `yaml:"alpaca_api_secret" validate:"required_if=Type alpaca"`
}

// New creates the provider described by config.
func New(config Config) (Provider, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid provider configuration", err)
	}

	switch config.Type {
	case TypePolygon:
		return NewPolygonProvider(config.PolygonAPIKey)
	case TypeAlpaca:
		return NewAlpacaProvider(config.AlpacaAPIKey, config.AlpacaAPISecret), nil
	case TypeBinance:
		return NewBinanceProvider(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeProviderNotFound, "unsupported provider type: %s", config.Type)
	}
}
