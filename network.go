package flyapi

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultTimeout applies when NetworkConfig.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// NetworkConfig describes where the API lives and how to talk to it.
type NetworkConfig struct {
	SSL     bool              `json:"ssl" yaml:"ssl" mapstructure:"ssl"`
	Domain  string            `json:"domain" yaml:"domain" mapstructure:"domain" validate:"required,host"`
	Port    int               `json:"port" yaml:"port" mapstructure:"port" validate:"required,min=1,max=65535"`
	WSPort  int               `json:"wsPort,omitempty" yaml:"wsPort,omitempty" mapstructure:"wsPort" validate:"omitempty,min=1,max=65535"`
	Prefix  string            `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	// Timeout in milliseconds.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout" validate:"min=0"`
}

// DefaultNetworkConfig is used by ConfigureApis when no config is given.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		SSL:     false,
		Domain:  "localhost",
		Port:    80,
		Prefix:  "api/v1",
		Headers: map[string]string{"Content-Type": "application/json"},
		Timeout: 15000,
	}
}

// BaseURL returns scheme://domain:port followed by the prefix. A prefix
// without a leading slash is joined with one.
func (c NetworkConfig) BaseURL() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return scheme + "://" + c.host(c.Port) + normalizePrefix(c.Prefix)
}

// WSURL returns the websocket address. WSPort falls back to Port.
func (c NetworkConfig) WSURL() string {
	scheme := "ws"
	if c.SSL {
		scheme = "wss"
	}
	port := c.WSPort
	if port == 0 {
		port = c.Port
	}
	return scheme + "://" + c.host(port) + normalizePrefix(c.Prefix)
}

// TimeoutDuration converts Timeout to a duration, applying DefaultTimeout when unset.
func (c NetworkConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// Validate checks required fields and ranges.
func (c NetworkConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var problems []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	} else {
		problems = append(problems, err.Error())
	}
	return newConfigurationError("invalid network config: "+strings.Join(problems, "; "), err)
}

func (c NetworkConfig) host(port int) string {
	return net.JoinHostPort(c.Domain, strconv.Itoa(port))
}

func normalizePrefix(prefix string) string {
	if prefix == "" || strings.HasPrefix(prefix, "/") {
		return prefix
	}
	return "/" + prefix
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("host", validateHost)
}

// validateHost accepts IP literals and host names made of letters, digits,
// '-', '_' and '.'. Underscores are allowed for container service names.
func validateHost(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if net.ParseIP(host) != nil {
		return true
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return host != ""
}
