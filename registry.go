package flyapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Method is the HTTP verb of an endpoint.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ParseMethod accepts a verb in any letter case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", newConfigurationError(fmt.Sprintf("unsupported method %q", s), nil)
	}
	return m, nil
}

// Valid reports whether m is one of the supported verbs.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// IsQuery reports whether endpoints with this method become query hooks.
func (m Method) IsQuery() bool {
	return m == MethodGet
}

// Endpoint describes one REST operation.
type Endpoint struct {
	Name   string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Method Method `json:"method" yaml:"method" mapstructure:"method" validate:"required,oneof=GET POST PUT DELETE"`
	Path   string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint" validate:"required"`
}

// Registry maps a category to its endpoints.
type Registry map[string][]Endpoint

// Categories returns the category names in sorted order.
func (r Registry) Categories() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds an endpoint by category and name. With duplicate names the
// last one wins.
func (r Registry) Lookup(category, name string) (Endpoint, bool) {
	endpoints := r[category]
	for i := len(endpoints) - 1; i >= 0; i-- {
		if endpoints[i].Name == name {
			return endpoints[i], true
		}
	}
	return Endpoint{}, false
}

// Clone returns a deep copy of r.
func (r Registry) Clone() Registry {
	if r == nil {
		return nil
	}
	out := make(Registry, len(r))
	for category, endpoints := range r {
		out[category] = append([]Endpoint(nil), endpoints...)
	}
	return out
}

// Normalize returns a copy with upper-case methods and trimmed names.
func (r Registry) Normalize() Registry {
	out := r.Clone()
	for _, endpoints := range out {
		for i := range endpoints {
			endpoints[i].Name = strings.TrimSpace(endpoints[i].Name)
			endpoints[i].Method = Method(strings.ToUpper(strings.TrimSpace(string(endpoints[i].Method))))
		}
	}
	return out
}

// Validate reports empty names, empty paths and unsupported methods.
func (r Registry) Validate() error {
	var problems []string
	for _, category := range r.Categories() {
		if category == "" {
			problems = append(problems, "category name is required")
		}
		for i, ep := range r[category] {
			err := validate.Struct(ep)
			if err == nil {
				continue
			}
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				problems = append(problems, fmt.Sprintf("%s[%d]: %v", category, i, err))
				continue
			}
			for _, fe := range verrs {
				msg := describeFieldError(fe)
				if fe.Tag() == "oneof" {
					msg = fmt.Sprintf("method %q is not supported", ep.Method)
				}
				problems = append(problems, fmt.Sprintf("%s[%d]: %s", category, i, msg))
			}
		}
	}
	if len(problems) > 0 {
		return newConfigurationError("invalid registry: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

// Duplicates returns, per category, the endpoint names declared more than once.
func (r Registry) Duplicates() map[string][]string {
	dups := make(map[string][]string)
	for category, endpoints := range r {
		seen := make(map[string]int, len(endpoints))
		for _, ep := range endpoints {
			seen[ep.Name]++
			if seen[ep.Name] == 2 {
				dups[category] = append(dups[category], ep.Name)
			}
		}
	}
	return dups
}
