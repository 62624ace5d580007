// Package validate holds composable string validators used to check
// configuration values before the service starts.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not empty
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// Matches checks if value matches a regex with a custom message
func Matches(pattern, message string) Validator {
	re := regexp.MustCompile(pattern)
	return func(v string) error {
		if !re.MatchString(v) {
			if message != "" {
				return fmt.Errorf("%s", message)
			}
			return fmt.Errorf("invalid format")
		}
		return nil
	}
}

// OneOf checks if value is in allowed list
func OneOf(allowed ...string) Validator {
	set := make(map[string]bool)
	for _, a := range allowed {
		set[a] = true
	}
	return func(v string) error {
		if !set[v] {
			return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

// NoSpaces disallows spaces
func NoSpaces() Validator {
	return Matches(`^\S+$`, "must not contain spaces")
}

// RoutingKey accepts dot separated words with optional AMQP topic wildcards.
func RoutingKey() Validator {
	return Matches(`^(\*|#|[A-Za-z0-9_\-]+)(\.(\*|#|[A-Za-z0-9_\-]+))*$`, "must be a dot separated routing key")
}

// URLScheme requires a parseable URL using one of the given schemes.
func URLScheme(schemes ...string) Validator {
	return func(v string) error {
		if v == "" {
			return nil // let Required handle empty
		}
		u, err := url.Parse(v)
		if err != nil {
			return fmt.Errorf("must be a valid URL")
		}
		for _, s := range schemes {
			if strings.EqualFold(u.Scheme, s) {
				return nil
			}
		}
		return fmt.Errorf("scheme must be one of: %s", strings.Join(schemes, ", "))
	}
}

// All runs every check and joins the failures.
func All(checks ...error) error {
	return errors.Join(checks...)
}
