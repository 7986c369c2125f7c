package message

import (
	"fmt"
	"strconv"
)

// StringOpt adjusts how the string views preprocess and validate values.
type StringOpt func(*stringConfig)

type stringConfig struct {
	preps  []func(string) string
	valid  func(string) bool
	trues  []string
	falses []string
}

// WithPrep appends a preprocessing step applied to the raw string before
// validation or conversion. Multiple preps run in registration order.
func WithPrep(fn func(string) string) StringOpt {
	return func(c *stringConfig) {
		c.preps = append(c.preps, fn)
	}
}

// WithValid installs a validator over the preprocessed string; a false
// result fails the read with ErrValue.
func WithValid(fn func(string) bool) StringOpt {
	return func(c *stringConfig) {
		c.valid = fn
	}
}

// WithTrueStrings lists the strings StringToBool interprets as true.
func WithTrueStrings(values ...string) StringOpt {
	return func(c *stringConfig) {
		c.trues = values
	}
}

// WithFalseStrings lists the strings StringToBool interprets as false.
func WithFalseStrings(values ...string) StringOpt {
	return func(c *stringConfig) {
		c.falses = values
	}
}

func (c *stringConfig) prepared(s string) (string, error) {
	for _, p := range c.preps {
		s = p(s)
	}
	if c.valid != nil && !c.valid(s) {
		return "", fmt.Errorf("%q rejected by validator: %w", s, ErrValue)
	}
	return s, nil
}

func applyOpts(opts []StringOpt) *stringConfig {
	c := &stringConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// String reads key as a string, running the configured preps and
// validator.
func String(r Reader, key string, opts ...StringOpt) (string, error) {
	s, err := Get[string](r, key)
	if err != nil {
		return "", err
	}
	return applyOpts(opts).prepared(s)
}

// StringToInt reads key as a string and parses it with base detection
// (strconv, base 0), so "0x10" and "0o17" work.
func StringToInt(r Reader, key string, opts ...StringOpt) (int64, error) {
	s, err := String(r, key, opts...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: parse %q as int: %w", key, s, ErrValue)
	}
	return n, nil
}

// StringToFloat reads key as a string and parses it as a float64.
func StringToFloat(r Reader, key string, opts ...StringOpt) (float64, error) {
	s, err := String(r, key, opts...)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: parse %q as float: %w", key, s, ErrValue)
	}
	return f, nil
}

// StringToBool reads key as a string and interprets it against the
// configured true/false sets. With neither set configured, any non-empty
// string is true. With only one set configured, membership decides.
func StringToBool(r Reader, key string, opts ...StringOpt) (bool, error) {
	c := applyOpts(opts)
	s, err := Get[string](r, key)
	if err != nil {
		return false, err
	}
	if s, err = c.prepared(s); err != nil {
		return false, err
	}
	switch {
	case len(c.trues) == 0 && len(c.falses) == 0:
		return s != "", nil
	case len(c.trues) > 0 && len(c.falses) == 0:
		return contains(c.trues, s), nil
	case len(c.trues) == 0:
		return !contains(c.falses, s), nil
	default:
		if contains(c.trues, s) {
			return true, nil
		}
		if contains(c.falses, s) {
			return false, nil
		}
		return false, fmt.Errorf("key %q: %q matches neither true nor false set: %w", key, s, ErrValue)
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
