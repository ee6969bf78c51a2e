package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed values from the environment. A variable that is set
// but cannot be parsed is remembered instead of silently replaced by its
// default, so Load can report every malformed variable at once.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q is not a valid %s", key, value, want))
}

// err returns all parse failures joined, or nil
func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) getString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.invalid(key, value, "integer")
		return defaultValue
	}
	return n
}

func (r *envReader) getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.invalid(key, value, "integer")
		return defaultValue
	}
	return n
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.invalid(key, value, "boolean")
		return defaultValue
	}
	return b
}

// getDuration accepts Go duration syntax ("30s", "1m30s")
func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.invalid(key, value, "duration")
		return defaultValue
	}
	return d
}

// getList splits a comma separated variable, dropping empty items
func (r *envReader) getList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getTokenSeeds reads "token:project" pairs
func (r *envReader) getTokenSeeds(key string) []TokenSeed {
	var seeds []TokenSeed
	for _, item := range r.getList(key) {
		value, project, ok := strings.Cut(item, ":")
		value, project = strings.TrimSpace(value), strings.TrimSpace(project)
		if !ok || value == "" || project == "" {
			r.invalid(key, item, "token:project pair")
			continue
		}
		seeds = append(seeds, TokenSeed{Token: value, ProjectName: project})
	}
	return seeds
}
