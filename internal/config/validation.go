package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Error joins the error messages so a result can be returned as an error.
func (vr *ValidationResult) Error() string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(msgs, "; ")
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate checks every section and collects errors and warnings.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validatePod(&config.Pod, result)
	validateServer(&config.Server, result)
	validateBuild(&config.Build, result)
	validateCache(&config.Cache, result)
	validateDevelopment(&config.Development, result)
	validateLog(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]*$`)

func validatePod(config *PodConfig, result *ValidationResult) {
	if config.Root == "" {
		result.fail("pod.root", config.Root, "pod root cannot be empty",
			"Use '.' to build the pod in the working directory")
	}
	if !envNamePattern.MatchString(config.Env) {
		result.fail("pod.env", config.Env, "environment names may only contain letters, digits, '-' and '_'",
			"Environment names are matched by keys such as 'title@env.prod'")
	}
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system assign one.
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.fail("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}

	for i, origin := range config.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result.fail(fmt.Sprintf("server.allowed_origins[%d]", i), origin, "origin must be '*' or start with http:// or https://")
		}
	}
}

func validateBuild(config *BuildConfig, result *ValidationResult) {
	if err := validateRelativePath(config.OutDir); err != nil {
		result.fail("build.out_dir", config.OutDir, err.Error(),
			"Use a relative path like 'build'",
			"Avoid parent directory references (..)")
	}
	if config.PoolSize < 1 {
		result.fail("build.pool_size", config.PoolSize, "pool size must be positive")
	}
	if config.BatchSize < 1 {
		result.fail("build.batch_size", config.BatchSize, "batch size must be positive",
			"The default batch size is 300")
	}
	if config.Workers < 0 {
		result.fail("build.workers", config.Workers, "workers cannot be negative",
			"Use 0 to run one worker per CPU")
	}
	if !config.Threaded && config.Workers > 1 {
		result.warn("build.workers", config.Workers, "workers are ignored when threaded rendering is disabled")
	}
}

func validateCache(config *CacheConfig, result *ValidationResult) {
	if config.FileCacheSize < 1 {
		result.fail("cache.file_cache_size", config.FileCacheSize, "file cache size must be positive")
	}
}

func validateDevelopment(config *DevelopmentConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.fail("development.debounce", config.Debounce, "debounce cannot be negative")
	} else if config.Debounce > 5*time.Second {
		result.warn("development.debounce", config.Debounce, "long debounce delays reloads noticeably",
			"Values between 100ms and 500ms work well")
	}
	for i, pattern := range config.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.fail(fmt.Sprintf("development.ignore[%d]", i), pattern, "invalid pattern: "+err.Error())
		}
	}
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func validateLog(config *LogConfig, result *ValidationResult) {
	if !contains(logLevels, strings.ToLower(config.Level)) {
		result.fail("log.level", config.Level, "unknown log level",
			"Available levels: "+strings.Join(logLevels, ", "))
	}
	if !contains(logFormats, strings.ToLower(config.Format)) {
		result.fail("log.format", config.Format, "unknown log format",
			"Available formats: "+strings.Join(logFormats, ", "))
	}
}

// Helper validation functions

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	if host == "localhost" {
		return nil
	}

	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func validateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative: %s", path)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	if cleanPath == "." {
		return fmt.Errorf("path must name a directory below the working directory")
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
