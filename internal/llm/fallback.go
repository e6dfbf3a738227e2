package llm

import (
	"context"
	"log/slog"
)

// FallbackGenerator wraps two SQLGenerator implementations. It calls the
// primary first; if that returns an error it logs the failure and tries
// the secondary. This gives Anthropic as the default with DeepSeek as the
// safety net, or vice versa, depending on wiring.
type FallbackGenerator struct {
	primary   SQLGenerator
	secondary SQLGenerator
	logger    *slog.Logger
}

// NewFallbackGenerator returns a SQLGenerator that calls primary and, on
// failure, falls back to secondary.
func NewFallbackGenerator(primary, secondary SQLGenerator, logger *slog.Logger) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary, logger: logger}
}

// Generate implements SQLGenerator.
func (f *FallbackGenerator) Generate(ctx context.Context, params GenerateParams) (string, error) {
	sql, err := f.primary.Generate(ctx, params)
	if err == nil {
		return sql, nil
	}

	f.logger.Warn("llm: primary generator failed, trying secondary",
		"error", err,
		"question", params.Question,
	)

	if f.secondary == nil {
		return "", err
	}
	return f.secondary.Generate(ctx, params)
}

// FallbackResultValidator is the ResultValidator twin of FallbackGenerator.
type FallbackResultValidator struct {
	primary   ResultValidator
	secondary ResultValidator
	logger    *slog.Logger
}

// NewFallbackResultValidator returns a ResultValidator that calls primary
// and, on failure, falls back to secondary.
func NewFallbackResultValidator(primary, secondary ResultValidator, logger *slog.Logger) *FallbackResultValidator {
	return &FallbackResultValidator{primary: primary, secondary: secondary, logger: logger}
}

// Validate implements ResultValidator.
func (f *FallbackResultValidator) Validate(ctx context.Context, question, sql string, sample []ResultRow, rowCount int) (ValidationResult, error) {
	result, err := f.primary.Validate(ctx, question, sql, sample, rowCount)
	if err == nil {
		return result, nil
	}

	f.logger.Warn("llm: primary result validator failed, trying secondary",
		"error", err,
		"question", question,
	)

	if f.secondary == nil {
		return ValidationResult{}, err
	}
	return f.secondary.Validate(ctx, question, sql, sample, rowCount)
}
