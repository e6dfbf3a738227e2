package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type stubGenerator struct {
	sql string
	err error
}

func (s stubGenerator) Generate(ctx context.Context, params GenerateParams) (string, error) {
	return s.sql, s.err
}

type stubValidator struct {
	result ValidationResult
	err    error
}

func (s stubValidator) Validate(ctx context.Context, question, sql string, sample []ResultRow, rowCount int) (ValidationResult, error) {
	return s.result, s.err
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackGeneratorUsesPrimaryOnSuccess(t *testing.T) {
	fg := NewFallbackGenerator(
		stubGenerator{sql: "SELECT 1;"},
		stubGenerator{sql: "SELECT 2;"},
		silentLogger(),
	)

	sql, err := fg.Generate(context.Background(), GenerateParams{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if sql != "SELECT 1;" {
		t.Fatalf("Generate() = %q, want primary's result", sql)
	}
}

func TestFallbackGeneratorFallsBackOnPrimaryFailure(t *testing.T) {
	fg := NewFallbackGenerator(
		stubGenerator{err: errors.New("primary down")},
		stubGenerator{sql: "SELECT 2;"},
		silentLogger(),
	)

	sql, err := fg.Generate(context.Background(), GenerateParams{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if sql != "SELECT 2;" {
		t.Fatalf("Generate() = %q, want secondary's result", sql)
	}
}

func TestFallbackGeneratorReturnsPrimaryErrorWithoutSecondary(t *testing.T) {
	boom := errors.New("primary down")
	fg := NewFallbackGenerator(stubGenerator{err: boom}, nil, silentLogger())

	_, err := fg.Generate(context.Background(), GenerateParams{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestFallbackResultValidatorFallsBack(t *testing.T) {
	fv := NewFallbackResultValidator(
		stubValidator{err: errors.New("primary down")},
		stubValidator{result: ValidationResult{Confidence: 80, IsAcceptable: true}},
		silentLogger(),
	)

	result, err := fv.Validate(context.Background(), "q", "SELECT 1;", nil, 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 80 {
		t.Fatalf("Confidence = %d, want 80", result.Confidence)
	}
}
