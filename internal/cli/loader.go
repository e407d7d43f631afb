package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/ruanwenjun/spark/internal/compiler"
	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/querysql"
)

// PlanFormat is the encoding of a plan file, chosen by extension.
type PlanFormat string

const (
	FormatCUE  PlanFormat = "cue"
	FormatJSON PlanFormat = "json"
	FormatSQL  PlanFormat = "sql"
	FormatWire PlanFormat = "bin" // binary wire encoding
)

// DetectFormat maps a file location to its plan format.
func DetectFormat(location string) (PlanFormat, bool) {
	switch strings.ToLower(path.Ext(location)) {
	case ".cue":
		return FormatCUE, true
	case ".json":
		return FormatJSON, true
	case ".sql":
		return FormatSQL, true
	case ".bin", ".pb":
		return FormatWire, true
	}
	return "", false
}

// LoadError represents an error that occurred while loading a plan.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available

	// Errors lists structural problems when the plan decoded but is
	// invalid.
	Errors []ir.ValidationError
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// PlanLoader reads plan files through an afs service, so locations may
// be local paths or any URL the service supports.
type PlanLoader struct {
	fs afs.Service
}

// NewPlanLoader creates a loader backed by fs.
func NewPlanLoader(fs afs.Service) *PlanLoader {
	return &PlanLoader{fs: fs}
}

// Load reads location and builds its plan. Every failure is a *LoadError.
func (l *PlanLoader) Load(ctx context.Context, location string) (*ir.Relation, error) {
	format, ok := DetectFormat(location)
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeUnknownFormat,
			Message: fmt.Sprintf("cannot tell plan format of %s (want .cue, .json, .sql, .bin or .pb)", location),
		}
	}
	exists, err := l.fs.Exists(ctx, location)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("checking %s: %v", location, err)}
	}
	if !exists {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plan file not found: %s", location)}
	}
	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", location, err)}
	}
	return BuildPlan(format, location, data)
}

// Save writes data to location.
func (l *PlanLoader) Save(ctx context.Context, location string, data []byte) error {
	if err := l.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", location, err)}
	}
	return nil
}

// BuildPlan builds a plan from data in the given format. name is used in
// compiler positions.
func BuildPlan(format PlanFormat, name string, data []byte) (*ir.Relation, error) {
	var (
		rel  *ir.Relation
		err  error
		code string
	)
	switch format {
	case FormatCUE, FormatJSON:
		rel, err = compiler.CompileBytes(name, data)
		code = ErrCodeCompileFailed
	case FormatSQL:
		rel, err = querysql.Parse(string(data))
		code = ErrCodeParseFailed
	case FormatWire:
		rel, err = ir.Unmarshal(data)
		code = ErrCodeDecodeFailed
	default:
		return nil, &LoadError{Code: ErrCodeUnknownFormat, Message: fmt.Sprintf("unknown plan format %q", format)}
	}
	if err != nil {
		return nil, convertBuildError(err, code)
	}
	return rel, nil
}

func convertBuildError(err error, code string) *LoadError {
	var ipe *ir.InvalidPlanError
	if errors.As(err, &ipe) {
		return &LoadError{
			Code:    ErrCodeInvalidPlan,
			Message: fmt.Sprintf("plan has %d structural error(s)", len(ipe.Errors)),
			Errors:  ipe.Errors,
		}
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return &LoadError{Code: code, Message: ce.Error(), Pos: ce.Pos}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// Error codes for CLI output (E001-E099). Structural plan errors use the
// ir codes (E2xx) and planning diagnostics the analyzer codes (E3xx).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeReadFailed    = "E002" // File read error
	ErrCodeUnknownFormat = "E003" // Unrecognised plan file extension
	ErrCodeInvalidPlan   = "E004" // Plan fails structural validation
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeCompileFailed = "E006" // CUE/JSON document did not compile
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeDecodeFailed  = "E008" // Binary plan did not decode
	ErrCodeParseFailed   = "E009" // SQL did not parse
	ErrCodeDatabase      = "E010" // Store open/read/write error
	ErrCodePlanning      = "E011" // Plan has planning conflicts
	ErrCodeRenderFailed  = "E012" // Plan has no SQL rendering
)

// loadErrorOutput writes a *LoadError (or any error) through the formatter
// and returns the matching exit error. Invalid plans exit 1; everything
// else is a command error.
func loadErrorOutput(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		le = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	var details any
	if len(le.Errors) > 0 {
		details = le.Errors
	} else if le.Pos.IsValid() {
		details = map[string]any{
			"file":   le.Pos.Filename(),
			"line":   le.Pos.Line(),
			"column": le.Pos.Column(),
		}
	}

	if f.IsJSON() {
		if outErr := f.Error(le.Code, le.Message, details); outErr != nil {
			return outErr
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s\n", le.Error())
		for _, ve := range le.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", ve.Error())
		}
	}

	if le.Code == ErrCodeInvalidPlan {
		return WrapExitError(ExitFailure, "invalid plan", err)
	}
	return WrapExitError(ExitCommandError, "failed to load plan", err)
}
