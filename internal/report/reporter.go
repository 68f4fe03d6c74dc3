package report

import (
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

// LogLevel mirrors the teacher's enumerated log levels (report.Reporter /
// logging.Logger): silent, errors only, warnings+errors, verbose (default).
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelVerbose
)

// Reporter accumulates diagnostics during one pipeline run and displays them
// through pterm, respecting the configured log level. Safe for concurrent
// use by threaded_lowering's worker pool (§5: mutex-guarded, same shape as
// the teacher's Reporter).
type Reporter struct {
	mu       sync.Mutex
	logLevel LogLevel

	errorCount   int
	warningCount int
}

func NewReporter(level LogLevel) *Reporter {
	return &Reporter{logLevel: level}
}

// Error reports a MesonException/InvalidArguments-class failure.
func (r *Reporter) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errorCount++
	if r.logLevel > LogLevelSilent {
		displayError(err)
	}
}

// Warn reports a non-fatal warning (e.g. from a `warning()` DSL call).
func (r *Reporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warningCount++
	if r.logLevel >= LogLevelWarn {
		displayWarning(msg)
	}
}

// Info reports an informational message (e.g. from a `message()` DSL call).
func (r *Reporter) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.logLevel > LogLevelWarn {
		displayInfo(msg)
	}
}

// ICE reports an internal compiler error — always displayed regardless of
// log level, matching report.ReportICE.
func (r *Reporter) ICE(err *InternalAssertion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errorCount++
	displayICE(err.Message)
}

func (r *Reporter) AnyErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount > 0
}

func (r *Reporter) Counts() (errors, warnings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount, r.warningCount
}

// -----------------------------------------------------------------------------
// Display helpers, grounded on the teacher's src/logging/display.go banners.

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	infoStyle  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
)

func displayError(err error) {
	errorStyle.Print(" error ")
	fmt.Print(" ")

	switch e := err.(type) {
	case *InvalidArguments:
		pterm.FgRed.Println(e.Error())
		printSpan(e.Span)
	case *MesonException:
		pterm.FgRed.Println(e.Error())
		printSpan(e.Span)
	default:
		pterm.FgRed.Println(err.Error())
	}
}

func displayWarning(msg string) {
	warnStyle.Print(" warning ")
	fmt.Print(" ")
	pterm.FgYellow.Println(msg)
}

func displayInfo(msg string) {
	infoStyle.Print(" message ")
	fmt.Print(" ")
	pterm.FgLightGreen.Println(msg)
}

func displayICE(msg string) {
	errorStyle.Print(" internal error ")
	fmt.Print(" ")
	pterm.FgRed.Println(msg)
	pterm.FgGray.Println("This is a bug in the pipeline, not in the build description.")
}

func printSpan(span *Span) {
	if span == nil {
		return
	}
	pterm.FgGray.Printfln("  at line %d, col %d", span.StartLine+1, span.StartCol+1)
}

// Summary prints the final "N errors, M warnings" line, grounded on the
// teacher's displayCompilationFinished.
func (r *Reporter) Summary() {
	errs, warns := r.Counts()

	if errs == 0 {
		pterm.FgLightGreen.Print("All done! ")
	} else {
		pterm.FgRed.Print("Failed. ")
	}

	fmt.Print("(")
	if errs == 0 {
		pterm.FgLightGreen.Print(0)
	} else {
		pterm.FgRed.Print(errs)
	}
	fmt.Print(" errors, ")

	if warns == 0 {
		pterm.FgLightGreen.Print(0)
	} else {
		pterm.FgYellow.Print(warns)
	}
	fmt.Println(" warnings)")
}
