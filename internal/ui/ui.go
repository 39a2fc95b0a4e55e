// Package ui renders progress and status lines for the scan command.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headingColor = color.New(color.Bold, color.Underline)
)

// ProgressBar shows a percentage from 0 to 100
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar writes a percentage bar to w
func NewProgressBar(w io.Writer, description string) *ProgressBar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to percent
func (p *ProgressBar) Set(percent int) {
	_ = p.bar.Set(percent)
}

func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// Spinner shows an indeterminate wait
type Spinner struct {
	spinner *spinner.Spinner
}

func NewSpinner(w io.Writer, message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{spinner: s}
}

func (s *Spinner) Start() { s.spinner.Start() }

func (s *Spinner) Stop() { s.spinner.Stop() }

func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}

// Printer writes coloured status lines
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// Stdio prints to stdout and stderr
func Stdio() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

func (p *Printer) Success(format string, args ...any) {
	successColor.Fprint(p.Out, "✓ ")
	fmt.Fprintf(p.Out, format+"\n", args...)
}

func (p *Printer) Error(format string, args ...any) {
	errorColor.Fprint(p.Err, "✗ ")
	fmt.Fprintf(p.Err, format+"\n", args...)
}

func (p *Printer) Warning(format string, args ...any) {
	warnColor.Fprintf(p.Out, "⚠ "+format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	infoColor.Fprint(p.Out, "ℹ ")
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Section prints a heading followed by body
func (p *Printer) Section(title, body string) {
	fmt.Fprintln(p.Out)
	headingColor.Fprintln(p.Out, title)
	fmt.Fprintln(p.Out, strings.TrimRight(body, "\n"))
}
