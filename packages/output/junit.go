package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the cases of one module
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter writes junit.xml. Cases are grouped into one suite per
// module. Transport and dependency problems are errors, assertion misses
// are failures.
type JUnitFormatter struct {
	opts Options
	now  func() time.Time
}

func NewJUnitFormatter(opts Options) *JUnitFormatter {
	return &JUnitFormatter{opts: opts, now: time.Now}
}

func (f *JUnitFormatter) Name() string { return "junit" }

func (f *JUnitFormatter) Report(result *runner.RunResult) error {
	w, closeFn, err := fileOrWriter(f.opts.Dir, "junit.xml", f.opts.writer())
	if err != nil {
		return err
	}
	defer closeFn()
	return f.encode(w, result)
}

func (f *JUnitFormatter) encode(w io.Writer, result *runner.RunResult) error {
	name := f.opts.SuiteName
	if name == "" {
		name = "hitchain"
	}
	root := JUnitTestSuites{
		Name:      name,
		Time:      result.Duration.Seconds(),
		Timestamp: f.now().Format(time.RFC3339),
	}

	index := make(map[string]int)
	for _, rec := range result.Ordered() {
		module := rec.Module
		if module == "" {
			module = name
		}
		i, ok := index[module]
		if !ok {
			i = len(root.TestSuites)
			index[module] = i
			root.TestSuites = append(root.TestSuites, JUnitTestSuite{Name: module})
		}
		suite := &root.TestSuites[i]

		tc := JUnitTestCase{
			Name:      title(rec),
			ClassName: module,
			Time:      rec.Duration.Seconds(),
		}
		switch {
		case rec.Skipped:
			tc.Skipped = &JUnitSkipped{Message: rec.SkipReason}
			suite.Skipped++
		case rec.Success:
		case isAssertionFailure(rec.Error):
			tc.Failure = &JUnitFailure{
				Message: "Assertion failed",
				Type:    "AssertionError",
				Content: strings.Join(failures(rec), "\n"),
			}
			suite.Failures++
		default:
			msg := "case failed"
			if rec.Error != nil {
				msg = rec.Error.Error()
			}
			tc.Error = &JUnitError{
				Message: msg,
				Type:    fmt.Sprintf("%T", rec.Error),
				Content: strings.Join(failures(rec), "\n"),
			}
			suite.Errors++
		}
		suite.Tests++
		suite.Time += rec.Duration.Seconds()
		suite.TestCases = append(suite.TestCases, tc)
	}

	for _, s := range root.TestSuites {
		root.Tests += s.Tests
		root.Failures += s.Failures
		root.Errors += s.Errors
		root.Skipped += s.Skipped
	}

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(root); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
