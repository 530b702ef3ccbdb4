package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// DefaultDir is used by reporters that need a directory when none is set.
const DefaultDir = "hitchain-reports"

// Reporter writes a finished run somewhere.
type Reporter interface {
	Name() string
	Report(result *runner.RunResult) error
}

// Options configure every reporter built by New.
type Options struct {
	// Writer receives console output, and json/junit/tap output when Dir is empty.
	Writer    io.Writer
	Dir       string
	SuiteName string
	Verbose   bool
	NoColor   bool

	// KeepResults leaves earlier allure results in place instead of
	// clearing them before a run is written.
	KeepResults bool
}

func (o Options) dir() string {
	if o.Dir == "" {
		return DefaultDir
	}
	return o.Dir
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

var constructors = map[string]func(Options) Reporter{
	"console": func(o Options) Reporter { return NewConsoleFormatter(o) },
	"json":    func(o Options) Reporter { return NewJSONFormatter(o) },
	"junit":   func(o Options) Reporter { return NewJUnitFormatter(o) },
	"tap":     func(o Options) Reporter { return NewTAPFormatter(o) },
	"allure":  func(o Options) Reporter { return NewAllureWriter(o) },
	"xlsx":    func(o Options) Reporter { return NewWorkbookWriter(o) },
	"html":    func(o Options) Reporter { return NewHTMLFormatter(o) },
}

// Names lists the reporters New understands.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func New(name string, opts Options) (Reporter, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown reporter %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(opts), nil
}

// NewAll builds one reporter per name, skipping duplicates.
func NewAll(names []string, opts Options) ([]Reporter, error) {
	var out []Reporter
	seen := make(map[string]bool)
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if seen[key] {
			continue
		}
		seen[key] = true
		r, err := New(key, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// fileOrWriter opens name inside dir, or returns w when dir is empty.
func fileOrWriter(dir, name string, w io.Writer) (io.Writer, func() error, error) {
	if dir == "" {
		return w, func() error { return nil }, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(joinPath(dir, name))
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
