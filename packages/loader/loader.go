package loader

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"gopkg.in/yaml.v3"
)

var suiteExtensions = []string{".yaml", ".yml", ".json", ".xlsx"}

// IsSuiteFile reports whether path has a loadable extension.
func IsSuiteFile(path string) bool {
	return slices.Contains(suiteExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadFile reads a single suite, choosing the format by extension.
func LoadFile(path string) (*cases.Suite, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(content, path)
	case ".xlsx":
		return LoadWorkbook(path, "")
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// LoadPaths loads every suite under the given files and directories and
// merges them in order. Directory entries are visited in lexical order.
func LoadPaths(paths []string) (*cases.Suite, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no suite files found in %s", strings.Join(paths, ", "))
	}

	suite := &cases.Suite{}
	for _, f := range files {
		s, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		suite.Merge(s)
	}
	return suite, nil
}

// ExpandPaths resolves directories into the suite files they contain.
func ExpandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			// Excel keeps lock files like ~$cases.xlsx next to open workbooks.
			if strings.HasPrefix(d.Name(), "~$") {
				return nil
			}
			if IsSuiteFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Parse decodes YAML or JSON suite content. JSON is read through the YAML
// decoder, so both formats accept the same shorthand.
func Parse(content []byte, source string) (*cases.Suite, error) {
	var doc SuiteDocument
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{File: source, Err: err}
	}
	return doc.ToSuite(source)
}

func (d *SuiteDocument) ToSuite(source string) (*cases.Suite, error) {
	suite := &cases.Suite{
		Name:      d.Name,
		BaseURL:   d.BaseURL,
		Variables: d.Variables,
		Files:     []string{source},
	}
	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	for i := range d.TestCases {
		tc, err := d.TestCases[i].ToCase(source)
		if err != nil {
			return nil, &LoadError{File: source, CaseID: d.TestCases[i].ID, Err: err}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	return suite, nil
}

// WriteYAML writes doc to path, creating parent directories.
func WriteYAML(path string, doc *SuiteDocument) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
