package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult holds the results of running a set of scenario files.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// Pass reports whether every scenario passed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// Failures returns the scenarios that did not pass.
func (r *SuiteResult) Failures() []ScenarioResult {
	failed := []ScenarioResult{}
	for _, s := range r.Scenarios {
		if !s.Pass {
			failed = append(failed, s)
		}
	}
	return failed
}

// ScenarioFiles returns the .yaml and .yml files in dir, sorted.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunDir loads and runs every scenario in dir.
func RunDir(dir string) (*SuiteResult, error) {
	files, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	return RunFiles(files), nil
}

// RunFiles loads and runs each scenario file in order. A scenario that
// cannot be loaded or run counts as failed; the rest still run.
func RunFiles(paths []string) *SuiteResult {
	res := &SuiteResult{Scenarios: make([]ScenarioResult, 0, len(paths))}
	for _, path := range paths {
		sr := runFile(path)
		res.Scenarios = append(res.Scenarios, sr)
		res.Total++
		if sr.Pass {
			res.Passed++
		} else {
			res.Failed++
		}
	}
	return res
}

func runFile(path string) ScenarioResult {
	sr := ScenarioResult{Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		sr.Errors = []string{err.Error()}
		return sr
	}
	sr.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = result.Pass
	if !result.Pass {
		sr.Errors = result.Errors
	}
	return sr
}
