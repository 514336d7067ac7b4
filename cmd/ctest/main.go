// ctest compiles every matching source file in process and compares the
// result of each phase against a JSON golden file stored next to it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

// suiteOptions are the knobs shared by every job of one run.
type suiteOptions struct {
	Skip    []string
	Flags   string
	Dir     string
	Jobs    int
	Update  bool
	Verbose bool
}

func main() {
	testFiles := flag.String("test-files", "testdata/valid/*.c testdata/invalid/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles := flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON := flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	var opts suiteOptions
	flag.StringVar(&opts.Flags, "flags", "", "Compiler -W/-F flags applied to every file (space-separated).")
	flag.StringVar(&opts.Dir, "dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	flag.IntVar(&opts.Jobs, "j", 4, "Number of parallel test jobs.")
	flag.BoolVar(&opts.Update, "update", false, "Rewrite golden files from the current output.")
	flag.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging.")
	flag.Parse()
	log.SetFlags(0)
	opts.Skip = strings.Fields(*skipFiles)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files, opts)
	printSummary(os.Stdout, results, opts.Verbose)

	reportPath := *outputJSON
	if opts.Dir != "" {
		reportPath = filepath.Join(opts.Dir, *outputJSON)
	}
	if err := writeJSONReport(reportPath, results); err != nil {
		log.Printf("%s[ERROR]%s %v\n", cRed, cNone, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", reportPath)
	}
	if hasFailures(results) {
		os.Exit(1)
	}
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// runSuite tests files on a pool of opts.Jobs workers. A file whose content
// is identical to an earlier file is skipped. Results are sorted by file.
func runSuite(files []string, opts suiteOptions) []*FileTestResult {
	skip := make(map[string]bool)
	for _, f := range opts.Skip {
		if abs, err := filepath.Abs(f); err == nil {
			skip[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	results := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < max(opts.Jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				if opts.Verbose {
					log.Printf("[%s] compiling", file)
				}
				results <- testFile(file, opts.Flags, opts.Dir, opts.Update)
			}
		}()
	}

	firstSeen := make(map[uint64]string)
	for _, file := range files {
		if skip[file] {
			results <- &FileTestResult{File: file, Status: statusSkip, Message: "Explicitly skipped"}
			continue
		}
		sum, err := hashFile(file)
		if err != nil {
			results <- &FileTestResult{File: file, Status: statusError, Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if first, ok := firstSeen[sum]; ok {
			results <- &FileTestResult{File: file, Status: statusSkip, Message: fmt.Sprintf("Content is identical to %s", first)}
			continue
		}
		firstSeen[sum] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileTestResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

var statusColors = map[status]string{
	statusPass: cGreen, statusFail: cRed, statusSkip: cYellow, statusError: cRed,
}

func printSummary(w io.Writer, results []*FileTestResult, verbose bool) {
	counts := make(map[status]int)
	var compiled int
	var total time.Duration
	rule := strings.Repeat("-", 70)

	for _, r := range results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, r.File, cNone)
		fmt.Fprintf(w, "  [%s%s%s] %s\n", statusColors[r.Status], r.Status, cNone, r.Message)
		counts[r.Status]++
		if r.Status == statusPass || r.Status == statusFail {
			compiled++
			total += r.Duration
		}
		if r.Status == statusFail {
			fmt.Fprintln(w, formatDiff(r.Diff))
		}
		if verbose && r.Status == statusPass {
			fmt.Fprintf(w, "  [%s]\n", r.Duration)
		}
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone,
		cGreen, counts[statusPass], cNone,
		cRed, counts[statusFail], cNone,
		cYellow, counts[statusSkip], cNone,
		cRed, counts[statusError], cNone,
		len(results))
	if compiled > 0 {
		fmt.Fprintf(w, "Average compile time: %s\n", total/time.Duration(compiled))
	}
}

func writeJSONReport(path string, results []*FileTestResult) error {
	report := make(TestSuiteResults, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report to %s: %w", path, err)
	}
	return nil
}

func hasFailures(results []*FileTestResult) bool {
	for _, r := range results {
		if r.Status == statusFail || r.Status == statusError {
			return true
		}
	}
	return false
}

// expandGlobPatterns returns the regular files matched by the space separated
// patterns as absolute paths, without duplicates.
func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				files = append(files, abs)
				seen[abs] = true
			}
		}
	}
	return files, nil
}
