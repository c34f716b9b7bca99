package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	s7genCmd       = "go run ./cmd/s7gen"
	compileTimeout = 60 * time.Second // go run compiles s7gen first
	testdata       = "test/testdata"
)

type testResult struct {
	name   string
	passed bool
	output string // failure details
	isGood bool
}

func main() {
	fmt.Println("🧹 Cleaning output directory...")
	_ = os.RemoveAll("out")
	_ = os.Mkdir("out", 0755)

	failedTests := []testResult{}

	fmt.Println("\n🔍 Running good configurations:")
	goodSets, _ := filepath.Glob(filepath.Join(testdata, "good", "*"))
	fmt.Printf("Found %d good configuration sets...\n", len(goodSets))
	goodPassed, goodFailed := 0, 0
	for _, dir := range goodSets {
		fmt.Printf("→ Running good set: %s\n", filepath.Base(dir))
		res := runGoodSet(dir)
		if res.passed {
			fmt.Printf("  ✅ %s\n", res.name)
			goodPassed++
		} else {
			fmt.Printf("  ❌ %s\n", res.name)
			goodFailed++
			failedTests = append(failedTests, res)
		}
	}

	fmt.Println("\n💥 Running bad configurations:")
	badSets, _ := filepath.Glob(filepath.Join(testdata, "bad", "*"))
	fmt.Printf("Found %d bad configuration sets...\n", len(badSets))
	badPassed, badFailed := 0, 0
	for _, dir := range badSets {
		fmt.Printf("→ Running bad set: %s\n", filepath.Base(dir))
		res := runBadSet(dir)
		if res.passed {
			fmt.Printf("  ✅ %s (Failed as expected)\n", res.name)
			badPassed++
		} else {
			fmt.Printf("  ❌ %s (Unexpected Result)\n", res.name)
			badFailed++
			failedTests = append(failedTests, res)
		}
	}

	if len(failedTests) > 0 {
		fmt.Println("\n--- Detailed Failures ---")
		for _, failure := range failedTests {
			fmt.Printf("\n❌ Set: %s (%s)\n", failure.name, map[bool]string{true: "Good Set", false: "Bad Set"}[failure.isGood])
			fmt.Println("Reason:")
			fmt.Println(failure.output)
			fmt.Println("---")
		}
	}

	fmt.Println("\n--------------------")
	fmt.Printf("Good Sets Summary: ✅ Passed: %d | ❌ Failed: %d\n", goodPassed, goodFailed)
	fmt.Printf("Bad Sets Summary:  ✅ Passed: %d | ❌ Failed: %d\n", badPassed, badFailed)
	fmt.Println("--------------------")

	if goodFailed > 0 || badFailed > 0 {
		fmt.Println("\n🚨 Some configuration sets failed!")
		os.Exit(1)
	}
	fmt.Println("\n🎉 All configuration sets passed!")
}

// runGoodSet builds a configuration set and compares the generated files with
// the ones under its expected/ directory.
func runGoodSet(dir string) testResult {
	name := filepath.Base(dir)
	res := testResult{name: name, isGood: true}
	out := filepath.Join("out", name)

	cmd := exec.Command("sh", "-c", fmt.Sprintf("%s build --silent --crlf=false -o %s %s", s7genCmd, out, dir))
	output, err := runCommandWithTimeout(cmd, compileTimeout)
	if err != nil {
		res.output = fmt.Sprintf("s7gen build failed: %v\nOutput:\n%s", err, output)
		return res
	}

	expectedDir := filepath.Join(dir, "expected")
	var mismatches bytes.Buffer
	_ = filepath.Walk(expectedDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(expectedDir, path)
		expected, _ := os.ReadFile(path)
		actual, err := os.ReadFile(filepath.Join(out, rel))
		if err != nil {
			mismatches.WriteString(fmt.Sprintf("Missing generated file: %s\n", rel))
			return nil
		}
		expected = bytes.ReplaceAll(expected, []byte("\r\n"), []byte("\n"))
		actual = bytes.ReplaceAll(actual, []byte("\r\n"), []byte("\n"))
		if !bytes.Equal(expected, actual) {
			mismatches.WriteString(fmt.Sprintf("Mismatch in %s\nExpected:\n%s\nActual:\n%s\n", rel, expected, actual))
		}
		return nil
	})
	if mismatches.Len() > 0 {
		res.output = mismatches.String()
		return res
	}
	res.passed = true
	return res
}

// runBadSet expects the build to fail with an error message.
func runBadSet(dir string) testResult {
	name := filepath.Base(dir)
	res := testResult{name: name}

	cmd := exec.Command("sh", "-c", fmt.Sprintf("%s check --silent %s", s7genCmd, dir))
	output, err := runCommandWithTimeout(cmd, compileTimeout)

	switch {
	case err != nil && strings.Contains(string(output), "Error:"):
		res.passed = true
	case err != nil:
		res.output = fmt.Sprintf("Failed, but no error message detected.\nExit Err: %v\nOutput:\n%s", err, output)
	default:
		res.output = fmt.Sprintf("Expected failure but got success.\nOutput:\n%s", output)
	}
	return res
}

func runCommandWithTimeout(cmd *exec.Cmd, timeout time.Duration) ([]byte, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return out.Bytes(), fmt.Errorf("failed to start command '%s': %w", cmd.String(), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-time.After(timeout):
		if killErr := cmd.Process.Kill(); killErr != nil {
			return out.Bytes(), fmt.Errorf("command '%s' timed out after %v and failed to kill: %w", cmd.String(), timeout, killErr)
		}
		return out.Bytes(), fmt.Errorf("command '%s' timed out after %v", cmd.String(), timeout)
	case err := <-done:
		return out.Bytes(), err
	}
}
