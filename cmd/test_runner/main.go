package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	short      bool
	race       bool
	timeout    time.Duration
	testRegexp string
	mongoURI   string
)

var rootCmd = &cobra.Command{
	Use:           "test_runner [packages...]",
	Short:         "Run the test suite, optionally against a live MongoDB",
	RunE:          runTests,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	f.BoolVar(&short, "short", false, "run only short tests")
	f.BoolVar(&race, "race", true, "enable the race detector")
	f.DurationVar(&timeout, "timeout", 5*time.Minute, "test timeout")
	f.StringVar(&testRegexp, "run", "", "run only tests matching the regular expression")
	f.StringVar(&mongoURI, "mongo", os.Getenv("MONGODB_TEST_URI"), "MongoDB URI for the store integration tests")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Printf("Error running tests: %v\n", err)
		os.Exit(1)
	}
}

func runTests(cmd *cobra.Command, pkgs []string) error {
	args := []string{"test"}
	if verbose {
		args = append(args, "-v")
	}
	if short {
		args = append(args, "-short")
	}
	if race {
		args = append(args, "-race")
	}
	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))
	if testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", testRegexp))
	}
	if len(pkgs) == 0 {
		pkgs = []string{"./..."}
	}
	args = append(args, pkgs...)

	c := exec.CommandContext(cmd.Context(), "go", args...)
	env := os.Environ()
	if mongoURI != "" {
		env = append(env, "MONGODB_TEST_URI="+mongoURI)
	}
	c.Env = env
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s (mongo integration: %t)\n", strings.Join(args, " "), mongoURI != "")
	return c.Run()
}
