package cli

import (
	"fmt"
	"os"
	"strings"
)

// osExit is a variable that can be mocked in tests
var osExit = os.Exit

const helpText = `neo4j-testinstance - bootstrap a Neo4j instance for a test run

Waits for the instance to answer, rotates the default password over the HTTP
admin API and verifies a bolt session with the rotated password.

Usage:
  neo4j-testinstance [OPTIONS]

Options:
  -h, --help                  Show this help message
  -v, --version               Show version information
  --host <HOST>               Instance host (overrides NEO4J_TEST_HOST)
  --http-port <PORT>          HTTP admin port (overrides NEO4J_TEST_HTTP_PORT)
  --bolt-port <PORT>          Bolt port (overrides NEO4J_TEST_BOLT_PORT)
  --password <PASSWORD>       Password to rotate to (overrides NEO4J_TEST_PASSWORD)
  --log-level <LEVEL>         debug, info, warn or error (overrides NEO4J_LOG_LEVEL)
  --purge                     Delete every node and relationship once connected

Optional Environment Variables:
  NEO4J_TEST_CONNECT_ATTEMPTS   Outer attempts (default: 300)
  NEO4J_TEST_CONNECT_INTERVAL   Wait before each outer attempt (default: 500ms)
  NEO4J_TEST_ROTATE_ATTEMPTS    Admin API polls per attempt (default: 20)
  NEO4J_TEST_ROTATE_INTERVAL    Wait before each poll (default: 1s)

Examples:
  # Wait for the compose service "neo4j" and prepare it for the tests
  neo4j-testinstance

  # Prepare a local instance and empty it
  neo4j-testinstance --host localhost --purge
`

// valueFlags take a value that the flag package parses later in main.
var valueFlags = []string{"--host", "--http-port", "--bolt-port", "--password", "--log-level"}

// HandleArgs processes command-line arguments for version and help flags.
// It exits the program after displaying the requested information.
// If unknown flags are encountered, it prints an error message and exits.
// Known configuration flags are skipped so the flag package can handle them.
func HandleArgs(version string) {
	if len(os.Args) <= 1 {
		return
	}

	flags := make(map[string]bool)
	var err error
	i := 1 // os.Args[0] is the program name

	for i < len(os.Args) {
		arg := os.Args[i]
		switch {
		case arg == "-h" || arg == "--help":
			flags["help"] = true
			i++
		case arg == "-v" || arg == "--version":
			flags["version"] = true
			i++
		case arg == "--purge":
			i++
		case isValueFlag(arg):
			if i+1 >= len(os.Args) {
				err = fmt.Errorf("%s requires a value", arg)
				break
			}
			nextArg := os.Args[i+1]
			if strings.HasPrefix(nextArg, "--") {
				err = fmt.Errorf("%s requires a value (got flag %s instead)", arg, nextArg)
				break
			}
			i += 2
		case arg == "--":
			i = len(os.Args)
		default:
			err = fmt.Errorf("unknown flag or argument: %s", arg)
			i++
		}
		if err != nil {
			break
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}

	if flags["help"] {
		fmt.Print(helpText)
		osExit(0)
	}

	if flags["version"] {
		fmt.Printf("neo4j-testinstance version: %s\n", version)
		osExit(0)
	}
}

func isValueFlag(arg string) bool {
	for _, f := range valueFlags {
		if arg == f {
			return true
		}
	}
	return false
}
