package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/HyphaGroup/gevulot/test/pkg/client"
	"github.com/HyphaGroup/gevulot/test/pkg/suites"
	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

func main() {
	// Parse flags
	serverURL := flag.String("server", "http://localhost:8080/mcp", "Gevulot MCP server URL")
	authToken := flag.String("token", "", "Bearer token for authentication (or set GEVULOT_TOKEN env var)")
	testMode := flag.Bool("test", false, "Run automated tests")
	testFilter := flag.String("filter", "", "Filter tests by name (substring match)")
	testTags := flag.String("tags", "", "Filter tests by tags (comma-separated)")
	excludeTags := flag.String("exclude-tags", "", "Exclude tests with these tags (comma-separated)")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	listTools := flag.Bool("list-tools", false, "List all available tools")
	tool := flag.String("tool", "", "Tool name to invoke")
	params := flag.String("params", "{}", "Tool parameters as JSON")
	flag.Parse()

	// Get auth token from flag or environment
	token := *authToken
	if token == "" {
		token = os.Getenv("GEVULOT_TOKEN")
	}

	// Create client
	mcpClient := client.NewMCPClient(*serverURL)
	if token != "" {
		mcpClient.SetAuthToken(token)
	}

	// Test connection
	if err := mcpClient.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to server: %v\n", err)
		os.Exit(1)
	}

	if !*jsonOutput {
		fmt.Printf("✓ Connected to Gevulot MCP server at %s\n\n", *serverURL)
	}

	// Run tests if requested
	if *testMode {
		runner := testpkg.NewTestRunner(mcpClient)
		runner.SetVerbose(*verbose)
		runner.SetJSONOutput(*jsonOutput)

		// Parse filter
		filter := testpkg.TestFilter{
			NamePattern: *testFilter,
		}

		if *testTags != "" {
			filter.Tags = strings.Split(*testTags, ",")
		}

		if *excludeTags != "" {
			filter.ExcludeTags = strings.Split(*excludeTags, ",")
		}

		runner.SetFilter(filter)

		// Add test suites
		runner.AddTests(suites.GetBasicTests())
		runner.AddTests(suites.GetChatTests())     // Needs a live orchestrator for most cases
		runner.AddTests(suites.GetSessionTests())
		runner.AddTests(suites.GetScheduleTests())
		runner.AddTests(suites.GetHistoryTests())

		// Run tests
		_ = runner.Run()

		// Exit with appropriate code
		os.Exit(runner.ExitCode())
	}

	// List tools if requested
	if *listTools {
		tools, err := mcpClient.ListTools()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list tools: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Available tools (%d):\n", len(tools))
		for _, t := range tools {
			fmt.Printf("  - %s\n", t.Name)
			if t.Description != "" {
				fmt.Printf("    %s\n", t.Description)
			}
		}
		return
	}

	// Invoke tool if specified
	if *tool != "" {
		// Parse parameters
		var toolParams map[string]interface{}
		if err := json.Unmarshal([]byte(*params), &toolParams); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse parameters: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Invoking tool: %s\n", *tool)
		fmt.Printf("Parameters: %s\n\n", *params)

		// Invoke tool
		result, err := mcpClient.InvokeTool(*tool, toolParams)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to invoke tool: %v\n", err)
			os.Exit(1)
		}

		// Display result
		if result.IsError {
			fmt.Println("❌ Tool returned error:")
		} else {
			fmt.Println("✓ Tool succeeded:")
		}

		content := result.GetToolContent()
		fmt.Println(content)

		if result.IsError {
			os.Exit(1)
		}
		return
	}

	// No action specified
	fmt.Println("Usage:")
	fmt.Println("  Test mode:     gevulot-test --test [--filter <pattern>] [--tags <tags>] [--verbose] [--json]")
	fmt.Println("  List tools:    gevulot-test --list-tools")
	fmt.Println("  Invoke tool:   gevulot-test --tool <name> --params '{\"key\":\"value\"}'")
	fmt.Println("\nExamples:")
	fmt.Println("  gevulot-test --test                               # Run all tests")
	fmt.Println("  gevulot-test --test --exclude-tags orchestrator   # Skip tests needing a live orchestrator")
	fmt.Println("  gevulot-test --test --filter schedule             # Run tests matching 'schedule'")
	fmt.Println("  gevulot-test --test --tags smoke                  # Run tests tagged 'smoke'")
	fmt.Println("  gevulot-test --test --verbose                     # Run with verbose logging")
	fmt.Println("  gevulot-test --test --json                        # Output as JSON")
	fmt.Println("  gevulot-test --list-tools                         # List all tools")
	fmt.Println("  gevulot-test --tool session --params '{\"action\":\"list\"}'")
	fmt.Println("  gevulot-test --tool history --params '{\"action\":\"sessions\"}'")
}
