// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/groupsio/overseer/internal/app"
	"github.com/groupsio/overseer/internal/config"
)

var version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Admin API host (overrides config)")
	flag.IntVar(&port, "port", 0, "Admin API port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("overseerd %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}

	if application.ExitStatus() != 0 {
		os.Exit(1)
	}
}

// runInit handles the "overseerd init" command.
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: overseerd init [options]

Create a new overseer.hjson configuration file in the current directory.

This command walks you through setting up a supervisor configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Project name (defaults to current directory name)
  - Admin API port (defaults to 1234)
  - Services to supervise (name, command)
  - Whether services log JSON

Examples:
  overseerd init              Create config with interactive prompts
  cd myproject && overseerd init

After running init:
  1. Review and edit overseer.hjson as needed
  2. Run: ./overseerd
  3. Query: curl http://localhost:1234/api/v1/services`)
		return nil
	}

	configFile := "overseer.hjson"

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Overseer Configuration Setup")
	fmt.Println("============================")
	fmt.Println()
	fmt.Println("This will create an overseer.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	defaultName := filepath.Base(cwd)

	projectName := prompt(reader, "Project name", defaultName)

	portStr := prompt(reader, "Admin API port", "1234")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 1234
	}

	fmt.Println()
	fmt.Println("Services are long-running processes overseerd supervises (e.g. your backend server).")
	var services []serviceConfig
	for {
		addService := prompt(reader, "Add a service? (y/n)", "n")
		if strings.ToLower(addService) != "y" {
			break
		}
		svc := serviceConfig{}
		svc.Name = prompt(reader, "  Service name", "backend")
		svc.Command = prompt(reader, "  Command to run", "./bin/"+svc.Name)
		services = append(services, svc)
		fmt.Println()
	}

	fmt.Println()
	jsonLogs := prompt(reader, "Do your services output JSON logs? (y/n)", "y")
	useJSONLogs := strings.ToLower(jsonLogs) == "y"

	configContent := generateConfig(projectName, port, services, useJSONLogs)

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit overseer.hjson as needed")
	fmt.Println("  2. Run: ./overseerd")
	fmt.Println("  3. Query: curl http://localhost:" + strconv.Itoa(port) + "/api/v1/services")
	fmt.Println()

	return nil
}

type serviceConfig struct {
	Name    string
	Command string
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(projectName string, port int, services []serviceConfig, jsonLogs bool) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Overseer Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  // ---------------------------------------------------------------------------
  // Project Metadata
  // ---------------------------------------------------------------------------
  project: {
    name: "`)
	sb.WriteString(escapeHJSONValue(projectName))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // Admin API Server
  // ---------------------------------------------------------------------------
  server: {
    // Host to bind to (use "0.0.0.0" to allow remote access)
    host: "127.0.0.1"

    // Port for the read-only admin API
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`

    // For HTTPS, uncomment and set paths to your certificates:
    // tls_cert: "~/.overseer/cert.pem"
    // tls_key: "~/.overseer/key.pem"
  }

  // ---------------------------------------------------------------------------
  // Services
  // ---------------------------------------------------------------------------
  //
  // Each service is supervised independently: started in dependency order,
  // health-checked, and restarted according to its restart policy.
  services: [
`)

	if len(services) == 0 {
		sb.WriteString(`    // Example service configuration:
    // {
    //   name: "backend"
    //   command: "./bin/backend"       // string (split into arguments, no shell) or array form
    //   // command: ["./bin/backend", "-port", "8080"]
    //
    //   depends_on: []                 // names of services that must be Started first
    //
    //   healthiness: {
    //     kind: "tcp"                  // "none", "tcp", "http", "exec"
    //     address: "localhost:8080"
    //     interval: "1s"
    //     retries: 3
    //   }
    //
    //   restart: {
    //     strategy: "on-failure"       // "never", "on-failure", "always"
    //     attempts: 3
    //     backoff: "1s"
    //   }
    //
    //   failure: {
    //     strategy: "kill_dependents"  // "shutdown", "kill_dependents", "ignore"
    //     successful_exit_codes: [0]
    //   }
    //
    //   termination: {
    //     signal: "SIGTERM"
    //     wait: "10s"
    //   }
    // }
`)
	} else {
		for i, svc := range services {
			sb.WriteString(`    {
      name: "`)
			sb.WriteString(escapeHJSONValue(svc.Name))
			sb.WriteString(`"
      command: "`)
			sb.WriteString(escapeHJSONValue(svc.Command))
			sb.WriteString(`"

      // Uncomment to declare startup ordering:
      // depends_on: ["database"]

      // Uncomment to configure a health probe:
      // healthiness: {
      //   kind: "tcp"
      //   address: "localhost:8080"
      //   interval: "1s"
      //   retries: 3
      // }

      // Uncomment to customize the restart policy:
      // restart: { strategy: "on-failure", attempts: 3, backoff: "1s" }
    }`)
			if i < len(services)-1 {
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`  ]

  // ---------------------------------------------------------------------------
  // Event History
  // ---------------------------------------------------------------------------
  events: {
    history: {
      max_events: 10000
      max_age: "24h"
    }
  }

`)

	if jsonLogs {
		sb.WriteString(`  // ---------------------------------------------------------------------------
  // Default Log Parsing
  // ---------------------------------------------------------------------------
  //
  // These defaults apply to every service's captured output that doesn't
  // specify its own parser configuration.
  logging_defaults: {
    parser: {
      type: "json"

      timestamp: "ts"
      level: "level"
      message: "msg"
      id: "request_id"   // request-ID field name (crash reports keep raw lines and do not use it)
      stack: "stack"     // stack-trace field name (likewise unused by crash reports)
    }
  }

`)
	} else {
		sb.WriteString(`  // ---------------------------------------------------------------------------
  // Default Log Parsing
  // ---------------------------------------------------------------------------
  //
  // Uncomment and configure if your services output structured logs.
  //
  // logging_defaults: {
  //   parser: {
  //     type: "json"       // or "logfmt", "regex", "syslog", "none"
  //     timestamp: "ts"
  //     level: "level"
  //     message: "msg"
  //     id: "request_id"
  //     stack: "stack"
  //   }
  // }

`)
	}

	sb.WriteString(`  // ---------------------------------------------------------------------------
  // External Log Viewers
  // ---------------------------------------------------------------------------
  //
  // Every service's captured output is already readable via
  // /api/v1/services/{name}/logs. log_viewers adds external sources
  // (SSH, file, command, Docker, Kubernetes) to the same admin surface.
  //
  // log_viewers: [
  //   {
  //     name: "nginx"
  //     source: {
  //       type: "ssh"
  //       host: "web.example.com"
  //       path: "/var/log/nginx"
  //       current: "access.log"
  //     }
  //     parser: {
  //       type: "json"
  //       timestamp: "time"
  //       level: "status"
  //       message: "request"
  //     }
  //   }
  // ]

  // ---------------------------------------------------------------------------
  // Crash Reports
  // ---------------------------------------------------------------------------
  //
  // When a service ends in FinishedFailed, overseerd saves a report with
  // its most recent captured output lines (unparsed).
  crashes: {
    reports_dir: ".overseer/crashes"
    max_age: "7d"
    max_count: 100
  }
}
`)

	return sb.String()
}
