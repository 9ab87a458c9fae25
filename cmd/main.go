package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rhcarvalho/relay/internal/app"
	"github.com/rhcarvalho/relay/internal/config"
)

func main() {
	args := os.Args[1:]
	subcommand := "run"
	if len(args) > 0 && !isFlag(args[0]) {
		subcommand = args[0]
		args = args[1:]
	}

	switch subcommand {
	case "run":
		runCommand(args)
	case "credentials":
		credentialsCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q (expected \"run\" or \"credentials\")\n", subcommand)
		os.Exit(1)
	}
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

// runCommand starts the ingest agent: the default behavior when no
// subcommand is given.
func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var configFile string
	fs.StringVar(&configFile, "config", "", "Path to configuration file")
	fs.Parse(args)

	if configFile == "" {
		if envConfigFile := os.Getenv("RELAY_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "/app/configs/relay.yaml"
		}
	}

	fmt.Printf("Using configuration file: %s\n", configFile)

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// credentialsCommand implements "relay credentials generate", forcing a
// fresh agent keypair and id regardless of what's already on disk.
func credentialsCommand(args []string) {
	if len(args) == 0 || args[0] != "generate" {
		fmt.Fprintln(os.Stderr, "usage: relay credentials generate [-path FILE]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("credentials generate", flag.ExitOnError)
	var path string
	fs.StringVar(&path, "path", "", "Path to write the credentials file (default ~/.relay/credentials.yml)")
	fs.Parse(args[1:])

	creds, err := config.GenerateCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate credentials: %v\n", err)
		os.Exit(1)
	}

	resolved, err := config.SaveCredentials(path, creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save credentials: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated new agent credentials\n  id: %s\n  public_key: %s\n  file: %s\n", creds.ID, creds.PublicKey, resolved)
}
