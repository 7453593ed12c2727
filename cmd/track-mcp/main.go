package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/point-tracker-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("point-tracker-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("point-tracker-mcp - MCP server for sub-pixel point tracking")
			fmt.Println()
			fmt.Println("Usage: point-tracker-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  TRACK_MCP_LOG_LEVEL=debug          Enable debug logging")
			fmt.Println("  TRACK_MCP_WINDOW_SIZE=9            Odd tracking window side (1-31)")
			fmt.Println("  TRACK_MCP_MIN_EIGENVALUE=0.001     Caller eigenvalue floor")
			fmt.Println("  TRACK_MCP_BLUR_RADIUS=0            Gaussian pre-smoothing radius")
			fmt.Println("  TRACK_MCP_LUMA=bt601               Intensity model (bt601, lab)")
			fmt.Println("  TRACK_MCP_GRADIENT=sobel           Gradient operator (sobel, central)")
			fmt.Println("  TRACK_MCP_LEGACY_RESIDUAL=false    Half-width residual stride")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client.")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := server.ConfigFromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Debug {
		log.Printf("Point Tracker MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		log.Printf("Config: %+v", cfg)
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
