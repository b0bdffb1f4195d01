package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"chartlab/internal/cli"
	"chartlab/internal/logging"
)

func main() {
	// A missing .env is fine; CHARTLAB_* may come from the real environment.
	_ = godotenv.Load()

	root := cli.NewRootCmd(logging.NewLogger())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
