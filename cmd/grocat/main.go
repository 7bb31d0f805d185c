package main

import (
	"os"

	"github.com/joho/godotenv"

	"grocat/cmd/grocat/cmd"
)

func main() {
	// A .env file may carry GROCAT_USERNAME and GROCAT_PASSWORD.
	_ = godotenv.Load()

	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
