package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/veslav/loan-counselor/cmd"
)

func main() {
	// A .env file is optional and only used for local development.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
