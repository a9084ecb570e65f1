package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()
	Execute()
}
