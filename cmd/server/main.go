package main

import (
	"log"

	"github.com/joho/godotenv"

	"wapair/internal/server"
)

func main() {
	_ = godotenv.Load()

	s, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	s.Run()
}
