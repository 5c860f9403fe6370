package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/smarttransit/seat-reservation/internal/utils"
)

func main() {
	bytes := flag.Int("bytes", utils.MinSecretBytes, "secret length in bytes")
	flag.Parse()

	secret, err := utils.GenerateJWTSecret(*bytes)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("Keep this secret out of version control.")
}
