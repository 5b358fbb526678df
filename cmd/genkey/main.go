package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

// genkey prints fresh secrets for JWT_SECRET and WEBHOOK_SECRET, ready to
// paste into .env.
func main() {
	size := flag.Int("bytes", 32, "random bytes per secret")
	flag.Parse()

	if *size < 16 {
		fmt.Fprintln(os.Stderr, "error: -bytes must be at least 16")
		os.Exit(1)
	}

	for _, name := range []string{"JWT_SECRET", "WEBHOOK_SECRET"} {
		secret, err := generate(*size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", name, secret)
	}
}

func generate(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
