// Command hash-password produces the bcrypt hash expected in
// ADMIN_PASSWORD_HASH. Reads the password from the first argument.
package main

import (
	"fmt"
	"log"
	"os"

	"flowchart_gateway/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <password>\n", os.Args[0])
		os.Exit(2)
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	fmt.Println(hash)
}
