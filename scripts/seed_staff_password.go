package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Quick utility to generate a bcrypt hash for a staff account password
// Usage: go run scripts/seed_staff_password.go <password>
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed_staff_password.go <password>")
		os.Exit(1)
	}

	password := os.Args[1]

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bcrypt Hash: %s\n", string(hashedPassword))
	fmt.Printf("\nTo seed a staff account in MongoDB, run:\n")
	fmt.Printf("db.staff.updateOne(\n")
	fmt.Printf("  {\"email\": \"desk@metrofound.example\"},\n")
	fmt.Printf("  {$set: {\"passwordHash\": \"%s\"}},\n", string(hashedPassword))
	fmt.Printf("  {upsert: true}\n")
	fmt.Printf(")\n")
}
