package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/service"
	"golang.org/x/term"
)

// issue-token mints a signed JWT for local testing. Production tokens come
// from the platform's identity service.
func main() {
	var promptSecret bool
	var ttl time.Duration
	flag.BoolVar(&promptSecret, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	cfg := config.Load()
	secret := cfg.JWTSecret

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Issue Test Token ===")

	if promptSecret {
		fmt.Print("Enter Signing Secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after secret input
		if err != nil {
			fmt.Println("Error reading secret")
			return
		}
		secret = string(raw)
		if secret == "" {
			fmt.Println("Error: Secret is required")
			return
		}
	}

	// Token type
	fmt.Print("Token Type [learner/instructor] (default learner): ")
	typStr, _ := reader.ReadString('\n')
	tokenType := service.TokenTypeLearner
	switch strings.TrimSpace(typStr) {
	case "", "learner":
	case "instructor":
		tokenType = service.TokenTypeInstructor
	default:
		fmt.Println("Error: Token type must be learner or instructor")
		return
	}

	// User ID
	fmt.Print("Enter User ID: ")
	idStr, _ := reader.ReadString('\n')
	userID, err := strconv.Atoi(strings.TrimSpace(idStr))
	if err != nil || userID <= 0 {
		fmt.Println("Error: User ID must be a positive number")
		return
	}

	// Permissions
	var permissions []string
	if tokenType == service.TokenTypeInstructor {
		fmt.Println("Available permissions:")
		for _, p := range model.AllPermissions {
			fmt.Printf("  - %s\n", p)
		}
		fmt.Print("Enter Permissions (comma separated, 'all' for every one): ")
		permStr, _ := reader.ReadString('\n')
		permStr = strings.TrimSpace(permStr)

		if permStr == "all" {
			for _, p := range model.AllPermissions {
				permissions = append(permissions, string(p))
			}
		} else {
			for _, p := range strings.Split(permStr, ",") {
				if p = strings.TrimSpace(p); p != "" {
					permissions = append(permissions, p)
				}
			}
		}
	}

	token, err := service.NewAuthService(secret).IssueToken(tokenType, userID, permissions, ttl)
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%s token for user %d (expires in %s):\n%s\n", tokenType, userID, ttl, token)
}
