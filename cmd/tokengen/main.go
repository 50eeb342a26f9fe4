// Command tokengen prints a bearer token for local testing. It signs with
// JWT_SECRET, read the same way the server reads it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"eventlisting/config"
	"eventlisting/internal/adapters/auth"

	"github.com/google/uuid"
)

func main() {
	userID := flag.String("user", "", "user id (a random one when empty)")
	roles := flag.String("roles", "user", "comma separated roles")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *userID == "" {
		*userID = uuid.NewString()
	} else if uuid.Validate(*userID) != nil {
		log.Fatalf("user must be a UUID, got %q", *userID)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*userID, roleList, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
