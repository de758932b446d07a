// Command admin manages staff roles and access approvals from the shell.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"bloghub/internal/bootstrap"
	"bloghub/internal/cache"
	"bloghub/internal/config"
	"bloghub/internal/database"
	"bloghub/internal/models"
	"bloghub/internal/notifications"
	"bloghub/internal/repository"
	"bloghub/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin set-role <user_id> <member|moderator|admin>")
	fmt.Println("  go run ./cmd/admin approve <user_id>")
	fmt.Println("  go run ./cmd/admin list-staff")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := bootstrap.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch os.Args[1] {
	case "set-role":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		role, ok := models.ParseRole(os.Args[3])
		if !ok {
			log.Fatalf("Unknown role %q", os.Args[3])
		}
		id := parseUserID(os.Args[2])
		if err := users.SetRole(ctx, id, role); err != nil {
			log.Fatalf("Failed to set role: %v", err)
		}
		fmt.Printf("User %d is now %s\n", id, role)

	case "approve":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		// Redis is optional; without it the user sees the notice on next load.
		access := service.NewAccessService(users, notifications.NewNotifier(cache.InitRedis(cfg.RedisURL)))
		user, err := access.Approve(ctx, parseUserID(os.Args[2]))
		if err != nil {
			log.Fatalf("Failed to approve: %v", err)
		}
		fmt.Printf("Approved %s <%s> (ID: %d)\n", user.Name, user.Email, user.ID)

	case "list-staff":
		staff, err := users.ListStaff(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch staff: %v", err)
		}
		if len(staff) == 0 {
			fmt.Println("No staff accounts found")
			return
		}
		for _, u := range staff {
			fmt.Printf("ID: %d | Role: %s | Name: %s | Email: %s\n", u.ID, u.Role, u.Name, u.Email)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func parseUserID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user id %q", raw)
	}
	return uint(id)
}
