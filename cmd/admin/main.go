package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"gamelauncher/backend/internal/auth"
	"gamelauncher/backend/internal/chathub"
	"gamelauncher/backend/internal/config"
	"gamelauncher/backend/internal/conversation"
	"gamelauncher/backend/internal/logging"
	"gamelauncher/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]
  token <user_id>                        issue a bearer token
  conversations <user_id>                list a user's conversations
  unread <user_id>                       unread counts per conversation
  remove <conversation_id> <user_id>     remove a conversation as one of its participants`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	command := os.Args[1]
	if command == "token" {
		requireArgs(3, "admin token <user_id>")
		authn := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
		token, err := authn.GenerateToken(os.Args[2])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	// No live sessions exist here, so fan-out is a no-op; the service still
	// enforces the same rules as the server.
	quiet := logging.Discard()
	router := chathub.NewRouter(chathub.NewRegistry(nil, quiet))
	svc := conversation.NewService(storageSvc, router, quiet)
	ctx := context.Background()

	switch command {
	case "conversations":
		requireArgs(3, "admin conversations <user_id>")
		if err := listConversations(ctx, svc, os.Args[2]); err != nil {
			fail("Error listing conversations", err)
		}
	case "unread":
		requireArgs(3, "admin unread <user_id>")
		if err := printUnread(ctx, svc, os.Args[2]); err != nil {
			fail("Error counting unread messages", err)
		}
	case "remove":
		requireArgs(4, "admin remove <conversation_id> <user_id>")
		if err := svc.Remove(ctx, os.Args[3], os.Args[2]); err != nil {
			fail("Error removing conversation", err)
		}
		fmt.Printf("Conversation %s has been removed.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArgs(n int, help string) {
	if len(os.Args) != n {
		fmt.Println("Usage: " + help)
		os.Exit(1)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func listConversations(ctx context.Context, svc *conversation.Service, userID string) error {
	list, err := svc.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range list {
		fmt.Printf("%s\t%s\t%s -> %s\t%s\n", c.ID, c.Status, c.RequesterID, c.AddresseeID, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func printUnread(ctx context.Context, svc *conversation.Service, userID string) error {
	counts, err := svc.UnreadCounts(ctx, userID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s\t%d\n", id, counts[id])
	}
	return nil
}
