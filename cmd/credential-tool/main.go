package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-admission/internal/models"
	"ms-admission/internal/scan/qr"
	"ms-admission/internal/utils"
)

// credential-tool issues a ticket with a fresh opaque credential and renders
// the credential as an encrypted QR PNG, so a gate can be exercised end to
// end without the booking subsystem.
func main() {
	_ = godotenv.Load()

	eventID := flag.String("event", "", "event the ticket belongs to")
	holder := flag.String("holder", "", "ticket holder name")
	phone := flag.String("phone", "", "ticket holder phone")
	zone := flag.String("zone", "GA", "admission zone printed on the ticket")
	outDir := flag.String("out", ".", "directory for the QR PNG")
	flag.Parse()

	if *eventID == "" || *holder == "" {
		fmt.Fprintln(os.Stderr, "usage: credential-tool -event EVENT -holder NAME [-phone P] [-zone Z] [-out DIR]")
		os.Exit(2)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN not set")
	}
	secret := os.Getenv("QR_SECRET_KEY")
	if secret == "" {
		log.Fatal("QR_SECRET_KEY not set")
	}

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open Postgres: %v", err)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	ticket := models.Ticket{
		TicketID:    utils.GenerateTicketID(),
		EventID:     *eventID,
		Credential:  utils.GenerateCredential(),
		HolderName:  *holder,
		HolderPhone: *phone,
		Zone:        *zone,
		IssuedAt:    time.Now().UTC(),
	}

	if _, err := bunDB.NewInsert().Model(&ticket).Exec(context.Background()); err != nil {
		log.Fatalf("Failed to insert ticket: %v", err)
	}

	gen := qr.NewGenerator(secret)
	png, err := gen.EncodePayload(qr.Payload{
		TicketID:   ticket.TicketID,
		EventID:    ticket.EventID,
		Credential: ticket.Credential,
	})
	if err != nil {
		log.Fatalf("Failed to render QR: %v", err)
	}

	outPath := filepath.Join(*outDir, ticket.TicketID+".png")
	if err := os.WriteFile(outPath, png, 0644); err != nil {
		log.Fatalf("Failed to write QR PNG: %v", err)
	}

	fmt.Printf("Issued ticket %s for %s\n", ticket.TicketID, ticket.HolderName)
	fmt.Printf("Credential: %s\n", ticket.Credential)
	fmt.Printf("QR: %s\n", outPath)
}
