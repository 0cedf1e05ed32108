// Command certadmin prepares certificates-data.json from the organisers'
// spreadsheets and maintains the import database behind it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aimlclub/hackathon-portal/internal/ingestion"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&app{}).ExecuteContext(ctx)
	stop()

	if err != nil {
		// malformed input gets the one message organisers are told to expect
		if errors.Is(err, ingestion.ErrMalformedSpreadsheet) {
			fmt.Fprintln(os.Stderr, ingestion.ErrMalformedSpreadsheet.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
