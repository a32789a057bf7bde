// Command live_probe drives a running sync gateway the way a classroom client
// does: create a record, edit it locally, let the debounced scheduler persist
// it, and watch the broadcast channel for convergence. Useful as a smoke test
// against a deployed instance.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/broadcast"
	"github.com/noah-isme/classroom-sync-api/internal/gateway"
	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/reconcile"
)

func main() {
	var (
		apiBase  string
		wsURL    string
		token    string
		classID  string
		debounce time.Duration
		wait     time.Duration
	)

	flag.StringVar(&apiBase, "api", "http://localhost:8080/api/v1", "Gateway API base URL")
	flag.StringVar(&wsURL, "ws", "ws://localhost:8080/ws", "Broadcast channel URL")
	flag.StringVar(&token, "token", "", "Bearer token")
	flag.StringVar(&classID, "class", "probe-class", "Class room to exercise")
	flag.DurationVar(&debounce, "debounce", 400*time.Millisecond, "Save debounce")
	flag.DurationVar(&wait, "wait", 5*time.Second, "How long to wait for convergence")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), wait+10*time.Second)
	defer cancel()

	client := gateway.NewClient(apiBase, logger)
	if token != "" {
		client = client.WithToken(token)
	}

	// Second participant: a bare subscriber that just counts what it sees.
	observer, err := broadcast.Dial(ctx, wsURL, "probe-observer", logger)
	if err != nil {
		log.Fatalf("dial observer: %v", err)
	}
	defer observer.Close() //nolint:errcheck

	observed := make(chan models.RecordSnapshot, 8)
	observer.On(classID, models.EventRecordUpdated, func(event string, payload []byte) {
		var evt models.RecordEventPayload
		if err := json.Unmarshal(payload, &evt); err != nil {
			logger.Warn("observer payload rejected", zap.Error(err))
			return
		}
		observed <- evt.Snapshot
	})
	go observer.Listen(ctx) //nolint:errcheck
	if err := observer.Join(classID); err != nil {
		log.Fatalf("observer join: %v", err)
	}

	// First participant: the editing client with the full runtime.
	editor, err := broadcast.Dial(ctx, wsURL, "probe-editor", logger)
	if err != nil {
		log.Fatalf("dial editor: %v", err)
	}
	defer editor.Close() //nolint:errcheck
	go editor.Listen(ctx) //nolint:errcheck
	if err := editor.Join(classID); err != nil {
		log.Fatalf("editor join: %v", err)
	}

	scheduler := reconcile.NewScheduler(client, broadcast.NewEmitter(editor, logger), debounce, logger,
		func(record *reconcile.Record, err error) {
			logger.Error("save failed", zap.String("id", record.ID()), zap.Error(err))
		})
	defer scheduler.Stop()

	snapshot, err := client.Create(ctx, classID, models.RecordKindAssignment, models.FieldPatch{
		"title": "probe assignment",
	})
	if err != nil {
		log.Fatalf("create record: %v", err)
	}
	fmt.Printf("created %s at revision %d\n", snapshot.ID, snapshot.Revision)

	reconciler := reconcile.NewReconciler(logger)
	record := reconciler.Track(snapshot)

	record.ApplyLocalEdit(models.FieldPatch{"title": "probe assignment (edited)"})
	scheduler.Notify(record)

	deadline := time.After(wait)
	for {
		select {
		case seen := <-observed:
			if seen.ID == snapshot.ID && seen.Revision > snapshot.Revision {
				fmt.Printf("observer converged on revision %d: %v\n", seen.Revision, seen.Fields["title"])
				return
			}
		case <-deadline:
			fmt.Fprintln(os.Stderr, "no convergence within deadline")
			os.Exit(1)
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "context cancelled")
			os.Exit(1)
		}
	}
}
