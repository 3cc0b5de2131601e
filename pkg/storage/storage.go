package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/devicerudder/pkg/types"
)

// Database defines the interface for persisting settings and the decision log.
// Nothing stored here is read back by the controller.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, homeID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, homeID string, settings types.Settings, version int) error

	// Decisions
	InsertDecision(ctx context.Context, homeID string, decision types.Decision) error
	GetDecisionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Decision, error)
	GetLatestDecision(ctx context.Context, homeID string) (*types.Decision, error)

	// Lifecycle
	Close() error
}

// decisionIDFormat is a fixed width timestamp so IDs sort lexicographically.
const decisionIDFormat = "2006-01-02T15:04:05.000000000Z"

func decisionID(t time.Time) string {
	return t.UTC().Format(decisionIDFormat)
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
