package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// It persists settings and decisions to per-home collections.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(homeID, name string) (*firestore.CollectionRef, error) {
	if homeID == "" {
		return nil, fmt.Errorf("homeID cannot be empty")
	}
	return f.client.Collection("homes").Doc(homeID).Collection(name), nil
}

// GetSettings retrieves the household configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, homeID string) (types.Settings, int, error) {
	coll, err := f.getCollection(homeID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := unmarshalJSONField(doc, &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read settings doc", slog.String("homeID", homeID), slog.Any("err", err))
		return types.Settings{}, 0, fmt.Errorf("failed to read settings: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the household configuration to the "config/settings" document.
// It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, homeID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(homeID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// InsertDecision adds a new decision record to the "decision_history" collection as a JSON blob.
// The document ID is the fixed width timestamp for efficient range queries.
func (f *FirestoreProvider) InsertDecision(ctx context.Context, homeID string, decision types.Decision) error {
	if decision.Timestamp.IsZero() {
		return fmt.Errorf("decision missing timestamp")
	}
	jsonBytes, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	coll, err := f.getCollection(homeID, "decision_history")
	if err != nil {
		return err
	}
	_, err = coll.Doc(decisionID(decision.Timestamp)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": decision.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// GetDecisionHistory retrieves decision records within the specified time range.
// Uses document ID range queries for efficient filtering without reading all documents.
func (f *FirestoreProvider) GetDecisionHistory(ctx context.Context, homeID string, start, end time.Time) ([]types.Decision, error) {
	coll, err := f.getCollection(homeID, "decision_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(decisionID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(decisionID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var decisions []types.Decision
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating decisions: %w", err)
		}

		var d types.Decision
		if err := unmarshalJSONField(doc, &d); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to read decision doc", slog.String("decisionID", doc.Ref.ID), slog.String("homeID", homeID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to read decision (id=%s): %w", doc.Ref.ID, err)
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// GetLatestDecision retrieves the most recent decision or nil if there are none.
func (f *FirestoreProvider) GetLatestDecision(ctx context.Context, homeID string) (*types.Decision, error) {
	coll, err := f.getCollection(homeID, "decision_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest decision doc: %w", err)
	}

	var d types.Decision
	if err := unmarshalJSONField(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to read decision (id=%s): %w", doc.Ref.ID, err)
	}
	return &d, nil
}

// unmarshalJSONField decodes the "json" string field of a document into v.
func unmarshalJSONField(doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return nil
}
