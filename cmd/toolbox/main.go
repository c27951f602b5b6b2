package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/slack-go/slack"
	"google.golang.org/api/iterator"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
	"accelo-slack-notifier/internal/services"
)

const (
	minArgsRequired   = 2
	filePermReadWrite = 0600
)

var ErrOperationCancelled = errors.New("operation cancelled by user")

func main() {
	if len(os.Args) < minArgsRequired {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "sync-users":
		handleSyncUsers()
	case "join-channels":
		handleJoinChannels()
	case "delete-message":
		handleDeleteMessage()
	case "count-requests":
		handleCountRequests()
	case "thread":
		handleThread()
	case "dump-firestore":
		handleDumpFirestore()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Toolbox - Operator commands for accelo-slack-notifier")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  toolbox <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  sync-users         Match Accelo staff to Slack users by email and store the links")
	fmt.Println("  join-channels      Join every channel named in REQUEST_CHANNELS and DENYLIST_CHANNEL")
	fmt.Println("  delete-message     Delete the Slack message of a request and forget it")
	fmt.Println("  count-requests     Count Accelo requests")
	fmt.Println("  thread             Print the Slack thread of a request message as JSON")
	fmt.Println("  dump-firestore     Export all stored documents as JSON")
	fmt.Println("  help               Show this help message")
	fmt.Println("")
	fmt.Println("Flags for delete-message:")
	fmt.Println("  --request ID       Accelo request ID (required)")
	fmt.Println("  --force            Skip confirmation prompt")
	fmt.Println("")
	fmt.Println("Flags for count-requests:")
	fmt.Println("  --standing VALUE   Only count requests with this standing (pending, open, closed, converted)")
	fmt.Println("")
	fmt.Println("Flags for thread:")
	fmt.Println("  --request ID       Accelo request ID (required)")
	fmt.Println("")
	fmt.Println("Flags for dump-firestore:")
	fmt.Println("  --output FILE      Write output to file instead of stdout")
	fmt.Println("  --pretty           Pretty-print JSON output")
	fmt.Println("")
}

// toolbox holds the clients every command shares.
type toolbox struct {
	cfg       *config.Config
	firestore *firestore.Client
	store     *services.FirestoreService
	accelo    *services.AcceloClient
	slack     *services.SlackService
}

func setup(ctx context.Context) *toolbox {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Toolbox output is always text.
	log.Setup(os.Stderr, cfg.LogLevel, "debug")

	log.Info(ctx, "Connecting to Firestore", "project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
	firestoreClient, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
	if err != nil {
		log.Error(ctx, "Failed to create Firestore client", "error", err)
		os.Exit(1)
	}

	acceloHTTP := services.NewAcceloHTTPClient(ctx, services.AcceloCredentials{
		TokenURL:     cfg.AcceloTokenURL(),
		ClientID:     cfg.AcceloClientID,
		ClientSecret: cfg.AcceloClientSecret,
		AccessToken:  cfg.AcceloAccessToken,
	})

	return &toolbox{
		cfg:       cfg,
		firestore: firestoreClient,
		store:     services.NewFirestoreService(firestoreClient),
		accelo: services.NewAcceloClient(cfg.AcceloAPIURL(), acceloHTTP,
			services.WithRateLimit(cfg.AcceloRateLimit, cfg.AcceloRateBurst)),
		slack: services.NewSlackService(slack.New(cfg.SlackBotToken)),
	}
}

func (tb *toolbox) close() {
	if err := tb.firestore.Close(); err != nil {
		log.Error(context.Background(), "Error closing Firestore client", "error", err)
	}
}

func (tb *toolbox) requestService() *services.RequestService {
	mentions := services.NewMentions(tb.store)
	messages := services.NewRequestMessageService(tb.cfg, tb.accelo, mentions)
	return services.NewRequestService(tb.accelo, tb.slack, messages, tb.store, tb.store, 0)
}

func handleSyncUsers() {
	fs := flag.NewFlagSet("sync-users", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	tb := setup(ctx)
	defer tb.close()

	result, err := services.NewUserSyncService(tb.accelo, tb.slack, tb.store).SyncUsers(ctx)
	if err != nil {
		log.Error(ctx, "Failed to sync users", "error", err)
		os.Exit(1)
	}

	log.Info(ctx, "Synced users", "matched", result.Matched, "unmatched", len(result.Unmatched))
	for _, id := range result.Unmatched {
		fmt.Printf("unmatched staff: %s\n", id)
	}
}

func handleJoinChannels() {
	fs := flag.NewFlagSet("join-channels", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	tb := setup(ctx)
	defer tb.close()

	channels := slices.Collect(maps.Values(tb.cfg.RequestChannels))
	if tb.cfg.DenylistChannel != "" {
		channels = append(channels, tb.cfg.DenylistChannel)
	}
	slices.Sort(channels)
	channels = slices.Compact(channels)

	failed := 0
	for _, channel := range channels {
		if err := tb.slack.JoinChannel(ctx, channel); err != nil {
			failed++
			continue
		}
		log.Info(ctx, "Joined channel", "channel", channel)
	}

	if failed > 0 {
		log.Error(ctx, "Failed to join some channels", "failed", failed, "total", len(channels))
		os.Exit(1)
	}
}

func handleDeleteMessage() {
	var requestID string
	var force bool

	fs := flag.NewFlagSet("delete-message", flag.ExitOnError)
	fs.StringVar(&requestID, "request", "", "Accelo request ID")
	fs.BoolVar(&force, "force", false, "Skip confirmation prompt")
	_ = fs.Parse(os.Args[2:])

	if requestID == "" {
		fmt.Fprintln(os.Stderr, "--request is required")
		os.Exit(1)
	}

	ctx := log.WithFields(context.Background(), log.LogFields{"request_id": requestID})
	tb := setup(ctx)
	defer tb.close()

	if !force {
		if err := confirm(fmt.Sprintf("Delete the Slack message of request %s?", requestID)); err != nil {
			if errors.Is(err, ErrOperationCancelled) {
				log.Info(ctx, "Operation cancelled by user")
				return
			}
			log.Error(ctx, "Failed to get confirmation", "error", err)
			os.Exit(1)
		}
	}

	if err := tb.requestService().DeleteRequestMessage(ctx, requestID); err != nil {
		log.Error(ctx, "Failed to delete request message", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Deleted request message")
}

func handleCountRequests() {
	var standing string

	fs := flag.NewFlagSet("count-requests", flag.ExitOnError)
	fs.StringVar(&standing, "standing", "", "Only count requests with this standing")
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	tb := setup(ctx)
	defer tb.close()

	var q services.AcceloQuery
	if standing != "" {
		q.Filters = models.Filters{"standing": []string{strings.ToLower(standing)}}
	}

	count, err := tb.accelo.Requests.Count(ctx, q)
	if err != nil {
		log.Error(ctx, "Failed to count requests", "error", err)
		os.Exit(1)
	}
	fmt.Println(count)
}

func handleThread() {
	var requestID string

	fs := flag.NewFlagSet("thread", flag.ExitOnError)
	fs.StringVar(&requestID, "request", "", "Accelo request ID")
	_ = fs.Parse(os.Args[2:])

	if requestID == "" {
		fmt.Fprintln(os.Stderr, "--request is required")
		os.Exit(1)
	}

	ctx := log.WithFields(context.Background(), log.LogFields{"request_id": requestID})
	tb := setup(ctx)
	defer tb.close()

	msgs, err := tb.requestService().RequestThread(ctx, requestID)
	if err != nil {
		log.Error(ctx, "Failed to fetch request thread", "error", err)
		os.Exit(1)
	}

	jsonData, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		log.Error(ctx, "Failed to marshal JSON", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

func handleDumpFirestore() {
	var outputFile string
	var prettyPrint bool

	fs := flag.NewFlagSet("dump-firestore", flag.ExitOnError)
	fs.StringVar(&outputFile, "output", "", "Write output to file instead of stdout")
	fs.BoolVar(&prettyPrint, "pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(os.Args[2:])

	ctx := context.Background()
	tb := setup(ctx)
	defer tb.close()

	dump := make(map[string][]map[string]any)
	for _, collection := range services.StoreCollections {
		docs, err := dumpCollection(ctx, tb.firestore, collection)
		if err != nil {
			log.Error(ctx, "Failed to dump collection", "collection", collection, "error", err)
			os.Exit(1)
		}
		dump[collection] = docs
		log.Info(ctx, "Collection dumped", "collection", collection, "documents", len(docs))
	}

	var jsonData []byte
	var err error
	if prettyPrint {
		jsonData, err = json.MarshalIndent(dump, "", "  ")
	} else {
		jsonData, err = json.Marshal(dump)
	}
	if err != nil {
		log.Error(ctx, "Failed to marshal JSON", "error", err)
		os.Exit(1)
	}

	if outputFile == "" {
		fmt.Println(string(jsonData))
		return
	}
	if err := os.WriteFile(outputFile, jsonData, filePermReadWrite); err != nil {
		log.Error(ctx, "Failed to write output file", "file", outputFile, "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Exported Firestore data", "file", outputFile, "size_bytes", len(jsonData))
}

func dumpCollection(ctx context.Context, client *firestore.Client, collectionName string) ([]map[string]any, error) {
	var documents []map[string]any

	iter := client.Collection(collectionName).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		data := doc.Data()
		if collectionName == "slack_workspaces" {
			delete(data, "access_token")
		}
		data["_id"] = doc.Ref.ID
		documents = append(documents, data)
	}

	return documents, nil
}

func confirm(question string) error {
	fmt.Printf("%s (type 'yes' to confirm): ", question)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read user input: %w", err)
	}

	if strings.TrimSpace(response) != "yes" {
		return ErrOperationCancelled
	}
	return nil
}
