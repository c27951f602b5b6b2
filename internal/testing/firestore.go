// Package testing provides a Firestore emulator harness for store tests.
package testing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	emulatorHostEnv     = "FIRESTORE_EMULATOR_HOST"
	emulatorStartupTime = 10 * time.Second
	pollInterval        = 100 * time.Millisecond
	httpRequestTimeout  = 1 * time.Second
)

var ErrEmulatorStartTimeout = errors.New("emulator did not start within timeout")

// FirestoreEmulator is one isolated project on a Firestore emulator.
type FirestoreEmulator struct {
	Host      string
	ProjectID string
	Client    *firestore.Client
}

// SetupFirestoreEmulator connects to the emulator named by
// FIRESTORE_EMULATOR_HOST, or starts one with gcloud. The test is skipped
// when neither is available. Every call gets its own project, so tests never
// see each other's documents. Cleanup is registered on t.
func SetupFirestoreEmulator(t *testing.T) (*FirestoreEmulator, context.Context) {
	t.Helper()

	ctx := context.Background()
	emulator := &FirestoreEmulator{
		Host:      os.Getenv(emulatorHostEnv),
		ProjectID: "test-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	}

	if emulator.Host == "" {
		if _, err := exec.LookPath("gcloud"); err != nil {
			t.Skip("Firestore emulator not available: set FIRESTORE_EMULATOR_HOST or install gcloud")
		}
		cmd, err := emulator.start(t)
		if err != nil {
			t.Skipf("Firestore emulator could not be started: %v", err)
		}
		t.Cleanup(func() { _ = cmd.Process.Kill() })
	}

	conn, err := grpc.Dial(emulator.Host, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to create gRPC connection: %v", err)
	}

	client, err := firestore.NewClient(ctx, emulator.ProjectID, option.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		t.Fatalf("Failed to create Firestore client: %v", err)
	}
	emulator.Client = client
	t.Cleanup(func() { _ = client.Close() })

	return emulator, ctx
}

func (e *FirestoreEmulator) start(t *testing.T) (*exec.Cmd, error) {
	t.Helper()

	port, err := findAvailablePort()
	if err != nil {
		return nil, err
	}
	e.Host = fmt.Sprintf("localhost:%d", port)

	// #nosec G204 -- Static arguments for test emulator command
	cmd := exec.Command("gcloud", "emulators", "firestore", "start", "--host-port", e.Host)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start emulator: %w", err)
	}
	t.Setenv(emulatorHostEnv, e.Host)

	if err := e.waitForEmulator(); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	return cmd, nil
}

func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

func (e *FirestoreEmulator) waitForEmulator() error {
	deadline := time.Now().Add(emulatorStartupTime)
	url := fmt.Sprintf("http://%s/", e.Host)

	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), httpRequestTimeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			resp, err := http.DefaultClient.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					cancel()
					return nil
				}
			}
		}
		cancel()
		time.Sleep(pollInterval)
	}

	return fmt.Errorf("%w: %v", ErrEmulatorStartTimeout, emulatorStartupTime)
}
