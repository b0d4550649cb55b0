package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jtest "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jImage is the image of the Neo4j container. The enterprise variant is
// required for CREATE DATABASE and node key constraints.
//
// See <https://hub.docker.com/_/neo4j> for more images.
const Neo4jImage = "docker.io/neo4j:5-enterprise"

// Port of the transactional HTTP endpoint, which also serves the browser:
// <https://neo4j.com/docs/rest-docs/current>
const neo4jHTTP = nat.Port("7474/tcp")

// SetupNeo4j runs a new Neo4j container and returns a driver connected to it.
// Both are torn down during cleanup of t.
//
// The test is skipped with the '-short' flag and otherwise marked parallel, as
// container-based tests are long-running.
func SetupNeo4j(t *testing.T) neo4j.DriverWithContext {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping container-based test in short mode...")
	}
	t.Parallel()

	ctx := context.Background()

	opts := containerOptions(t,
		neo4jtest.WithoutAuthentication(),
		neo4jtest.WithAcceptCommercialLicenseAgreement(),
	)
	container, err := neo4jtest.Run(ctx, Neo4jImage, opts...)
	if err != nil {
		t.Fatal("Failed to run neo4j container:", err)
	}
	t.Cleanup(func() {
		t.Logf("Terminating neo4j container %q...", container.GetContainerID())
		if err := container.Terminate(ctx); err != nil {
			t.Error("Encountered an error during cleanup; terminate container:", err)
		}
	})

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatal("Failed to get bolt url:", err)
	}
	httpEndpoint, err := container.PortEndpoint(ctx, neo4jHTTP, "http")
	if err != nil {
		t.Fatal("Failed to get http endpoint:", err)
	}

	driver, err := neo4j.NewDriverWithContext(boltURL, neo4j.NoAuth())
	if err != nil {
		t.Fatal("Failed to open neo4j driver:", err)
	}
	t.Cleanup(func() {
		if err := driver.Close(ctx); err != nil {
			t.Error("Encountered an error during cleanup while closing the neo4j driver:", err)
		}
	})

	if err := verifyConnectivity(ctx, t, driver); err != nil {
		t.Fatalf("Failed to establish a connection with the remote neo4j server after retries: %v", err)
	}

	// Registered last so that it runs first, before the container is terminated.
	t.Cleanup(func() {
		if t.Failed() && *Inspect {
			t.Logf("Container %v is still running for inspection (Ctrl+C to terminate)...", container.GetContainerID())
			t.Logf("HTTP URL = %s/browser?preselectAuthMethod=%s&dbms=%s", httpEndpoint, url.QueryEscape("[NO_AUTH]"), url.QueryEscape(boltURL))
			t.Logf("Bolt URL = %s", boltURL)
			waitForInspection()
		}
	})

	return driver
}

// DatabaseName returns a valid database name that is unique to this call, so
// that subtests sharing a container do not observe each other's data.
func DatabaseName() string {
	return "twins-" + uuid.NewString()
}

// verifyConnectivity checks the connection to Neo4j, retrying a few times in
// case the container reported ready before the server accepts connections.
func verifyConnectivity(ctx context.Context, t *testing.T, driver neo4j.DriverWithContext) error {
	t.Helper()

	const retryLimit = 5
	const retryPause = 100 * time.Millisecond

	err := driver.VerifyConnectivity(ctx)
	for r := 0; err != nil && r < retryLimit; r++ {
		t.Logf("Attempting retry [%d/%d] after failing to establish a connection with the remote neo4j server: %v", r+1, retryLimit, err)
		select {
		case <-time.After(retryPause):
		case <-ctx.Done():
			return fmt.Errorf("retry pause interrupted: %w", ctx.Err())
		}
		err = driver.VerifyConnectivity(ctx)
	}
	return err
}
