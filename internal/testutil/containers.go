package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startService runs a single-port container and returns its host:port.
func startService(t *testing.T, image, port string, waitFor wait.Strategy, cmd []string) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s integration test in short mode", image)
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{port + "/tcp"},
		Cmd:          cmd,
		WaitingFor:   waitFor,
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return fmt.Sprintf("%s:%s", host, mapped.Port()), cleanup
}

// SetupRabbitMQ starts a RabbitMQ broker and returns its AMQP URL.
func SetupRabbitMQ(t *testing.T) (string, func()) {
	t.Helper()
	addr, cleanup := startService(t, "rabbitmq:3.13-alpine", "5672",
		wait.ForLog("Server startup complete").WithStartupTimeout(90*time.Second), nil)
	return "amqp://guest:guest@" + addr + "/", cleanup
}

// SetupMongo starts a single mongod and returns a connection URI.
func SetupMongo(t *testing.T) (string, func()) {
	t.Helper()
	addr, cleanup := startService(t, "mongo:7", "27017",
		wait.ForLog("Waiting for connections").WithStartupTimeout(60*time.Second), nil)
	return "mongodb://" + addr + "/?directConnection=true", cleanup
}

// SetupDynamoDB starts DynamoDB Local and returns its endpoint URL.
func SetupDynamoDB(t *testing.T) (string, func()) {
	t.Helper()
	addr, cleanup := startService(t, "amazon/dynamodb-local:latest", "8000",
		wait.ForListeningPort("8000/tcp").WithStartupTimeout(60*time.Second),
		[]string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"})
	return "http://" + addr, cleanup
}
