//go:build integration

package s3_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/dittodav/pkg/store"
	s3store "github.com/marmos91/dittodav/pkg/store/s3"
	"github.com/marmos91/dittodav/pkg/store/storetest"
)

// startLocalstack starts a Localstack container, or uses LOCALSTACK_ENDPOINT
// when set, and returns the endpoint URL.
func startLocalstack(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestConformance(t *testing.T) {
	endpoint := startLocalstack(t)

	var counter atomic.Int64
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		cfg := s3store.Config{
			Bucket:          "dittodav-test",
			Region:          "us-east-1",
			Endpoint:        endpoint,
			KeyPrefix:       fmt.Sprintf("run-%d-%d", time.Now().UnixNano(), counter.Add(1)),
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			ForcePathStyle:  true,
		}
		s, err := s3store.NewFromConfig(ctx, cfg)
		if err != nil {
			t.Fatalf("NewFromConfig() failed: %v", err)
		}
		if err := s.HealthCheck(ctx); err != nil {
			createBucket(t, cfg)
		}
		t.Cleanup(func() {
			_ = s.Close()
		})
		return s
	})
}

// createBucket creates the test bucket through a raw client.
func createBucket(t *testing.T, cfg s3store.Config) {
	t.Helper()

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	_, err := client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
}
