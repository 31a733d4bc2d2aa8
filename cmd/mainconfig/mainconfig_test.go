package mainconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
)

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-west-2",
		AWSAccessKeyID:      "AKIDEXAMPLE",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("expected region us-west-2, got %s", awsCfg.Region)
	}

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Fatalf("expected static credentials, got %s", creds.AccessKeyID)
	}

	for _, service := range []string{bedrockruntime.ServiceID, sesv2.ServiceID} {
		ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(service, "us-west-2")
		if err != nil {
			t.Fatalf("%s: unexpected resolver error: %v", service, err)
		}
		if ep.URL != "http://localhost:4566" {
			t.Fatalf("%s: expected override endpoint, got %s", service, ep.URL)
		}
	}
	if _, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "us-west-2"); err == nil {
		t.Fatalf("expected other services to use default endpoints")
	}
}

func TestNeedsAWS(t *testing.T) {
	tests := []struct {
		name string
		cfg  *appconfig.Config
		want bool
	}{
		{"nil", nil, false},
		{"nothing configured", &appconfig.Config{LLMProvider: "auto", EmailProvider: "none"}, false},
		{"bedrock", &appconfig.Config{LLMProvider: "auto", BedrockModelID: "m"}, true},
		{"bedrock disabled", &appconfig.Config{LLMProvider: "none", BedrockModelID: "m"}, false},
		{"ses", &appconfig.Config{EmailProvider: "ses", EscalationEmailTo: "oncall@example.edu"}, true},
		{"ses without recipient", &appconfig.Config{EmailProvider: "ses"}, false},
		{"ses with blank list", &appconfig.Config{EmailProvider: "ses", EscalationEmailTo: ", "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsAWS(tt.cfg); got != tt.want {
				t.Fatalf("NeedsAWS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MINDBRIDGE_TEST_A=from-file\nMINDBRIDGE_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MINDBRIDGE_TEST_A", "from-env")
	t.Setenv("MINDBRIDGE_TEST_B", "")
	os.Unsetenv("MINDBRIDGE_TEST_B")

	LoadEnv(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("MINDBRIDGE_TEST_A"); got != "from-env" {
		t.Fatalf("expected existing variable to win, got %q", got)
	}
	if got := os.Getenv("MINDBRIDGE_TEST_B"); got != "from-file" {
		t.Fatalf("expected variable loaded from file, got %q", got)
	}
}
