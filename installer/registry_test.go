package installer

import (
	"context"
	"testing"
)

func TestNewRegistrySelectsByURLScheme(t *testing.T) {
	ctx := context.Background()

	httpReg, err := NewRegistry(ctx, "https://cdn.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := httpReg.(*HTTPRegistry); !ok {
		t.Fatalf("expected *HTTPRegistry for a plain base URL, got %T", httpReg)
	}

	ghReg, err := NewRegistry(ctx, "github:acme/widgets")
	if err != nil {
		t.Fatal(err)
	}
	gh, ok := ghReg.(*GitHubRegistry)
	if !ok {
		t.Fatalf("expected *GitHubRegistry for a github: url, got %T", ghReg)
	}
	if gh.Owner != "acme" || gh.Repo != "widgets" {
		t.Fatalf("unexpected owner/repo: %+v", gh)
	}

	s3Reg, err := NewRegistry(ctx, "s3://my-bucket?region=us-west-2")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s3Reg.(*S3Registry); !ok {
		t.Fatalf("expected *S3Registry for an s3:// url, got %T", s3Reg)
	}
}

func TestNewRegistryRejectsMalformedGitHubURL(t *testing.T) {
	if _, err := NewRegistry(context.Background(), "github:justarepo"); err == nil {
		t.Fatal("expected an error for a github: url missing owner/repo")
	}
}
