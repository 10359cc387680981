package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	ReportID       string  `json:"report_id"`
	Key            string  `json:"key"`
	LeadScore      int     `json:"lead_score"`
	LeadCategory   string  `json:"lead_category"`
	PersonaID      string  `json:"persona_id"`
	MaxLoan        float64 `json:"max_loan"`
	LimitingFactor string  `json:"limiting_factor"`
	GeneratedAt    string  `json:"generated_at"`
}

// Archive stores generated reports in S3. An Archive without a bucket is
// disabled and every call is a no-op.
type Archive struct {
	bucket string
	client S3API
	logger *logging.Logger
}

func NewArchive(client S3API, bucket string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{bucket: bucket, client: client, logger: logger}
}

// Enabled reports whether a bucket and client are configured.
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.client != nil
}

// Store writes rep under reports/v1/by-date/ and returns the object key.
func (a *Archive) Store(ctx context.Context, rep *Report) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("reports: marshal report: %w", err)
	}

	at := rep.GeneratedAt.UTC()
	key := fmt.Sprintf("reports/v1/by-date/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), rep.ID)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("reports: s3 put %s: %w", key, err)
	}

	entry := ManifestEntry{
		ReportID:       rep.ID,
		Key:            key,
		LeadScore:      rep.Score.Value,
		LeadCategory:   string(rep.Score.Category),
		PersonaID:      rep.Persona.ID,
		MaxLoan:        rep.Calculation.MaxLoan,
		LimitingFactor: string(rep.Calculation.LimitingFactor),
		GeneratedAt:    at.Format(time.RFC3339),
	}
	if err := a.appendManifest(ctx, at, entry); err != nil {
		// The report itself is stored.
		a.logger.Warn("report manifest append failed", "report_id", rep.ID, "error", err)
	}
	a.logger.Info("report archived", "report_id", rep.ID, "key", key)
	return key, nil
}

// appendManifest rewrites the monthly JSONL manifest; S3 has no append.
func (a *Archive) appendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("reports: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("reports/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	var existing []byte
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		existing, err = io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return fmt.Errorf("reports: read manifest: %w", err)
		}
	case isNotFound(err):
	default:
		return fmt.Errorf("reports: get manifest: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("reports: put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}
