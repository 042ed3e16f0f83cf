package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/util/compression"
)

// ObjectAPI is the part of the S3 client the object store needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Repository stores each draft as a gzip-compressed JSON object.
type S3Repository struct { // implements Repository
	api        ObjectAPI
	bucket     string
	prefix     string
	compressor compression.Compressor
	now        func() time.Time
}

// s3Object is the stored form of a draft. The payload is kept as JSON text so
// a corrupt payload does not make the whole object unreadable.
type s3Object struct {
	DraftID   model.DraftID `json:"draftId"`
	DocType   model.DocType `json:"docType"`
	Payload   string        `json:"payload"`
	Progress  int           `json:"progress"`
	Status    model.Status  `json:"status"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading S3 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Repository(api ObjectAPI, bucket, prefix string) *S3Repository {
	return &S3Repository{
		api:        api,
		bucket:     bucket,
		prefix:     prefix,
		compressor: compression.GzipCompressor{},
		now:        now,
	}
}

func (r *S3Repository) CreateDraft(ctx context.Context, docType model.DocType) (*model.Draft, error) {
	draft := model.NewDraft(model.DraftID(uuid.New().String()), docType, r.now())
	if err := r.put(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (r *S3Repository) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	return r.get(ctx, id)
}

func (r *S3Repository) SaveDraft(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	draft, err := r.get(ctx, id)
	if err != nil {
		return model.UpdateResult{}, err
	}

	draft.Payload = payload
	draft.Progress = progress
	draft.UpdatedAt = r.now()
	if err := r.put(ctx, draft); err != nil {
		return model.UpdateResult{}, err
	}
	return model.UpdateResult{OK: true, UpdatedAt: draft.UpdatedAt}, nil
}

func (r *S3Repository) SubmitDraft(ctx context.Context, id model.DraftID) (model.UpdateResult, error) {
	draft, err := r.get(ctx, id)
	if err != nil {
		return model.UpdateResult{}, err
	}

	draft.Status = model.StatusSubmitted
	draft.UpdatedAt = r.now()
	if err := r.put(ctx, draft); err != nil {
		return model.UpdateResult{}, err
	}
	return model.UpdateResult{OK: true, UpdatedAt: draft.UpdatedAt}, nil
}

func (r *S3Repository) key(id model.DraftID) string {
	return r.prefix + string(id) + ".json"
}

func (r *S3Repository) get(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if isMissingObject(err) {
		return nil, model.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching draft object: %w", err)
	}
	defer out.Body.Close()

	compressed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading draft object: %w", err)
	}
	raw, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing draft object: %w", err)
	}

	var obj s3Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("error decoding draft object: %w", err)
	}

	return &model.Draft{
		ID:        id,
		DocType:   obj.DocType,
		Payload:   decodePayload(id, []byte(obj.Payload)),
		Progress:  obj.Progress,
		Status:    obj.Status,
		UpdatedAt: obj.UpdatedAt.UTC(),
	}, nil
}

func (r *S3Repository) put(ctx context.Context, draft *model.Draft) error {
	payload, err := encodePayload(draft.Payload)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}

	raw, err := json.Marshal(s3Object{
		DraftID:   draft.ID,
		DocType:   draft.DocType,
		Payload:   payload,
		Progress:  draft.Progress,
		Status:    draft.Status,
		UpdatedAt: draft.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("error encoding draft object: %w", err)
	}

	compressed, err := r.compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("error compressing draft object: %w", err)
	}

	_, err = r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(r.bucket),
		Key:             aws.String(r.key(draft.ID)),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("error writing draft object: %w", err)
	}
	return nil
}

func isMissingObject(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
