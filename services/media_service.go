package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/config"
	errs "github.com/techagentng/rentchat/errors"
	"github.com/techagentng/rentchat/models"
)

// MaxMediaSize caps a single chat attachment.
const MaxMediaSize = 10 << 20

var supportedMedia = map[string]models.MessageKind{
	"image/jpeg": models.KindImage,
	"image/png":  models.KindImage,
	"image/gif":  models.KindImage,
	"image/webp": models.KindImage,
	"audio/mpeg": models.KindVoice,
	"audio/mp4":  models.KindVoice,
	"audio/aac":  models.KindVoice,
	"audio/ogg":  models.KindVoice,
	"audio/webm": models.KindVoice,
}

// MediaKind reports the message kind a content type can back.
func MediaKind(contentType string) (models.MessageKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	k, ok := supportedMedia[ct]
	return k, ok
}

// ObjectPutter is the part of *s3.Client the media service needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type MediaResponse struct {
	URL  string             `json:"url"`
	Kind models.MessageKind `json:"kind"`
}

// MediaService interface
type MediaService interface {
	// Upload stores a chat attachment and returns its public URL. It must
	// finish before a message can reference the file.
	Upload(ctx context.Context, userID uuid.UUID, upload MediaUpload) (*MediaResponse, error)
}

type mediaService struct {
	client ObjectPutter
	bucket string
	region string
	log    zerolog.Logger
}

func NewMediaService(client ObjectPutter, conf *config.Config, log zerolog.Logger) MediaService {
	return &mediaService{
		client: client,
		bucket: conf.AWSBucket,
		region: conf.AWSRegion,
		log:    log.With().Str("service", "media").Logger(),
	}
}

// NewS3Client builds an S3 client from static credentials in conf.
func NewS3Client(ctx context.Context, conf *config.Config) (*s3.Client, error) {
	cfg, err := fig.LoadDefaultConfig(ctx,
		fig.WithRegion(conf.AWSRegion),
		fig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (s *mediaService) Upload(ctx context.Context, userID uuid.UUID, upload MediaUpload) (*MediaResponse, error) {
	if s.bucket == "" {
		return nil, errs.New("media storage is not configured", http.StatusServiceUnavailable)
	}
	if upload.Size > MaxMediaSize {
		return nil, errs.New(fmt.Sprintf("file exceeds %d bytes", MaxMediaSize), http.StatusRequestEntityTooLarge)
	}
	kind, ok := MediaKind(upload.ContentType)
	if !ok {
		return nil, errs.New(fmt.Sprintf("unsupported media type %q", upload.ContentType), http.StatusUnsupportedMediaType)
	}

	key := fmt.Sprintf("chat/%s/%s_%s%s", userID, kind, uuid.New().String(), strings.ToLower(filepath.Ext(upload.Filename)))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          upload.Body,
		ACL:           types.ObjectCannedACLPublicRead,
		ContentType:   aws.String(upload.ContentType),
		ContentLength: aws.Int64(upload.Size),
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("upload to s3")
		return nil, errs.New("failed to upload file", http.StatusBadGateway)
	}

	return &MediaResponse{
		URL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
		Kind: kind,
	}, nil
}
