package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
)

// Objects are immutable once uploaded (new uploads get new keys), so
// they can be cached for a year.
const objectCacheControl = "public, max-age=31536000"

const deleteThreads = 8

// Storage uploads public assets to a Spaces bucket. URLs are rewritten
// to the CDN edge when enabled.
type Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	endpoint string
	useCDN   bool
}

func New(ctx context.Context, spacesConfig config.SpacesConfig) (*Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(spacesConfig.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(spacesConfig.Key, spacesConfig.Secret, ""),
		),
	)
	if err != nil {
		return nil, gerrors.Wrapf(err, "load spaces config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(spacesConfig.Endpoint)
	})
	return &Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   spacesConfig.Bucket,
		endpoint: spacesConfig.Endpoint,
		useCDN:   spacesConfig.CDN,
	}, nil
}

// Upload stores data under key with public-read ACL and returns the
// public URL.
func (s *Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		ACL:          types.ObjectCannedACLPublicRead,
		CacheControl: aws.String(objectCacheControl),
	})
	if err != nil {
		return "", gerrors.Wrapf(err, "upload %s", key)
	}
	publicURL := s.PublicURL(key)
	log.Debug(ctx, "Uploaded object", "key", key, "url", publicURL)
	return publicURL, nil
}

// Delete removes the object at key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return gerrors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// DeletePrefix removes every object under prefix, e.g. a deleted
// salon's cover and gallery.
func (s *Storage) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteThreads)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return gerrors.Wrapf(err, "list %s", prefix)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			g.Go(func() error {
				return s.Delete(ctx, key)
			})
		}
	}
	return g.Wait()
}

// PublicURL builds the virtual-hosted URL for key, on the CDN host when
// enabled.
func (s *Storage) PublicURL(key string) string {
	host := s.endpointHost()
	if s.useCDN {
		host = cdnHost(host)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, host, key)
}

// KeyFromURL recovers the object key from a URL previously returned by
// Upload, accepting both origin and CDN hosts.
func (s *Storage) KeyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	if !strings.HasPrefix(u.Host, s.bucket+".") {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", false
	}
	return key, true
}

func (s *Storage) endpointHost() string {
	u, err := url.Parse(s.endpoint)
	if err != nil || u.Host == "" {
		return s.endpoint
	}
	return u.Host
}

func cdnHost(host string) string {
	if strings.Contains(host, ".cdn.") || !strings.HasSuffix(host, ".digitaloceanspaces.com") {
		return host
	}
	return strings.TrimSuffix(host, ".digitaloceanspaces.com") + ".cdn.digitaloceanspaces.com"
}

// AvatarKey is the canonical object key for a profile avatar. Each
// user keeps a single avatar object that new uploads overwrite.
func AvatarKey(userType, keycloakID, ext string) string {
	return fmt.Sprintf("marketplace/avatars/%s/%s/avatar.%s", strings.ToLower(userType), keycloakID, ext)
}

// SalonCoverKey is the object key for a salon's cover image.
func SalonCoverKey(salonID uint, ext string) string {
	return fmt.Sprintf("marketplace/salons/%d/cover.%s", salonID, ext)
}

// SalonGalleryKey is the object key for a gallery image, timestamped so
// uploads never collide.
func SalonGalleryKey(salonID uint, unixTS int64, ext string) string {
	return fmt.Sprintf("marketplace/salons/%d/gallery/%d.%s", salonID, unixTS, ext)
}
