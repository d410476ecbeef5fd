package state

import (
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/siqueiraa/labelflow/pkg/config"
)

const checkpointSuffix = ".badger.gz"

// checkpointName turns a repo id such as "realman/catch_banana" into a flat
// object name.
func checkpointName(name string) string {
	if name == "" {
		return "labelflow"
	}
	return strings.ReplaceAll(name, "/", "_")
}

// CheckpointPath is the local gzip backup written by CreateCheckpoint.
func (s *BadgerStore) CheckpointPath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(s.path)), s.name+checkpointSuffix)
}

// CreateCheckpoint writes a compressed backup next to the database and
// uploads it to S3 when configured. It is a no-op with checkpoints disabled.
func (s *BadgerStore) CreateCheckpoint(ctx context.Context) error {
	if !s.cfg.Checkpoint.Enabled {
		return nil
	}

	path := s.CheckpointPath()
	tmp := path + ".tmp"
	if err := s.writeBackup(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	log.Printf("[Checkpoint] Wrote %s", path)

	if s.cfg.Checkpoint.S3.Enabled {
		return s.uploadToS3(ctx, path)
	}
	return nil
}

func (s *BadgerStore) writeBackup(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := s.Backup(gz); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}

// RestoreCheckpoint loads a local backup written by CreateCheckpoint.
func (s *BadgerStore) RestoreCheckpoint(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()
	return s.Restore(gz)
}

// RunCheckpointer checkpoints every interval until ctx is done, then once
// more on the way out.
func (s *BadgerStore) RunCheckpointer(ctx context.Context, interval time.Duration) {
	if !s.cfg.Checkpoint.Enabled || interval <= 0 {
		return
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.CreateCheckpoint(context.Background()); err != nil {
				log.Printf("[Checkpoint] Final checkpoint failed: %v", err)
			}
			return
		case <-tk.C:
			if err := s.CreateCheckpoint(ctx); err != nil {
				log.Printf("[Checkpoint] Checkpoint failed: %v", err)
			}
		}
	}
}

func newS3Client(ctx context.Context, s3cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(s3cfg.Region),
		awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (s *BadgerStore) objectKey() string {
	return s.cfg.Checkpoint.S3.Prefix + s.name + checkpointSuffix
}

func (s *BadgerStore) uploadToS3(ctx context.Context, path string) error {
	client, err := newS3Client(ctx, s.cfg.Checkpoint.S3)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := manager.NewUploader(client).Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Checkpoint.S3.Bucket),
		Key:    aws.String(s.objectKey()),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("upload checkpoint: %w", err)
	}
	log.Printf("[Checkpoint] Uploaded to %s", res.Location)
	return nil
}

// restoreFromS3 loads the latest uploaded checkpoint. A missing object is
// not an error.
func (s *BadgerStore) restoreFromS3(ctx context.Context) error {
	if !s.cfg.Checkpoint.Enabled || !s.cfg.Checkpoint.S3.Enabled {
		return nil
	}
	client, err := newS3Client(ctx, s.cfg.Checkpoint.S3)
	if err != nil {
		return err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Checkpoint.S3.Bucket),
		Key:    aws.String(s.objectKey()),
	})
	if err != nil {
		log.Printf("[Checkpoint] No checkpoint found in S3: %v", err)
		return nil
	}
	defer resp.Body.Close()

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return err
	}
	defer gz.Close()

	log.Printf("[Checkpoint] Restoring checkpoint for %s from S3", s.name)
	return s.Restore(gz)
}
