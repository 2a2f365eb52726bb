package oss

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/repo_scan_server/config"
)

const reportPrefix = "reports/"

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

// Enabled reports whether enough settings are present to use OSS.
func Enabled(cfg *config.OSSConfig) bool {
	return cfg.Endpoint != "" && cfg.BucketName != "" && cfg.AccessKeyID != ""
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// ReportKey object key of the report of one job.
func ReportKey(projectName, jobID string) string {
	name := strings.Trim(strings.ReplaceAll(projectName, "/", "_"), ".")
	if name == "" {
		name = "repository"
	}
	return fmt.Sprintf("%s%s/%s.json", reportPrefix, name, jobID)
}

// UploadReport stores a JSON analysis report and returns its URL.
func (c *Client) UploadReport(key string, data []byte) (string, error) {
	err := c.bucket.PutObject(key, bytes.NewReader(data), oss.ContentType("application/json"))
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return c.GetURL(key), nil
}

// DeleteReportsBefore removes reports last modified before cutoff.
func (c *Client) DeleteReportsBefore(cutoff time.Time) (int, error) {
	var (
		removed int
		token   string
	)
	for {
		opts := []oss.Option{oss.Prefix(reportPrefix), oss.MaxKeys(500)}
		if token != "" {
			opts = append(opts, oss.ContinuationToken(token))
		}
		res, err := c.bucket.ListObjectsV2(opts...)
		if err != nil {
			return removed, fmt.Errorf("failed to list reports: %w", err)
		}

		var keys []string
		for _, obj := range res.Objects {
			if obj.LastModified.Before(cutoff) {
				keys = append(keys, obj.Key)
			}
		}
		if len(keys) > 0 {
			deleted, err := c.bucket.DeleteObjects(keys, oss.DeleteObjectsQuiet(true))
			if err != nil {
				return removed, fmt.Errorf("failed to delete reports: %w", err)
			}
			// quiet mode lists only the keys that failed
			removed += len(keys) - len(deleted.DeletedObjects)
		}

		if !res.IsTruncated {
			return removed, nil
		}
		token = res.NextContinuationToken
	}
}

// GetURL returns the public URL of an object.
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// GetSignedURL returns a temporary URL, valid one hour unless expireSeconds
// says otherwise.
func (c *Client) GetSignedURL(objectKey string, expireSeconds ...int64) (string, error) {
	expire := int64(3600)
	if len(expireSeconds) > 0 && expireSeconds[0] > 0 {
		expire = expireSeconds[0]
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expire)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return signedURL, nil
}
