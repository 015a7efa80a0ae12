package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/client"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

// LocalDeliverer copies artifacts into a per-user directory under root
type LocalDeliverer struct {
	root string
}

func NewLocalDeliverer(root string) *LocalDeliverer {
	return &LocalDeliverer{root: root}
}

func (d *LocalDeliverer) Deliver(_ context.Context, userID int64, res model.JobResult) (string, error) {
	dir := filepath.Join(d.root, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	dst := filepath.Join(dir, uuid.New().String()+filepath.Ext(res.ArtifactPath))
	if err := copyFile(res.ArtifactPath, dst); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// StorageDeliverer uploads artifacts to object storage and returns a
// presigned link that stays valid for linkTTL
type StorageDeliverer struct {
	storage client.StorageClient
	linkTTL time.Duration
}

func NewStorageDeliverer(storage client.StorageClient, linkTTL time.Duration) *StorageDeliverer {
	return &StorageDeliverer{storage: storage, linkTTL: linkTTL}
}

func (d *StorageDeliverer) Deliver(ctx context.Context, userID int64, res model.JobResult) (string, error) {
	f, err := os.Open(res.ArtifactPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}

	ext := filepath.Ext(res.ArtifactPath)
	obj := client.Object{
		Key:         fmt.Sprintf("downloads/%d/%s%s", userID, uuid.New().String(), ext),
		ContentType: contentTypeOf(ext),
		Size:        info.Size(),
	}
	if res.Title != "" {
		obj.DownloadName = res.Title + ext
	}

	if err := d.storage.Upload(ctx, obj, f); err != nil {
		return "", err
	}

	link, err := d.storage.GetSignedURL(ctx, obj.Key, d.linkTTL)
	if err != nil {
		_ = d.storage.Delete(ctx, obj.Key)
		return "", err
	}
	return link, nil
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
}

func contentTypeOf(ext string) string {
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
