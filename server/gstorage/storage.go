package gstorage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ecotterell/carelink/server/logger"
	"google.golang.org/api/option"
)

var (
	ErrObjectNotExist = storage.ErrObjectNotExist

	logg = logger.NewLogger()
)

const transferTimeout = 50 * time.Second

// GStorage uploads/restores the sqlite database file to a GCS bucket.
type GStorage struct {
	storageClient *storage.Client
}

func NewGStorage(credentialsFilePath string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	return &GStorage{storageClient: client}, nil
}

// UploadFile uploads the file at 'filePath' as an object named after its
// base name, under 'prefix'.
func (gs *GStorage) UploadFile(bucket, prefix, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("os.Open: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	objectName := objectName(prefix, filepath.Base(filePath))
	wc := gs.storageClient.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		return fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %v", err)
	}

	logg.Infof("blob %v uploaded", objectName)
	return nil
}

// DownloadFile downloads the named object into 'destFilePath'. A missing
// object is reported as ErrObjectNotExist so callers can treat "no backup
// yet" as a non-error.
func (gs *GStorage) DownloadFile(bucket, prefix, object, destFilePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	objectName := objectName(prefix, object)
	rc, err := gs.storageClient.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return err
	}
	if err != nil {
		return fmt.Errorf("Object(%q).NewReader: %v", objectName, err)
	}
	defer rc.Close()

	f, err := os.Create(destFilePath)
	if err != nil {
		return fmt.Errorf("os.Create: %v", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("io.Copy: %v", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("f.Close: %v", err)
	}

	logg.Infof("blob %v downloaded to %v", objectName, destFilePath)
	return nil
}

func objectName(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return fmt.Sprintf("%v/%v", prefix, name)
}
