package platform

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labdesk/labdesk/internal/db"
)

type StoredFile struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
}

type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (*StoredFile, error)
	Open(ctx context.Context, id string) (io.ReadCloser, *StoredFile, error)
}

// GridFSUploader stores attachments in a GridFS bucket inside the same
// database the engine already writes to.
type GridFSUploader struct {
	bucket *gridfs.Bucket
}

func NewGridFSUploader(database *db.DB) (*GridFSUploader, error) {
	bucket, err := gridfs.NewBucket(database.Database(),
		options.GridFSBucket().SetName(db.FilesBucket))
	if err != nil {
		return nil, fmt.Errorf("storage: bucket: %w", err)
	}
	return &GridFSUploader{bucket: bucket}, nil
}

func (g *GridFSUploader) Upload(_ context.Context, name, contentType string, r io.Reader) (*StoredFile, error) {
	key := fmt.Sprintf("%s_%s", uuid.New().String(), name)
	stream, err := g.bucket.OpenUploadStream(key,
		options.GridFSUpload().SetMetadata(bson.M{
			"originalName": name,
			"contentType":  contentType,
		}))
	if err != nil {
		return nil, fmt.Errorf("storage: open stream: %w", err)
	}
	size, err := io.Copy(stream, r)
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("storage: write: %w", err)
	}
	id, _ := stream.FileID.(primitive.ObjectID)
	return &StoredFile{
		ID:          id.Hex(),
		URL:         "/api/v1/attachments/" + id.Hex(),
		Provider:    "gridfs",
		Name:        name,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (g *GridFSUploader) Open(_ context.Context, id string) (io.ReadCloser, *StoredFile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: bad file id %q", id)
	}
	stream, err := g.bucket.OpenDownloadStream(oid)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open %s: %w", id, err)
	}
	file := stream.GetFile()
	meta := StoredFile{
		ID:       id,
		URL:      "/api/v1/attachments/" + id,
		Provider: "gridfs",
		Name:     file.Name,
		Size:     file.Length,
	}
	if file.Metadata != nil {
		var m struct {
			OriginalName string `bson:"originalName"`
			ContentType  string `bson:"contentType"`
		}
		if err := bson.Unmarshal(file.Metadata, &m); err == nil {
			if m.OriginalName != "" {
				meta.Name = m.OriginalName
			}
			meta.ContentType = m.ContentType
		}
	}
	return stream, &meta, nil
}
