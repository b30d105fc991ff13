// pkg/meta/mongo.go

package meta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// gridFile is a document of the <bucket>.files collection.
type gridFile struct {
	ID         interface{} `bson:"_id"`
	Length     int64       `bson:"length"`
	ChunkSize  int32       `bson:"chunkSize"`
	UploadDate time.Time   `bson:"uploadDate"`
	Filename   string      `bson:"filename"`
}

// gridChunk is a document of the <bucket>.chunks collection.
type gridChunk struct {
	N    int32  `bson:"n"`
	Data []byte `bson:"data"`
}

type mongoMeta struct {
	conf   *Config
	client *mongo.Client
	bucket *gridfs.Bucket
	files  *mongo.Collection
	chunks *mongo.Collection
}

var _ Meta = &mongoMeta{}

func init() {
	Register("mongodb", newMongoMeta)
	Register("mongodb+srv", newMongoMeta)
}

// newMongoMeta returns a client of the GridFS bucket in the database named
// by the path of the URL ("test" when missing).
func newMongoMeta(driver, addr string, conf *Config) (Meta, error) {
	uri := driver + "://" + addr
	dbName := "test"
	if p := strings.Index(addr, "/"); p >= 0 {
		name := addr[p+1:]
		if q := strings.IndexByte(name, '?'); q >= 0 {
			name = name[:q]
		}
		if name != "" {
			dbName = name
		}
	}

	opts := options.Client().ApplyURI(uri).SetTimeout(time.Second * 30)
	if conf.Retries > 0 {
		opts.SetRetryReads(true)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %s", driver, err)
	}
	start := time.Now()
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping %s: %s", driver, err)
	}
	logger.Infof("Ping mongodb: %s", time.Since(start))

	db := client.Database(dbName)
	prefix := conf.prefix()
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(prefix))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &mongoMeta{
		conf:   conf,
		client: client,
		bucket: bucket,
		files:  db.Collection(prefix + ".files"),
		chunks: db.Collection(prefix + ".chunks"),
	}, nil
}

func (mm *mongoMeta) Name() string {
	return "mongodb"
}

func (mm *mongoMeta) toHandle(doc *gridFile) (*FileHandle, error) {
	if doc.ChunkSize <= 0 || doc.Length < 0 {
		return nil, fmt.Errorf("invalid file document %v: chunkSize %d, length %d", doc.ID, doc.ChunkSize, doc.Length)
	}
	return &FileHandle{
		ID:         doc.ID,
		Name:       doc.Filename,
		ChunkSize:  uint32(doc.ChunkSize),
		Length:     uint64(doc.Length),
		UploadDate: doc.UploadDate,
	}, nil
}

func (mm *mongoMeta) FindFile(ctx Context, name string) (*FileHandle, error) {
	// the latest revision wins, as with any GridFS driver
	opts := options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	var doc gridFile
	err := mm.files.FindOne(ctx, bson.D{{Key: "filename", Value: name}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, syscall.ENOENT
	}
	if err != nil {
		return nil, err
	}
	return mm.toHandle(&doc)
}

func (mm *mongoMeta) ListFiles(ctx Context) iter.Seq2[*FileHandle, error] {
	return func(yield func(*FileHandle, error) bool) {
		cur, err := mm.files.Find(ctx, bson.D{})
		if err != nil {
			yield(nil, err)
			return
		}
		defer cur.Close(context.Background())
		for cur.Next(ctx) {
			var doc gridFile
			if err := cur.Decode(&doc); err != nil {
				logger.Warnf("decode file document: %s", err)
				continue
			}
			f, err := mm.toHandle(&doc)
			if err != nil {
				logger.Warnf("skip %s: %s", doc.Filename, err)
				continue
			}
			if !yield(f, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (mm *mongoMeta) GetChunk(ctx Context, f *FileHandle, indx uint32) ([]byte, error) {
	filter := bson.D{{Key: "files_id", Value: f.ID}, {Key: "n", Value: int32(indx)}}
	var c gridChunk
	err := mm.chunks.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, syscall.ENOENT
	}
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

func (mm *mongoMeta) PutFile(ctx Context, name string, chunkSize uint32, r io.Reader) (*FileHandle, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size should > 0")
	}
	old, err := mm.FindFile(ctx, name)
	if err != nil && !errors.Is(err, syscall.ENOENT) {
		return nil, err
	}
	opts := options.GridFSUpload().SetChunkSizeBytes(int32(chunkSize))
	id, err := mm.bucket.UploadFromStream(name, r, opts)
	if err != nil {
		return nil, err
	}
	if old != nil {
		if err := mm.bucket.Delete(old.ID); err != nil {
			logger.Warnf("remove old revision of %s: %s", old, err)
		}
	}
	var doc gridFile
	if err = mm.files.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return nil, err
	}
	return mm.toHandle(&doc)
}

func (mm *mongoMeta) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	return mm.client.Disconnect(ctx)
}
