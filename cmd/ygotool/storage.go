package main

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Backblaze/blazer/b2"
	"github.com/dsnet/compress/bzip2"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/ulikunitz/xz"
	xzReader "github.com/xi2/xz"
	"google.golang.org/api/option"

	"github.com/mtgban/go-ygoban/ygoban"
)

var GCSBucket *storage.BucketHandle
var B2Bucket *b2.Bucket

// initializeBucket sets up the client needed to reach path, for the output
// path and for -load-file alike. Local paths must already exist.
func initializeBucket(path string) error {
	u, err := url.Parse(path)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http", "https":
		// Only read through loadData, nothing to set up
		return nil
	case "gs":
		return initializeGCS(u.Host)
	case "b2":
		return initializeB2(u.Host)
	}

	_, err = os.Stat(u.Path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	return nil
}

func initializeGCS(bucket string) error {
	if GCSBucket != nil {
		return nil
	}
	serviceAcc := os.Getenv("GCS_SVC_ACC")
	if serviceAcc == "" {
		return errors.New("missing GCS_SVC_ACC for GCS access")
	}

	client, err := storage.NewClient(context.Background(), option.WithCredentialsFile(serviceAcc))
	if err != nil {
		return fmt.Errorf("error creating the GCS client %w", err)
	}

	GCSBucket = client.Bucket(bucket)
	return nil
}

func initializeB2(bucket string) error {
	if B2Bucket != nil {
		return nil
	}
	accessKey := os.Getenv("B2_KEY_ID")
	secretKey := os.Getenv("B2_APP_KEY")
	if accessKey == "" || secretKey == "" {
		return errors.New("missing required B2 environment variables")
	}

	client, err := b2.NewClient(context.Background(), accessKey, secretKey)
	if err != nil {
		return err
	}

	B2Bucket, err = client.Bucket(context.Background(), bucket)
	return err
}

// parseFormat splits an output format such as "ndjson.xz" into its row
// encoding and optional compression.
func parseFormat(format string) (string, string, error) {
	kind, compression, _ := strings.Cut(format, ".")
	switch kind {
	case "csv", "ndjson":
	default:
		return "", "", fmt.Errorf("unsupported format %q", format)
	}
	switch compression {
	case "", "xz", "bz2":
	default:
		return "", "", fmt.Errorf("unsupported compression %q", compression)
	}
	return kind, compression, nil
}

func isLocal(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme == ""
}

func putData(name, outputPath string) (io.WriteCloser, error) {
	filePath := fmt.Sprintf("%s/%s", strings.TrimSuffix(outputPath, "/"), name)

	u, err := url.Parse(filePath)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "gs":
		dst := strings.TrimPrefix(u.Path, "/")
		return GCSBucket.Object(dst).NewWriter(context.TODO()), nil
	case "b2":
		dst := strings.TrimPrefix(u.Path, "/")
		return B2Bucket.Object(dst).NewWriter(context.TODO()), nil
	}

	return os.Create(filePath)
}

func loadData(pathOpt string) (io.ReadCloser, error) {
	var reader io.ReadCloser

	u, err := url.Parse(pathOpt)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http", "https":
		resp, err := cleanhttp.DefaultClient().Get(pathOpt)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		reader = resp.Body
	case "gs":
		src := strings.TrimPrefix(u.Path, "/")
		reader, err = GCSBucket.Object(src).NewReader(context.TODO())
		if err != nil {
			return nil, err
		}
	case "b2":
		src := strings.TrimPrefix(u.Path, "/")
		obj := B2Bucket.Object(src).NewReader(context.TODO())
		obj.ConcurrentDownloads = 20
		reader = obj
	default:
		file, err := os.Open(pathOpt)
		if err != nil {
			return nil, err
		}
		reader = file
	}

	return decompress(pathOpt, reader)
}

// decompressReader closes the decompressor, if it needs closing, and then
// the source it reads from.
type decompressReader struct {
	io.Reader
	closers []io.Closer
}

func (r *decompressReader) Close() error {
	var errs []error
	for _, closer := range r.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// decompress wraps source in the decompressor matching the name extension.
// The source is closed when no decompressor can be set up.
func decompress(name string, source io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, "xz"):
		xzReader, err := xzReader.NewReader(source, 0)
		if err != nil {
			source.Close()
			return nil, err
		}
		return &decompressReader{Reader: xzReader, closers: []io.Closer{source}}, nil
	case strings.HasSuffix(name, "bz2"):
		bz2Reader, err := bzip2.NewReader(source, nil)
		if err != nil {
			source.Close()
			return nil, err
		}
		return &decompressReader{Reader: bz2Reader, closers: []io.Closer{bz2Reader, source}}, nil
	case strings.HasSuffix(name, "gz"):
		zipReader, err := gzip.NewReader(source)
		if err != nil {
			source.Close()
			return nil, err
		}
		return &decompressReader{Reader: zipReader, closers: []io.Closer{zipReader, source}}, nil
	}
	return source, nil
}

// archiveTo stores raw API responses under outputPath
func archiveTo(outputPath string) func(name string, data []byte) error {
	return func(name string, data []byte) error {
		writer, err := putData(name, outputPath)
		if err != nil {
			return err
		}

		_, err = writer.Write(data)
		if err != nil {
			writer.Close()
			return err
		}
		return writer.Close()
	}
}

func dumpRows(rows []ygoban.Row, outputPath, name, format string) error {
	kind, compression, err := parseFormat(format)
	if err != nil {
		return err
	}

	writer, err := putData(name, outputPath)
	if err != nil {
		return err
	}

	var out io.Writer = writer
	var compressor io.WriteCloser
	switch compression {
	case "xz":
		compressor, err = xz.NewWriter(writer)
	case "bz2":
		compressor, err = bzip2.NewWriter(writer, nil)
	}
	if err != nil {
		writer.Close()
		return err
	}
	if compressor != nil {
		out = compressor
	}

	switch kind {
	case "csv":
		err = ygoban.WriteRowsToCSV(rows, out)
	case "ndjson":
		err = ygoban.WriteRowsToNDJSON(rows, out)
	}
	if err != nil {
		writer.Close()
		return err
	}

	if compressor != nil {
		err = compressor.Close()
		if err != nil {
			writer.Close()
			return err
		}
	}

	// Remote uploads are only committed on Close
	return writer.Close()
}
