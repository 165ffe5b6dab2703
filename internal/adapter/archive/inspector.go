package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"repo-triage/internal/adapter/digest"
	"repo-triage/internal/common"
)

// DefaultMaxEntryBytes 第一个条目最多解压的字节数
const DefaultMaxEntryBytes int64 = 256 << 20

var (
	zipLocalHeader = []byte("PK\x03\x04")
	zipEmptyEOCD   = []byte("PK\x05\x06")
	gzipMagic      = []byte{0x1f, 0x8b}
)

// Inspector 实现了 port.Inspector 接口，支持 zip、tar 和 gzip 压缩的 tar
type Inspector struct {
	hasher        digest.Hasher
	maxEntryBytes int64
}

// Option 鉴定师的配置项
type Option func(*Inspector)

// WithMaxEntryBytes 覆盖 DefaultMaxEntryBytes，非正数忽略
func WithMaxEntryBytes(n int64) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.maxEntryBytes = n
		}
	}
}

// NewInspector 创建压缩包鉴定师
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{maxEntryBytes: DefaultMaxEntryBytes}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InspectFirstEntry 按压缩包原始顺序取第一个条目，返回名字和 SHA-256
// 没有条目的压缩包返回 ("", "", nil)
func (i *Inspector) InspectFirstEntry(data []byte) (string, string, error) {
	var (
		name    string
		content []byte
		found   bool
		err     error
	)

	switch {
	case len(data) == 0:
		return "", "", nil
	case bytes.HasPrefix(data, zipLocalHeader), bytes.HasPrefix(data, zipEmptyEOCD):
		name, content, found, err = i.firstZipEntry(data)
	case bytes.HasPrefix(data, gzipMagic):
		var gz *gzip.Reader
		gz, err = gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", "", inspectionError("gzip", err)
		}
		defer gz.Close()
		name, content, found, err = i.firstTarEntry(gz)
	default:
		name, content, found, err = i.firstTarEntry(bytes.NewReader(data))
		if err != nil {
			// 自解压包等在 PK 头前面带了其他数据，中央目录从尾部查找仍然能打开
			if zn, zc, zf, zerr := i.firstZipEntry(data); zerr == nil {
				name, content, found, err = zn, zc, zf, nil
			}
		}
	}
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", nil
	}
	return name, i.hasher.Hash(content), nil
}

func (i *Inspector) firstZipEntry(data []byte) (string, []byte, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, false, inspectionError("zip", err)
	}
	if len(zr.File) == 0 {
		return "", nil, false, nil
	}

	f := zr.File[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, false, inspectionError("zip", err)
	}
	defer rc.Close()

	content, err := i.readCapped(rc)
	if err != nil {
		return "", nil, false, inspectionError("zip", err)
	}
	return f.Name, content, true, nil
}

func (i *Inspector) firstTarEntry(r io.Reader) (string, []byte, bool, error) {
	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	if errors.Is(err, io.EOF) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, inspectionError("tar", err)
	}

	content, err := i.readCapped(tr)
	if err != nil {
		return "", nil, false, inspectionError("tar", err)
	}
	return hdr.Name, content, true, nil
}

func (i *Inspector) readCapped(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, i.maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if n > i.maxEntryBytes {
		return nil, fmt.Errorf("first entry exceeds %d bytes", i.maxEntryBytes)
	}
	return buf.Bytes(), nil
}

func inspectionError(format string, err error) error {
	return common.WrapError(common.ErrCodeInspection, fmt.Sprintf("failed to read %s archive", format), err)
}
