package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register decoder
	"gorm.io/gorm"
)

var (
	ErrMediaNotFound    = errors.New("media asset not found")
	ErrMediaTooLarge    = errors.New("file exceeds the upload limit")
	ErrMediaType        = errors.New("unsupported file type")
	ErrMediaEmpty       = errors.New("file is empty")
	ErrMediaInUse       = errors.New("media asset is used as a cover image")
	ErrMediaUnsafeImage = errors.New("svg contains scripts or event handlers")
)

var mediaExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
}

var unsafeSVG = regexp.MustCompile(`(?i)<script|javascript:|\son[a-z]+\s*=|<foreignobject`)

// MediaService 保存上传文件并维护媒体记录。
type MediaService struct {
	db       *gorm.DB
	dir      string
	urlPath  string
	maxBytes int64
	now      func() time.Time
}

// MediaOptions 描述文件落盘位置与大小上限。
type MediaOptions struct {
	Dir      string
	URLPath  string
	MaxBytes int64
}

// MediaUpload 为一次上传的内容。
type MediaUpload struct {
	FileName string
	Alt      string
	Body     io.Reader
}

// MediaListResult 为分页列表结果。
type MediaListResult struct {
	Assets     []db.MediaAsset
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewMediaService 构造 MediaService。
func NewMediaService(gdb *gorm.DB, opts MediaOptions) *MediaService {
	urlPath := "/" + strings.Trim(opts.URLPath, "/")
	if urlPath == "/" {
		urlPath = "/uploads"
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &MediaService{db: gdb, dir: opts.Dir, urlPath: urlPath, maxBytes: maxBytes, now: time.Now}
}

// MaxBytes 返回单个文件的大小上限。
func (s *MediaService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload 嗅探类型、读取图片尺寸并落盘为 <yyyymmdd>-<uuid><ext>。
func (s *MediaService) Upload(tenantID uint, upload MediaUpload) (*db.MediaAsset, error) {
	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrMediaEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrMediaTooLarge
	}

	mimeType, err := sniffMediaType(upload.FileName, data)
	if err != nil {
		return nil, err
	}

	asset := db.MediaAsset{
		TenantID: tenantID,
		FileName: sanitizeFileName(upload.FileName),
		MimeType: mimeType,
		Size:     int64(len(data)),
		Alt:      blocks.PlainText(upload.Alt),
	}
	if strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, ErrMediaType
		}
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}

	tenantDir := fmt.Sprintf("%d", tenantID)
	name := fmt.Sprintf("%s-%s%s", s.now().Format("20060102"), uuid.New().String(), mediaExtensions[mimeType])
	asset.StoredName = path.Join(tenantDir, name)
	asset.URL = s.urlPath + "/" + asset.StoredName

	target := filepath.Join(s.dir, tenantDir, name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, err
	}

	if err := s.db.Create(&asset).Error; err != nil {
		_ = os.Remove(target)
		return nil, err
	}
	return &asset, nil
}

// List 分页返回媒体，最新在前。
func (s *MediaService) List(tenantID uint, pageNum, perPage int) (*MediaListResult, error) {
	pageNum, perPage = normalizePagination(pageNum, perPage)
	query := s.db.Model(&db.MediaAsset{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var assets []db.MediaAsset
	if err := query.Order("created_at desc, id desc").Offset((pageNum - 1) * perPage).Limit(perPage).Find(&assets).Error; err != nil {
		return nil, err
	}
	return &MediaListResult{
		Assets:     assets,
		Total:      total,
		TotalPages: totalPages(total, perPage),
		Page:       pageNum,
		PerPage:    perPage,
	}, nil
}

// Get 读取租户内的媒体记录。
func (s *MediaService) Get(tenantID, id uint) (*db.MediaAsset, error) {
	var asset db.MediaAsset
	if err := s.db.Where("tenant_id = ?", tenantID).First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// GetMany 批量读取媒体，返回 id 到记录的映射。
func (s *MediaService) GetMany(tenantID uint, ids []uint) (map[uint]db.MediaAsset, error) {
	result := make(map[uint]db.MediaAsset, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var assets []db.MediaAsset
	if err := s.db.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&assets).Error; err != nil {
		return nil, err
	}
	for _, asset := range assets {
		result[asset.ID] = asset
	}
	return result, nil
}

// UpdateAlt 修改替代文本。
func (s *MediaService) UpdateAlt(tenantID, id uint, alt string) (*db.MediaAsset, error) {
	asset, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	asset.Alt = blocks.PlainText(alt)
	if err := s.db.Model(asset).Update("alt", asset.Alt).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

// Delete 删除记录与文件；仍被用作封面时返回 ErrMediaInUse。
func (s *MediaService) Delete(tenantID, id uint) error {
	var asset db.MediaAsset
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).First(&asset, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMediaNotFound
			}
			return err
		}
		for _, model := range []interface{}{&db.BlogPost{}, &db.CaseStudy{}} {
			var refs int64
			if err := tx.Model(model).Where("tenant_id = ? AND cover_media_id = ?", tenantID, asset.ID).Count(&refs).Error; err != nil {
				return err
			}
			if refs > 0 {
				return ErrMediaInUse
			}
		}
		return tx.Delete(&asset).Error
	})
	if err != nil {
		return err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(asset.StoredName))
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func sniffMediaType(fileName string, data []byte) (string, error) {
	detected := http.DetectContentType(data)
	mimeType := strings.TrimSpace(strings.SplitN(detected, ";", 2)[0])

	if _, ok := mediaExtensions[mimeType]; ok {
		return mimeType, nil
	}

	// SVG 被嗅探为 text/xml 或 text/plain
	if strings.EqualFold(filepath.Ext(fileName), ".svg") && strings.HasPrefix(mimeType, "text/") {
		head := strings.ToLower(string(data[:min(len(data), 1024)]))
		if !strings.Contains(head, "<svg") {
			return "", ErrMediaType
		}
		if unsafeSVG.Match(data) {
			return "", ErrMediaUnsafeImage
		}
		return "image/svg+xml", nil
	}
	return "", ErrMediaType
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = blocks.PlainText(base)
	if base == "" || base == "." || base == "/" {
		return "upload"
	}
	return truncate(base, 255)
}
